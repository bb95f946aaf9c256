package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/mirrorsync/internal/core/domain"
)

// Format is a named serializer pair.
type Format struct {
	Name        string
	Serialize   Serializer
	Deserialize Deserializer
}

// Built-in formats.
var (
	JSON = Format{Name: "json", Serialize: JSONSerializer, Deserialize: JSONDeserializer}
	YAML = Format{Name: "yaml", Serialize: YAMLSerializer, Deserialize: YAMLDeserializer}
)

// FormatByName returns a built-in format.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return Format{}, domain.ErrInvalidConfig.WithDetails("unknown value format " + name)
}

// JSONSerializer encodes v as compact JSON.
func JSONSerializer(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json encode: %w", err)
	}
	return string(data), nil
}

// JSONDeserializer decodes JSON into generic values: objects become
// map[string]any, arrays []any and numbers float64.
func JSONDeserializer(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return v, nil
}

// YAMLSerializer encodes v as a YAML document.
func YAMLSerializer(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("yaml encode: %w", err)
	}
	return string(data), nil
}

// YAMLDeserializer decodes a YAML document into generic values. Integers
// stay int, mappings with string keys become map[string]any.
func YAMLDeserializer(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	return v, nil
}
