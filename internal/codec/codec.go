// Package codec maps logical keys to physical keys and values to their
// stored text form.
//
// A physical key is the namespace prefix followed by the logical key. Keys
// in a backend that do not carry the prefix belong to someone else and are
// never touched. Values go through a pluggable Serializer/Deserializer pair,
// JSON by default.
package codec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/yndnr/mirrorsync/internal/core/domain"
)

// DefaultPrefix namespaces every physical key written with default settings.
const DefaultPrefix = "mirrorsync-"

// Serializer converts a value to its stored text form.
type Serializer func(v any) (string, error)

// Deserializer converts a stored text form back to a value.
type Deserializer func(s string) (any, error)

// Settings keys accepted by Configure.
const (
	SettingPrefix       = "prefix"
	SettingSerializer   = "serializer"
	SettingDeserializer = "deserializer"
	SettingFormat       = "format"
)

// Codec is safe for concurrent use. Changing settings while a mirror is
// running affects subsequent operations only.
type Codec struct {
	mu          sync.RWMutex
	prefix      string
	serialize   Serializer
	deserialize Deserializer
}

// New returns a codec with the default prefix and JSON values.
func New() *Codec {
	return &Codec{
		prefix:      DefaultPrefix,
		serialize:   JSONSerializer,
		deserialize: JSONDeserializer,
	}
}

// Prefix returns the current key prefix.
func (c *Codec) Prefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefix
}

// SetKeyPrefix replaces the key prefix. Any string is accepted, including
// the empty one, which claims every key in the backend.
func (c *Codec) SetKeyPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefix = prefix
}

// SetSerializer replaces the value serializer.
func (c *Codec) SetSerializer(fn Serializer) error {
	if fn == nil {
		return domain.ErrTypeMismatch.WithDetails("serializer must be a function")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serialize = fn
	return nil
}

// SetDeserializer replaces the value deserializer.
func (c *Codec) SetDeserializer(fn Deserializer) error {
	if fn == nil {
		return domain.ErrTypeMismatch.WithDetails("deserializer must be a function")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deserialize = fn
	return nil
}

// Configure applies untyped settings such as those read from a config file.
// Nothing is applied unless every setting is valid.
//
// Recognised settings: "prefix" (string), "format" ("json" or "yaml"),
// "serializer" (Serializer or func(any) (string, error)) and
// "deserializer" (Deserializer or func(string) (any, error)).
func (c *Codec) Configure(settings map[string]any) error {
	var (
		prefix *string
		ser    Serializer
		deser  Deserializer
	)

	for name, raw := range settings {
		switch name {
		case SettingPrefix:
			s, ok := raw.(string)
			if !ok {
				return domain.ErrTypeMismatch.WithDetails(fmt.Sprintf("prefix must be a string, got %T", raw))
			}
			prefix = &s

		case SettingFormat:
			s, ok := raw.(string)
			if !ok {
				return domain.ErrTypeMismatch.WithDetails(fmt.Sprintf("format must be a string, got %T", raw))
			}
			f, err := FormatByName(s)
			if err != nil {
				return err
			}
			if ser == nil {
				ser = f.Serialize
			}
			if deser == nil {
				deser = f.Deserialize
			}

		case SettingSerializer:
			fn, ok := asSerializer(raw)
			if !ok {
				return domain.ErrTypeMismatch.WithDetails(fmt.Sprintf("serializer must be a function, got %T", raw))
			}
			ser = fn

		case SettingDeserializer:
			fn, ok := asDeserializer(raw)
			if !ok {
				return domain.ErrTypeMismatch.WithDetails(fmt.Sprintf("deserializer must be a function, got %T", raw))
			}
			deser = fn

		default:
			return domain.ErrInvalidConfig.WithDetails("unknown codec setting " + name)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prefix != nil {
		c.prefix = *prefix
	}
	if ser != nil {
		c.serialize = ser
	}
	if deser != nil {
		c.deserialize = deser
	}
	return nil
}

func asSerializer(raw any) (Serializer, bool) {
	switch fn := raw.(type) {
	case Serializer:
		return fn, fn != nil
	case func(any) (string, error):
		return fn, fn != nil
	}
	return nil, false
}

func asDeserializer(raw any) (Deserializer, bool) {
	switch fn := raw.(type) {
	case Deserializer:
		return fn, fn != nil
	case func(string) (any, error):
		return fn, fn != nil
	}
	return nil, false
}

// Encode returns the physical key for a logical key.
func (c *Codec) Encode(logical string) string {
	return c.Prefix() + logical
}

// Decode returns the logical key for a physical key. ok is false when the
// key lacks the prefix or nothing follows it.
func (c *Codec) Decode(physical string) (logical string, ok bool) {
	prefix := c.Prefix()
	if !strings.HasPrefix(physical, prefix) || len(physical) == len(prefix) {
		return "", false
	}
	return physical[len(prefix):], true
}

// Serialize converts v with the current serializer.
func (c *Codec) Serialize(v any) (string, error) {
	c.mu.RLock()
	fn := c.serialize
	c.mu.RUnlock()
	return fn(v)
}

// Deserialize converts s with the current deserializer.
func (c *Codec) Deserialize(s string) (any, error) {
	c.mu.RLock()
	fn := c.deserialize
	c.mu.RUnlock()
	return fn(s)
}
