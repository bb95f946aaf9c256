package storagev1

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified service name.
const ServiceName = "mirrorsync.v1.StorageService"

// Procedure paths.
const (
	GetProcedure    = "/" + ServiceName + "/Get"
	SetProcedure    = "/" + ServiceName + "/Set"
	RemoveProcedure = "/" + ServiceName + "/Remove"
	KeysProcedure   = "/" + ServiceName + "/Keys"
	WatchProcedure  = "/" + ServiceName + "/Watch"
)

// OriginHeader carries the writer identity on Set and Remove calls.
const OriginHeader = "Mirrorsync-Origin"

// Message field names.
const (
	FieldKey      = "key"
	FieldValue    = "value"
	FieldFound    = "found"
	FieldNewValue = "new_value"
	FieldOldValue = "old_value"
	FieldRemoved  = "removed"
	FieldOrigin   = "origin"

	// FieldReady marks the first Watch message, sent once the server is
	// subscribed. It carries no change.
	FieldReady = "ready"
)

// Fields is a convenience builder for Struct messages.
type Fields map[string]*structpb.Value

// Struct builds a Struct message from f.
func (f Fields) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: f}
}

// String returns a string value.
func String(s string) *structpb.Value {
	return structpb.NewStringValue(s)
}

// Bool returns a bool value.
func Bool(b bool) *structpb.Value {
	return structpb.NewBoolValue(b)
}

// GetString reads a string field; missing fields read as "".
func GetString(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// GetBool reads a bool field; missing fields read as false.
func GetBool(s *structpb.Struct, name string) bool {
	return s.GetFields()[name].GetBoolValue()
}

// KeyRequest builds the request for Get and Remove.
func KeyRequest(key string) *structpb.Struct {
	return Fields{FieldKey: String(key)}.Struct()
}

// StringList builds a ListValue of strings.
func StringList(items []string) *structpb.ListValue {
	values := make([]*structpb.Value, len(items))
	for i, s := range items {
		values[i] = String(s)
	}
	return &structpb.ListValue{Values: values}
}

// Strings reads a ListValue of strings, skipping non-string entries.
func Strings(l *structpb.ListValue) []string {
	out := make([]string, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out = append(out, s.StringValue)
		}
	}
	return out
}
