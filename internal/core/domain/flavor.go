package domain

import "strings"

// Flavor identifies the lifetime class of a storage backend.
type Flavor string

const (
	// FlavorDurable survives process restarts.
	FlavorDurable Flavor = "durable"

	// FlavorSession lives as long as the hosting process.
	FlavorSession Flavor = "session"

	// FlavorExtension is served by a remote mirrorsync-server.
	FlavorExtension Flavor = "extension"
)

// ParseFlavor converts a string into a Flavor.
func ParseFlavor(s string) (Flavor, error) {
	switch f := Flavor(strings.ToLower(strings.TrimSpace(s))); f {
	case FlavorDurable, FlavorSession, FlavorExtension:
		return f, nil
	default:
		return "", ErrInvalidConfig.WithDetails("unknown flavor " + s)
	}
}

// String implements fmt.Stringer.
func (f Flavor) String() string {
	return string(f)
}
