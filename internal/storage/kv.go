// Package storage provides storage abstractions for mirrorsync.
//
// This file defines the Backend contract every physical key-value store
// implements, and the optional change feed used for cross-context updates.
package storage

import (
	"context"
)

// Backend is a physical key-value store addressed by physical keys.
//
// Implementations must be safe for concurrent use. Synchronous stores return
// directly; stores that are inherently asynchronous (remote) complete the call
// before returning, so the engine can fan calls out and await them together.
type Backend interface {
	// Get returns the value stored under key. found is false when the key
	// does not exist; this is not an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error

	// Keys enumerates every key currently held.
	Keys(ctx context.Context) ([]string, error)
}

// Watchable is implemented by backends that report mutations.
type Watchable interface {
	// Watch registers fn for every mutation of the store, including those
	// made by other processes where the store can observe them.
	// The returned stop function unregisters fn and is safe to call twice.
	Watch(fn func(Change)) (stop func(), err error)
}

// SelfFiltering is implemented by Watchable backends that never report
// mutations made through the same instance.
type SelfFiltering interface {
	FiltersOwnWrites() bool
}

// FiltersOwnWrites reports whether b, or the backend it wraps, never
// reports its own mutations.
func FiltersOwnWrites(b Backend) bool {
	if sf, ok := Unwrap(b).(SelfFiltering); ok {
		return sf.FiltersOwnWrites()
	}
	return false
}

// Change describes one mutation of a physical key.
type Change struct {
	// Key is the physical key. Empty means the whole store was cleared.
	Key string

	// NewValue is the value after the change; empty when Removed.
	NewValue string

	// OldValue is the value before the change when the backend knows it.
	OldValue string

	// Removed reports a deletion.
	Removed bool

	// Origin identifies the writer when the backend can tell.
	Origin string

	// Resync reports that the feed was interrupted and changes may have been
	// missed. The receiver should reread the store. Other fields are empty.
	Resync bool
}

// Closer is implemented by backends that own resources.
type Closer interface {
	Close() error
}

// Named is implemented by backends that describe themselves in logs.
type Named interface {
	Name() string
}

// NameOf returns a printable name for a backend.
func NameOf(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return "backend"
}

// Close releases a backend if it owns resources.
func Close(b Backend) error {
	if c, ok := b.(Closer); ok {
		return c.Close()
	}
	return nil
}
