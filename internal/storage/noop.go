package storage

import "context"

// Noop is the backend substituted when no real backend is usable.
// Reads find nothing and writes succeed without effect.
type Noop struct{}

// NewNoop returns the no-op backend.
func NewNoop() *Noop {
	return &Noop{}
}

// Name implements Named.
func (Noop) Name() string { return "noop" }

// Get always reports the key as absent.
func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set discards the value.
func (Noop) Set(context.Context, string, string) error { return nil }

// Remove does nothing.
func (Noop) Remove(context.Context, string) error { return nil }

// Keys returns no keys.
func (Noop) Keys(context.Context) ([]string, error) { return nil, nil }
