package mirror

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeBackend records every call made to it.
type fakeBackend struct {
	mu      sync.Mutex
	data    map[string]string
	ops     []string
	failAll error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string]string)}
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "get "+key)
	if f.failAll != nil {
		return "", false, f.failAll
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeBackend) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "set "+key)
	if f.failAll != nil {
		return f.failAll
	}
	f.data[key] = value
	return nil
}

func (f *fakeBackend) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "remove "+key)
	if f.failAll != nil {
		return f.failAll
	}
	delete(f.data, key)
	return nil
}

func (f *fakeBackend) Keys(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "keys")
	if f.failAll != nil {
		return nil, f.failAll
	}
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeBackend) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *fakeBackend) value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeBackend) keys() []string {
	keys, _ := f.Keys(context.Background())
	sort.Strings(keys)
	return keys
}

// calls returns the recorded operations starting with prefix.
func (f *fakeBackend) calls(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, op := range f.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			out = append(out, op)
		}
	}
	return out
}

func (f *fakeBackend) resetCalls() {
	f.mu.Lock()
	f.ops = nil
	f.mu.Unlock()
}

var errUnavailable = errors.New("storage unavailable")

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
