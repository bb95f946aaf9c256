package memory

import (
	"context"
	"sync"

	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/pkg/cmap"
)

// Store is an in-memory Backend.
type Store struct {
	items *cmap.Map[string, string]

	mu       sync.RWMutex
	watchers map[uint64]func(storage.Change)
	nextID   uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items:    cmap.New[string, string](),
		watchers: make(map[uint64]func(storage.Change)),
	}
}

// Name implements storage.Named.
func (s *Store) Name() string { return "memory" }

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.items.Get(key)
	return v, ok, nil
}

// Set stores value under key and notifies watchers.
func (s *Store) Set(_ context.Context, key, value string) error {
	old, _ := s.items.Swap(key, value)
	s.broadcast(storage.Change{Key: key, NewValue: value, OldValue: old})
	return nil
}

// Remove deletes key and notifies watchers if it existed.
func (s *Store) Remove(_ context.Context, key string) error {
	old, ok := s.items.Pop(key)
	if ok {
		s.broadcast(storage.Change{Key: key, OldValue: old, Removed: true})
	}
	return nil
}

// Keys lists every key.
func (s *Store) Keys(context.Context) ([]string, error) {
	return s.items.Keys(), nil
}

// Clear removes everything and sends the whole-store signal (empty key).
func (s *Store) Clear() {
	if len(s.items.Clear()) > 0 {
		s.broadcast(storage.Change{})
	}
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	return s.items.Count()
}

// Watch implements storage.Watchable. fn runs synchronously on the
// mutating goroutine and must not call back into the store's Watch.
func (s *Store) Watch(fn func(storage.Change)) (func(), error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}, nil
}

func (s *Store) broadcast(c storage.Change) {
	s.mu.RLock()
	fns := make([]func(storage.Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
