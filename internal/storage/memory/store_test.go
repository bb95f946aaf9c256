package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/yndnr/mirrorsync/internal/storage"
)

func TestStore_BasicOperations(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	v, found, err := s.Get(ctx, "k")
	if err != nil || !found || v != "v" {
		t.Errorf("Get = %q, %v, %v", v, found, err)
	}

	keys, _ := s.Keys(ctx)
	if len(keys) != 1 || keys[0] != "k" {
		t.Errorf("Keys = %v", keys)
	}

	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Error("key should be removed")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d", s.Len())
	}
}

type recorder struct {
	mu      sync.Mutex
	changes []storage.Change
}

func (r *recorder) record(c storage.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []storage.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Change(nil), r.changes...)
}

func TestStore_Watch(t *testing.T) {
	s := New()
	ctx := context.Background()
	var rec recorder

	stop, err := s.Watch(rec.record)
	if err != nil {
		t.Fatal(err)
	}

	s.Set(ctx, "k", "1")
	s.Set(ctx, "k", "2")
	s.Remove(ctx, "k")
	s.Remove(ctx, "k") // missing key, no event
	s.Set(ctx, "other", "x")
	s.Clear()

	got := rec.all()
	want := []storage.Change{
		{Key: "k", NewValue: "1"},
		{Key: "k", NewValue: "2", OldValue: "1"},
		{Key: "k", OldValue: "2", Removed: true},
		{Key: "other", NewValue: "x"},
		{},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	stop()
	stop()
	s.Set(ctx, "after", "stop")
	if n := len(rec.all()); n != len(want) {
		t.Errorf("received %d changes after stop", n-len(want))
	}
}

func TestStore_ImplementsWatchable(t *testing.T) {
	var b storage.Backend = New()
	if _, ok := b.(storage.Watchable); !ok {
		t.Error("memory store should be Watchable")
	}
}
