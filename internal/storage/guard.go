package storage

import (
	"context"
	"fmt"

	"github.com/yndnr/mirrorsync/internal/core/domain"
)

// Guarded wraps a backend so that a panicking call returns ErrBackendPanic
// instead of unwinding into the caller. The result is Watchable only when b is.
func Guarded(b Backend) Backend {
	switch b.(type) {
	case *guarded, *guardedWatch:
		return b
	}
	g := &guarded{inner: b}
	if w, ok := b.(Watchable); ok {
		return &guardedWatch{guarded: g, watch: w}
	}
	return g
}

// Unwrap returns the backend wrapped by Guarded, or b itself.
func Unwrap(b Backend) Backend {
	switch g := b.(type) {
	case *guarded:
		return g.inner
	case *guardedWatch:
		return g.inner
	}
	return b
}

type guarded struct {
	inner Backend
}

func recovered(op string, err *error) {
	if r := recover(); r != nil {
		*err = domain.ErrBackendPanic.WithDetails(fmt.Sprintf("%s: %v", op, r))
	}
}

func (g *guarded) Name() string { return NameOf(g.inner) }

func (g *guarded) Get(ctx context.Context, key string) (value string, found bool, err error) {
	defer recovered("get", &err)
	return g.inner.Get(ctx, key)
}

func (g *guarded) Set(ctx context.Context, key, value string) (err error) {
	defer recovered("set", &err)
	return g.inner.Set(ctx, key, value)
}

func (g *guarded) Remove(ctx context.Context, key string) (err error) {
	defer recovered("remove", &err)
	return g.inner.Remove(ctx, key)
}

func (g *guarded) Keys(ctx context.Context) (keys []string, err error) {
	defer recovered("keys", &err)
	return g.inner.Keys(ctx)
}

func (g *guarded) Close() error {
	return Close(g.inner)
}

type guardedWatch struct {
	*guarded
	watch Watchable
}

func (g *guardedWatch) Watch(fn func(Change)) (stop func(), err error) {
	defer recovered("watch", &err)
	return g.watch.Watch(fn)
}
