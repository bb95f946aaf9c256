package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/registry"
)

func memoryConfig(t *testing.T) registry.Config {
	t.Helper()
	cfg := registry.DefaultConfig(t.TempDir())
	cfg.Storage.Durable = registry.KindFile
	return cfg
}

func TestManager_LazyOpen(t *testing.T) {
	m := NewManager(memoryConfig(t), registry.LocalStorage, nil)
	if m.IsOpen() {
		t.Fatal("manager should not open before use")
	}

	p, err := m.Provider()
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if p.Name() != registry.LocalStorage {
		t.Errorf("Name = %q", p.Name())
	}
	if !m.IsOpen() {
		t.Error("manager should be open after Provider")
	}

	reg1, _ := m.Registry()
	reg2, _ := m.Registry()
	if reg1 != reg2 {
		t.Error("Registry should be opened once")
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	m := NewManager(memoryConfig(t), "cookieStorage", nil)
	if _, err := m.Provider(); !errors.Is(err, domain.ErrProviderNotFound) {
		t.Errorf("Provider error = %v, want ErrProviderNotFound", err)
	}
}

func TestManager_InvalidConfig(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.Durable = "tape"
	m := NewManager(cfg, registry.LocalStorage, nil)
	if _, err := m.Registry(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Registry error = %v, want ErrInvalidConfig", err)
	}
}

func TestManager_ClosePersistsAndReopens(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memoryConfig(t), registry.LocalStorage, nil)

	mir, err := m.Mirror(ctx)
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	mir.Set("theme", "dark")

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.IsOpen() {
		t.Error("manager should be closed")
	}
	if err := m.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}

	mir, err = m.Mirror(ctx)
	if err != nil {
		t.Fatalf("reopen Mirror: %v", err)
	}
	defer m.Close(ctx)
	if v, ok := mir.Get("theme"); !ok || v != "dark" {
		t.Errorf("theme after reopen = %v, %v", v, ok)
	}
}

func TestManager_OnChange(t *testing.T) {
	m := NewManager(memoryConfig(t), registry.SessionStorage, nil)

	var got []string
	m.OnChange(func(provider, key string, removed bool) {
		got = append(got, provider+":"+key)
	})
	m.dispatch("sessionStorage", "k", false)

	if len(got) != 1 || got[0] != "sessionStorage:k" {
		t.Errorf("dispatch = %v", got)
	}
}
