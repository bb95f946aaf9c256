package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/mirrorsync/internal/registry"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider != registry.LocalStorage {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.Output != "table" {
		t.Errorf("Output = %q, want table", cfg.Output)
	}
	if !strings.HasSuffix(cfg.Storage.Dir, filepath.Join(".mirrorsync", "data")) {
		t.Errorf("Storage.Dir = %q", cfg.Storage.Dir)
	}
	rc := cfg.Registry()
	if err := rc.Verify(); err != nil {
		t.Errorf("default registry config invalid: %v", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !filepath.IsAbs(path) {
		t.Errorf("path %q should be absolute", path)
	}
	if !strings.HasSuffix(path, filepath.Join(".mirrorsync", "cli.yaml")) {
		t.Errorf("path = %q", path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != registry.LocalStorage {
		t.Errorf("Provider = %q", cfg.Provider)
	}
}

func TestLoad_Sources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	content := `
provider: sessionStorage
output: json
storage:
  durable: file
  dir: /srv/state
codec:
  key_prefix: app-
sync:
  debounce_window: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MIRRORSYNC_CLI_OUTPUT", "yaml")

	cfg, err := Load(path, map[string]any{"storage.dir": "/from/flag"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider != registry.SessionStorage {
		t.Errorf("Provider = %q (file)", cfg.Provider)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, want env value", cfg.Output)
	}
	if cfg.Storage.Durable != registry.KindFile {
		t.Errorf("Durable = %q", cfg.Storage.Durable)
	}
	if cfg.Storage.Dir != "/from/flag" {
		t.Errorf("Dir = %q, want override", cfg.Storage.Dir)
	}
	if cfg.Codec.KeyPrefix != "app-" {
		t.Errorf("KeyPrefix = %q", cfg.Codec.KeyPrefix)
	}
	if cfg.Sync.DebounceWindow != 250*time.Millisecond {
		t.Errorf("DebounceWindow = %v", cfg.Sync.DebounceWindow)
	}
	if cfg.Codec.Format != "json" {
		t.Errorf("Format default lost: %q", cfg.Codec.Format)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	os.WriteFile(path, []byte("provider: [unterminated"), 0o600)

	if _, err := Load(path, nil); err == nil {
		t.Error("Load should fail on invalid YAML")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cli.yaml")

	cfg := Default()
	cfg.Provider = registry.ExtensionStorage
	cfg.Storage.Remote.Address = "127.0.0.1:7480"
	cfg.Codec.SealKey = "k"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	back, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Provider != registry.ExtensionStorage || back.Storage.Remote.Address != "127.0.0.1:7480" {
		t.Errorf("round trip lost values: %+v", back)
	}
	if back.Sync.DebounceWindow != cfg.Sync.DebounceWindow {
		t.Errorf("DebounceWindow = %v, want %v", back.Sync.DebounceWindow, cfg.Sync.DebounceWindow)
	}
}

func TestSanitized(t *testing.T) {
	cfg := Default()
	cfg.Codec.SealKey = "secret"
	cfg.Storage.Remote.Token = "token"

	s := Sanitized(cfg)
	if s.Codec.SealKey == "secret" || s.Storage.Remote.Token == "token" {
		t.Error("secrets not masked")
	}
	if cfg.Codec.SealKey != "secret" {
		t.Error("original modified")
	}
}
