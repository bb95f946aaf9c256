package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Storage struct {
		Backend   string `koanf:"backend"`
		Dir       string `koanf:"dir"`
		KeyPrefix string `koanf:"key_prefix"`
	} `koanf:"storage"`
	Sync struct {
		DebounceWindow string `koanf:"debounce_window"`
		Parallelism    int    `koanf:"parallelism"`
	} `koanf:"sync"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirrorsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
		WithOverrides(map[string]any{"storage.backend": "memory"}),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
	if len(l.overrides) != 1 {
		t.Errorf("overrides = %v", l.overrides)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: badger
  dir: /var/lib/mirrorsync
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("storage.backend"); got != "badger" {
		t.Errorf("storage.backend = %q, want %q", got, "badger")
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"MIRRORSYNC_STORAGE_BACKEND", "storage.backend"},
		{"MIRRORSYNC_SERVER_HTTP_ADDRESS", "server.http.address"},
		{"MIRRORSYNC_STORAGE_KEY__PREFIX", "storage.key_prefix"},
		{"MIRRORSYNC_SYNC_DEBOUNCE__WINDOW", "sync.debounce_window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvKey(DefaultEnvPrefix, tt.name); got != tt.want {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("MIRRORSYNC_STORAGE_BACKEND", "file")
	t.Setenv("MIRRORSYNC_STORAGE_KEY__PREFIX", "app-")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if got := l.GetString("storage.backend"); got != "file" {
		t.Errorf("storage.backend = %q, want %q", got, "file")
	}
	if got := l.GetString("storage.key_prefix"); got != "app-" {
		t.Errorf("storage.key_prefix = %q, want %q", got, "app-")
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_PORT", "9090")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if port := l.GetString("server.port"); port != "9090" {
		t.Errorf("server.port = %q, want %q", port, "9090")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	data := map[string]any{
		"storage.dir": "/tmp/ms",
		"debug":       true,
	}
	if err := l.LoadMap(data); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	if got := l.GetString("storage.dir"); got != "/tmp/ms" {
		t.Errorf("storage.dir = %q, want %q", got, "/tmp/ms")
	}
	if !l.GetBool("debug") {
		t.Error("debug should be true")
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: badger
  dir: from-file
sync:
  parallelism: 4
`)
	t.Setenv("MIRRORSYNC_STORAGE_BACKEND", "file")
	t.Setenv("MIRRORSYNC_STORAGE_DIR", "from-env")

	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"storage.dir": "from-flag"}),
	)

	var cfg testConfig
	cfg.Sync.DebounceWindow = "100ms"
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Backend != "file" {
		t.Errorf("Backend = %q, want env to override file", cfg.Storage.Backend)
	}
	if cfg.Storage.Dir != "from-flag" {
		t.Errorf("Dir = %q, want overrides to win", cfg.Storage.Dir)
	}
	if cfg.Sync.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want 4 from file", cfg.Sync.Parallelism)
	}
	if cfg.Sync.DebounceWindow != "100ms" {
		t.Errorf("DebounceWindow = %q, want default kept", cfg.Sync.DebounceWindow)
	}
}

func TestLoader_IsLoaded(t *testing.T) {
	l := NewLoader()
	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_AllAndKeys(t *testing.T) {
	l := NewLoader()
	l.LoadMap(map[string]any{
		"key1": "value1",
		"key2": "value2",
	})

	if all := l.All(); len(all) < 2 {
		t.Errorf("All() returned %d keys, want at least 2", len(all))
	}
	if keys := l.Keys(); len(keys) < 2 {
		t.Errorf("Keys() returned %d keys, want at least 2", len(keys))
	}
}

func TestLoader_GetInt(t *testing.T) {
	l := NewLoader()
	l.LoadMap(map[string]any{"sync.parallelism": 8})

	if n := l.GetInt("sync.parallelism"); n != 8 {
		t.Errorf("GetInt(sync.parallelism) = %d, want 8", n)
	}
}
