package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/yndnr/mirrorsync/internal/core/domain"
)

func TestConfig_Verify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"file", func(c *Config) { c.Storage.Durable = KindFile }, false},
		{"nutsdb", func(c *Config) { c.Storage.Durable = KindNuts }, false},
		{"nutsdb without dir", func(c *Config) { c.Storage.Durable = KindNuts; c.Storage.Dir = "" }, true},
		{"memory without dir", func(c *Config) { c.Storage.Durable = KindMemory; c.Storage.Dir = "" }, false},
		{"badger in memory", func(c *Config) {
			c.Storage.Durable = KindBadger
			c.Storage.Dir = ""
			c.Storage.Badger.InMemory = true
		}, false},
		{"file ignores badger in memory", func(c *Config) { c.Storage.Dir = ""; c.Storage.Badger.InMemory = true }, true},
		{"missing dir", func(c *Config) { c.Storage.Dir = "" }, true},
		{"unknown durable", func(c *Config) { c.Storage.Durable = "redis" }, true},
		{"negative window", func(c *Config) { c.Sync.DebounceWindow = -time.Second }, true},
		{"negative parallelism", func(c *Config) { c.Sync.Parallelism = -1 }, true},
		{"unknown format", func(c *Config) { c.Codec.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/tmp/mirrorsync")
			tt.modify(&cfg)
			err := cfg.Verify()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Verify() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestCodecConfig_NewCodec(t *testing.T) {
	plain, err := CodecConfig{KeyPrefix: "p-", Format: "json"}.NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	if got := plain.Encode("k"); got != "p-k" {
		t.Errorf("Encode(k) = %q", got)
	}
	if s, _ := plain.Serialize("v"); s != `"v"` {
		t.Errorf("Serialize(v) = %q", s)
	}

	sealed, err := CodecConfig{Format: "json", SealKey: "correct horse", Cipher: "chacha20-poly1305"}.NewCodec()
	if err != nil {
		t.Fatalf("NewCodec(sealed) error: %v", err)
	}
	wire, err := sealed.Serialize(map[string]any{"secret": "x"})
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if wire == `{"secret":"x"}` {
		t.Error("sealed codec stored plaintext")
	}
	back, err := sealed.Deserialize(wire)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if m, ok := back.(map[string]any); !ok || m["secret"] != "x" {
		t.Errorf("round trip = %v", back)
	}

	if _, err := (CodecConfig{Format: "json", SealKey: "k", Cipher: "rot13"}).NewCodec(); err == nil {
		t.Error("unknown cipher accepted")
	}
}
