package config

import (
	"github.com/yndnr/mirrorsync/internal/registry"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/telemetry/logger"
)

// ServerConfig is the root configuration for mirrorsync-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Log     logger.Config  `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// AuthToken, when set, is required as a bearer token on RPC calls.
	AuthToken string `koanf:"auth_token"`

	// AllowList restricts clients to these IPs or CIDR blocks. Empty allows all.
	AllowList []string `koanf:"allow_list"`

	// CORSAllowedOrigins lists origins allowed to call from browsers.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RateLimit is the per-client request rate. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// AccessLog logs every request.
	AccessLog bool `koanf:"access_log"`

	// WatchBuffer is the number of changes buffered per watch stream.
	WatchBuffer int `koanf:"watch_buffer"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// TLSClientCAFile requires clients to present a certificate signed by
	// one of its CAs.
	TLSClientCAFile string `koanf:"tls_client_ca_file"`
}

// StorageSection selects the served backend.
type StorageSection struct {
	// Backend is badger, nutsdb, file or memory.
	Backend string               `koanf:"backend"`
	Dir     string               `koanf:"dir"`
	Badger  storage.BadgerConfig `koanf:"badger"`
	Nuts    storage.NutsConfig   `koanf:"nutsdb"`
}

// StorageConfig converts the section for registry.OpenBackend. Dir wins
// over badger.dir and nutsdb.dir.
func (s StorageSection) StorageConfig() registry.StorageConfig {
	b, n := s.Badger, s.Nuts
	if s.Dir != "" {
		b.Dir = s.Dir
		n.Dir = s.Dir
	}
	return registry.StorageConfig{
		Durable: s.Backend,
		Dir:     s.Dir,
		Badger:  b,
		Nuts:    n,
	}
}
