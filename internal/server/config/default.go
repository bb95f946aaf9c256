package config

import (
	"github.com/yndnr/mirrorsync/internal/registry"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/telemetry/logger"
)

// Default configuration values.
const (
	DefaultHTTPAddr    = "127.0.0.1:7480"
	DefaultDataDir     = "/var/lib/mirrorsync-server/data"
	DefaultRateLimit   = 200
	DefaultRateBurst   = 400
	DefaultWatchBuffer = 256

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			RateLimit:   DefaultRateLimit,
			RateBurst:   DefaultRateBurst,
			AccessLog:   true,
			WatchBuffer: DefaultWatchBuffer,
		},
		Storage: StorageSection{
			Backend: registry.KindBadger,
			Dir:     DefaultDataDir,
			Badger:  storage.DefaultBadgerConfig(DefaultDataDir),
			Nuts:    storage.DefaultNutsConfig(DefaultDataDir),
		},
		Log: logger.Config{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
