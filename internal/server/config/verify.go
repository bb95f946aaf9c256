package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"

	"github.com/yndnr/mirrorsync/internal/registry"
	"github.com/yndnr/mirrorsync/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not debug, info, warn or error", cfg.Log.Level)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}

	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.HTTP.TLSClientCAFile != "" && cfg.HTTP.TLSCertFile == "" {
		return errors.New("server.http.tls_client_ca_file requires tls_cert_file and tls_key_file")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile, cfg.HTTP.TLSClientCAFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("tls file: %w", err)
		}
	}

	for _, entry := range cfg.AllowList {
		var err error
		if strings.Contains(entry, "/") {
			_, err = netip.ParsePrefix(entry)
		} else {
			_, err = netip.ParseAddr(entry)
		}
		if err != nil {
			return fmt.Errorf("server.allow_list entry %q: %w", entry, err)
		}
	}

	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("server.rate_burst must be at least 1 when rate limiting")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case registry.KindMemory:
		return nil
	case registry.KindBadger:
		if cfg.Badger.InMemory {
			return nil
		}
	case registry.KindNuts, registry.KindFile:
	default:
		return fmt.Errorf("storage.backend %q is not badger, nutsdb, file or memory", cfg.Backend)
	}

	if cfg.Dir == "" {
		return errors.New("storage.dir is required")
	}

	// Check if data directory exists or can be created
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	return nil
}
