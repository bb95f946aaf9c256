package registry

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/infra/tlsroots"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/storage/filestore"
	"github.com/yndnr/mirrorsync/internal/storage/memory"
	"github.com/yndnr/mirrorsync/internal/storage/remote"
)

// OpenBackend constructs a backend of the given kind. reg, when not nil,
// receives backend-specific metrics.
func OpenBackend(kind string, cfg StorageConfig, logger *slog.Logger, reg prometheus.Registerer) (storage.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch kind {
	case KindBadger:
		bc := cfg.Badger
		if bc.Dir == "" {
			bc.Dir = cfg.Dir
		}
		b, err := storage.NewBadgerBackend(bc, logger)
		if err != nil {
			return nil, err
		}
		if reg != nil {
			b.RegisterMetrics(reg)
		}
		return b, nil

	case KindNuts:
		nc := cfg.Nuts
		if nc.Dir == "" {
			nc.Dir = cfg.Dir
		}
		return storage.NewNutsBackend(nc, logger)

	case KindFile:
		return filestore.New(cfg.Dir, filestore.WithLogger(logger))

	case KindMemory:
		return memory.New(), nil

	case KindRemote:
		opts := []remote.Option{remote.WithLogger(logger), remote.WithToken(cfg.Remote.Token)}
		if cfg.Remote.Timeout > 0 {
			opts = append(opts, remote.WithTimeout(cfg.Remote.Timeout))
		}
		if cfg.Remote.ReconnectDelay > 0 {
			opts = append(opts, remote.WithReconnectDelay(cfg.Remote.ReconnectDelay))
		}
		if cfg.Remote.CAFile != "" {
			tlsCfg, err := tlsroots.ClientConfig(cfg.Remote.CAFile)
			if err != nil {
				return nil, err
			}
			opts = append(opts, remote.WithTLSConfig(tlsCfg))
		}
		return remote.New(cfg.Remote.Address, opts...)

	case KindNoop:
		return storage.NewNoop(), nil
	}
	return nil, domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("unknown backend kind %q", kind))
}

// Candidate returns a probe candidate that opens a backend of kind.
func Candidate(kind string, cfg StorageConfig, logger *slog.Logger, reg prometheus.Registerer) storage.Candidate {
	return storage.Candidate{
		Name: kind,
		Open: func() (storage.Backend, error) {
			return OpenBackend(kind, cfg, logger, reg)
		},
	}
}
