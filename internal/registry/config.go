package registry

import (
	"fmt"
	"time"

	"github.com/yndnr/mirrorsync/internal/codec"
	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/mirror"
	"github.com/yndnr/mirrorsync/internal/storage"
)

// Backend kinds accepted by OpenBackend.
const (
	KindBadger = "badger"
	KindFile   = "file"
	KindNuts   = "nutsdb"
	KindMemory = "memory"
	KindRemote = "remote"
	KindNoop   = "noop"
)

// Config holds the storage, sync and codec settings shared by the server
// and the CLI.
type Config struct {
	Storage StorageConfig `koanf:"storage" yaml:"storage"`
	Sync    SyncConfig    `koanf:"sync" yaml:"sync"`
	Codec   CodecConfig   `koanf:"codec" yaml:"codec"`
}

// StorageConfig selects and configures backends.
type StorageConfig struct {
	// Durable is the backend kind behind localStorage: file (default),
	// badger or nutsdb. Only file can be shared by several processes.
	Durable string `koanf:"durable" yaml:"durable"`

	// Dir is the data directory of the durable backend.
	Dir string `koanf:"dir" yaml:"dir"`

	Badger storage.BadgerConfig `koanf:"badger" yaml:"badger"`
	Nuts   storage.NutsConfig   `koanf:"nutsdb" yaml:"nutsdb"`
	Remote RemoteConfig         `koanf:"remote" yaml:"remote"`
}

// RemoteConfig configures the client of a mirrorsync-server.
type RemoteConfig struct {
	// Address enables extensionStorage when set.
	Address        string        `koanf:"address" yaml:"address"`
	Token          string        `koanf:"token" yaml:"token"`
	CAFile         string        `koanf:"ca_file" yaml:"ca_file"`
	Timeout        time.Duration `koanf:"timeout" yaml:"timeout"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay" yaml:"reconnect_delay"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	DebounceWindow time.Duration `koanf:"debounce_window" yaml:"debounce_window"`
	Parallelism    int           `koanf:"parallelism" yaml:"parallelism"`

	// TickInterval enables a periodic change check for hosts that mutate
	// values in place. Zero disables it.
	TickInterval time.Duration `koanf:"tick_interval" yaml:"tick_interval"`
}

// CodecConfig configures key namespacing and value encoding.
type CodecConfig struct {
	KeyPrefix string `koanf:"key_prefix" yaml:"key_prefix"`
	Format    string `koanf:"format" yaml:"format"`

	// SealKey enables encryption of stored values.
	SealKey string `koanf:"seal_key" yaml:"seal_key"`
	Cipher  string `koanf:"cipher" yaml:"cipher"`
}

// DefaultConfig returns the defaults for a data directory.
func DefaultConfig(dir string) Config {
	badgerCfg := storage.DefaultBadgerConfig(dir)
	return Config{
		Storage: StorageConfig{
			Durable: KindFile,
			Dir:     dir,
			Badger:  badgerCfg,
			Nuts:    storage.DefaultNutsConfig(dir),
			Remote: RemoteConfig{
				Timeout:        5 * time.Second,
				ReconnectDelay: time.Second,
			},
		},
		Sync: SyncConfig{
			DebounceWindow: mirror.DefaultWindow,
			Parallelism:    mirror.DefaultParallelism,
		},
		Codec: CodecConfig{
			KeyPrefix: codec.DefaultPrefix,
			Format:    codec.JSON.Name,
		},
	}
}

// Verify validates the configuration.
func (c *Config) Verify() error {
	switch c.Storage.Durable {
	case KindBadger, KindNuts, KindFile:
		if c.Storage.Dir == "" && !(c.Storage.Durable == KindBadger && c.Storage.Badger.InMemory) {
			return domain.ErrInvalidConfig.WithDetails("storage.dir is required for a durable backend")
		}
	case KindMemory, KindNoop:
	default:
		return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("storage.durable %q is not badger, nutsdb, file, memory or noop", c.Storage.Durable))
	}
	if c.Sync.DebounceWindow < 0 {
		return domain.ErrInvalidConfig.WithDetails("sync.debounce_window must not be negative")
	}
	if c.Sync.Parallelism < 0 {
		return domain.ErrInvalidConfig.WithDetails("sync.parallelism must not be negative")
	}
	if _, err := codec.FormatByName(c.Codec.Format); err != nil {
		return err
	}
	return nil
}

// NewCodec builds a codec from the settings.
func (c CodecConfig) NewCodec() (*codec.Codec, error) {
	format, err := codec.FormatByName(c.Format)
	if err != nil {
		return nil, err
	}
	if c.SealKey != "" {
		if format, err = codec.SealedFromSecret(format, c.SealKey, c.Cipher); err != nil {
			return nil, fmt.Errorf("seal values: %w", err)
		}
	}

	cd := codec.New()
	cd.SetKeyPrefix(c.KeyPrefix)
	if err := cd.SetSerializer(format.Serialize); err != nil {
		return nil, err
	}
	if err := cd.SetDeserializer(format.Deserialize); err != nil {
		return nil, err
	}
	return cd, nil
}
