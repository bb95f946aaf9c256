package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/xujiajun/nutsdb"

	"github.com/yndnr/mirrorsync/internal/core/domain"
)

// nutsBucket holds every mirrorsync key.
const nutsBucket = "mirrorsync"

// NutsConfig configures the NutsDB backend.
type NutsConfig struct {
	// Dir is the database directory. Falls back to storage.dir.
	Dir string `koanf:"dir" yaml:"dir"`

	// SegmentSize is the size of one data file in bytes.
	SegmentSize int64 `koanf:"segment_size" yaml:"segment_size"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `koanf:"sync_writes" yaml:"sync_writes"`

	// MergeEvery merges data files after that many removals. Zero disables it.
	MergeEvery int `koanf:"merge_every" yaml:"merge_every"`
}

// DefaultNutsConfig returns settings sized for small state records.
func DefaultNutsConfig(dir string) NutsConfig {
	return NutsConfig{
		Dir:         dir,
		SegmentSize: 8 << 20,
		SyncWrites:  true,
		MergeEvery:  256,
	}
}

// NutsBackend is a durable backend built on NutsDB.
//
// Values are cached in memory and written through on every mutation; the
// database is only read when the backend opens.
type NutsBackend struct {
	db     *nutsdb.DB
	cfg    NutsConfig
	logger *slog.Logger
	closed atomic.Bool

	mu       sync.RWMutex
	values   map[string]string
	removals int
}

// NewNutsBackend opens the database described by cfg and loads its keys.
func NewNutsBackend(cfg NutsConfig, logger *slog.Logger) (*NutsBackend, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("nutsdb: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := nutsdb.DefaultOptions
	opts.Dir = cfg.Dir
	if cfg.SegmentSize > 0 {
		opts.SegmentSize = cfg.SegmentSize
	}
	opts.SyncEnable = cfg.SyncWrites

	db, err := nutsdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("nutsdb: open db: %w", err)
	}

	n := &NutsBackend{
		db:     db,
		cfg:    cfg,
		logger: logger,
		values: make(map[string]string),
	}
	if err := n.load(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("nutsdb backend opened", "dir", cfg.Dir, "keys", len(n.values))
	return n, nil
}

// load reads the bucket into the cache. The bucket only exists while it
// holds at least one key.
func (n *NutsBackend) load() error {
	return n.db.View(func(tx *nutsdb.Tx) error {
		exists := false
		if err := tx.IterateBuckets(nutsdb.DataStructureBPTree, "*", func(bucket string) bool {
			if bucket == nutsBucket {
				exists = true
				return false
			}
			return true
		}); err != nil {
			return fmt.Errorf("nutsdb: list buckets: %w", err)
		}
		if !exists {
			return nil
		}

		entries, err := tx.GetAll(nutsBucket)
		if err != nil {
			return fmt.Errorf("nutsdb: load keys: %w", err)
		}
		for _, e := range entries {
			n.values[string(e.Key)] = string(e.Value)
		}
		return nil
	})
}

// Name implements Named.
func (n *NutsBackend) Name() string { return "nutsdb" }

// Get returns the cached value of key.
func (n *NutsBackend) Get(_ context.Context, key string) (string, bool, error) {
	if n.closed.Load() {
		return "", false, domain.ErrBackendClosed
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	v, ok := n.values[key]
	return v, ok, nil
}

// Set commits value under key, then updates the cache.
func (n *NutsBackend) Set(_ context.Context, key, value string) error {
	if n.closed.Load() {
		return domain.ErrBackendClosed
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(nutsBucket, []byte(key), []byte(value), 0)
	})
	if err != nil {
		return fmt.Errorf("nutsdb: set %q: %w", key, err)
	}
	n.values[key] = value
	return nil
}

// Remove deletes key. Removing the last key drops the bucket.
func (n *NutsBackend) Remove(_ context.Context, key string) error {
	if n.closed.Load() {
		return domain.ErrBackendClosed
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.values[key]; !ok {
		return nil
	}
	last := len(n.values) == 1

	err := n.db.Update(func(tx *nutsdb.Tx) error {
		if last {
			return tx.DeleteBucket(nutsdb.DataStructureBPTree, nutsBucket)
		}
		return tx.Delete(nutsBucket, []byte(key))
	})
	if err != nil {
		return fmt.Errorf("nutsdb: remove %q: %w", key, err)
	}
	delete(n.values, key)

	n.removals++
	if n.cfg.MergeEvery > 0 && n.removals%n.cfg.MergeEvery == 0 {
		n.merge()
	}
	return nil
}

// Keys lists every key in sorted order.
func (n *NutsBackend) Keys(_ context.Context) ([]string, error) {
	if n.closed.Load() {
		return nil, domain.ErrBackendClosed
	}
	n.mu.RLock()
	keys := make([]string, 0, len(n.values))
	for k := range n.values {
		keys = append(keys, k)
	}
	n.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// merge compacts data files. Failure only costs disk space.
func (n *NutsBackend) merge() {
	if err := n.db.Merge(); err != nil {
		n.logger.Debug("nutsdb merge skipped", "error", err)
		return
	}
	n.logger.Debug("nutsdb merged", "removals", n.removals)
}

// Close closes the database. Safe to call twice.
func (n *NutsBackend) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.db.Close(); err != nil {
		return fmt.Errorf("nutsdb: close db: %w", err)
	}
	n.logger.Info("nutsdb backend closed")
	return nil
}
