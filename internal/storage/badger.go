package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/pb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/mirrorsync/internal/core/domain"
)

// badgerMetaValue is the user meta byte carried by every Set. Deletes carry
// none, which tells them apart from a set of an empty value in the feed.
const badgerMetaValue byte = 0x01

// BadgerConfig configures the durable Badger backend.
type BadgerConfig struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string `koanf:"dir" yaml:"dir"`

	// InMemory runs Badger without touching disk.
	InMemory bool `koanf:"in_memory" yaml:"in_memory"`

	// CacheSize is the block cache size in bytes.
	CacheSize int64 `koanf:"cache_size" yaml:"cache_size"`

	// ValueLogFileSize is the maximum size of a value log file.
	ValueLogFileSize int64 `koanf:"value_log_file_size" yaml:"value_log_file_size"`

	// SyncWrites makes every write durable before returning.
	SyncWrites bool `koanf:"sync_writes" yaml:"sync_writes"`

	// GCInterval is the value log GC period. Zero disables the loop.
	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval"`

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	GCThreshold float64 `koanf:"gc_threshold" yaml:"gc_threshold"`
}

// DefaultBadgerConfig returns settings sized for small state records.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		CacheSize:        16 << 20,
		ValueLogFileSize: 64 << 20,
		SyncWrites:       true,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
	}
}

// BadgerBackend is the durable backend built on Badger v3.
//
// Badger holds an exclusive directory lock, so a database directory serves
// one process; a second open fails with ErrBackendLocked. Other processes
// reach it through mirrorsync-server, or share a directory with filestore.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger
	closed atomic.Bool

	lastGCTime       atomic.Int64
	gcBytesReclaimed atomic.Uint64

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge

	watchMu sync.Mutex
	watches map[uint64]context.CancelFunc
	nextID  uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerBackend opens the database described by cfg.
func NewBadgerBackend(cfg BadgerConfig, logger *slog.Logger) (*BadgerBackend, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "directory lock") {
			return nil, domain.ErrBackendLocked.WithDetails(
				fmt.Sprintf("badger directory %s is in use; use the file backend to share state between processes", cfg.Dir)).WithCause(err)
		}
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	b := &BadgerBackend{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		watches: make(map[uint64]context.CancelFunc),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go b.gcLoop()

	logger.Info("badger backend opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return b, nil
}

// Name implements Named.
func (b *BadgerBackend) Name() string { return "badger" }

// Get retrieves the value stored under key.
func (b *BadgerBackend) Get(_ context.Context, key string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, domain.ErrBackendClosed
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger: get %q: %w", key, err)
	}
	return string(value), true, nil
}

// Set stores value under key.
func (b *BadgerBackend) Set(_ context.Context, key, value string) error {
	if b.closed.Load() {
		return domain.ErrBackendClosed
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), []byte(value)).WithMeta(badgerMetaValue))
	})
	if err != nil {
		return fmt.Errorf("badger: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (b *BadgerBackend) Remove(_ context.Context, key string) error {
	if b.closed.Load() {
		return domain.ErrBackendClosed
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger: remove %q: %w", key, err)
	}
	return nil
}

// Keys lists every key with a key-only iteration.
func (b *BadgerBackend) Keys(ctx context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, domain.ErrBackendClosed
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: keys: %w", err)
	}
	return keys, nil
}

// Watch subscribes fn to every committed write. A write without the value
// meta byte is a delete; entries from before the byte existed fall back to
// treating an empty value as one.
func (b *BadgerBackend) Watch(fn func(Change)) (func(), error) {
	if b.closed.Load() {
		return nil, domain.ErrBackendClosed
	}

	ctx, cancel := context.WithCancel(context.Background())

	b.watchMu.Lock()
	id := b.nextID
	b.nextID++
	b.watches[id] = cancel
	b.watchMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := b.db.Subscribe(ctx, func(list *badger.KVList) error {
			for _, kv := range list.Kv {
				c := Change{Key: string(kv.Key)}
				if isBadgerDelete(kv) {
					c.Removed = true
				} else {
					c.NewValue = string(kv.Value)
				}
				fn(c)
			}
			return nil
		}, []pb.Match{{Prefix: nil}})
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Warn("badger subscription ended", "error", err)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.watchMu.Lock()
			delete(b.watches, id)
			b.watchMu.Unlock()
			cancel()
			<-done
		})
	}
	return stop, nil
}

func isBadgerDelete(kv *pb.KV) bool {
	if len(kv.Meta) > 0 && kv.Meta[0]&badgerMetaValue != 0 {
		return false
	}
	return len(kv.Value) == 0
}

// GC runs value log garbage collection until nothing more can be rewritten.
func (b *BadgerBackend) GC(_ context.Context) (uint64, error) {
	start := time.Now()

	var reclaimed uint64
	for {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return reclaimed, fmt.Errorf("badger: gc: %w", err)
		}
		// Badger does not report exact figures; one rewrite is roughly a file.
		reclaimed += uint64(b.cfg.ValueLogFileSize)
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcBytesReclaimed.Add(reclaimed)

	b.logger.Debug("badger gc completed",
		"bytes_reclaimed", reclaimed,
		"elapsed", time.Since(start))

	return reclaimed, nil
}

// Size returns the LSM and value log sizes in bytes.
func (b *BadgerBackend) Size() (lsm, vlog int64) {
	return b.db.Size()
}

// Close stops watches and the GC loop, then closes the database.
func (b *BadgerBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.watchMu.Lock()
	for id, cancel := range b.watches {
		cancel()
		delete(b.watches, id)
	}
	b.watchMu.Unlock()

	close(b.stopCh)
	<-b.doneCh

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("badger: close db: %w", err)
	}
	b.logger.Info("badger backend closed")
	return nil
}

// RegisterMetrics registers size gauges with reg and keeps them current.
// Returns the backend for method chaining.
func (b *BadgerBackend) RegisterMetrics(reg prometheus.Registerer) *BadgerBackend {
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mirrorsync",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mirrorsync",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	b.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mirrorsync",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})

	reg.MustRegister(b.metricsLSMSize, b.metricsValueLogSize, b.metricsLastGCTime)
	b.updateMetrics()
	return b
}

func (b *BadgerBackend) updateMetrics() {
	if b.metricsLSMSize == nil || b.closed.Load() {
		return
	}
	lsm, vlog := b.db.Size()
	b.metricsLSMSize.Set(float64(lsm))
	b.metricsValueLogSize.Set(float64(vlog))
	if t := b.lastGCTime.Load(); t > 0 {
		b.metricsLastGCTime.Set(float64(t) / 1000.0)
	}
}

// gcLoop runs periodic garbage collection and refreshes size gauges.
func (b *BadgerBackend) gcLoop() {
	defer close(b.doneCh)

	if b.cfg.GCInterval <= 0 || b.cfg.InMemory {
		<-b.stopCh
		return
	}

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()
			b.updateMetrics()

		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
