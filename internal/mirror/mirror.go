package mirror

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/copystructure"
	"golang.org/x/time/rate"

	"github.com/yndnr/mirrorsync/internal/codec"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/telemetry/metric"
)

// ControlPrefix marks keys that are never persisted or diffed.
const ControlPrefix = "$"

// Defaults.
const (
	DefaultWindow      = 100 * time.Millisecond
	DefaultParallelism = 16
	DefaultEchoTTL     = 5 * time.Second
)

// IsControl reports whether key is a control member.
func IsControl(key string) bool {
	return strings.HasPrefix(key, ControlPrefix)
}

// Mirror is the in-memory record of one provider.
type Mirror struct {
	name        string
	backend     storage.Backend
	codec       *codec.Codec
	logger      *slog.Logger
	metrics     *metric.SyncMetrics
	clock       clockwork.Clock
	window      time.Duration
	parallelism int
	onExternal  func(key string, removed bool)

	mu       sync.Mutex
	data     map[string]any
	snapshot map[string]string

	// syncMu serializes backend I/O of Load, Writeback and Reset.
	syncMu sync.Mutex

	sched   *Scheduler
	echoes  *echoSet
	closed  atomic.Bool
	failLog rate.Sometimes

	stats struct {
		writebacks atomic.Uint64
		noops      atomic.Uint64
		failures   atomic.Uint64
		applied    atomic.Uint64
		ignored    atomic.Uint64
		echoes     atomic.Uint64
	}
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithName labels the mirror in logs and metrics.
func WithName(name string) Option {
	return func(m *Mirror) { m.name = name }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records engine activity in metrics.
func WithMetrics(metrics *metric.SyncMetrics) Option {
	return func(m *Mirror) { m.metrics = metrics }
}

// WithClock sets the clock driving the debounce timer.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Mirror) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithWindow sets the debounce window.
func WithWindow(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithParallelism bounds concurrent backend calls within one pass.
func WithParallelism(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// WithOnExternalChange registers the host callback run after a change from
// another context has been applied. It runs on the backend's watch goroutine.
func WithOnExternalChange(fn func(key string, removed bool)) Option {
	return func(m *Mirror) { m.onExternal = fn }
}

// New creates an empty mirror over backend. It performs no I/O; call Load
// to populate it.
func New(backend storage.Backend, c *codec.Codec, opts ...Option) *Mirror {
	if backend == nil {
		backend = storage.NewNoop()
	}
	if c == nil {
		c = codec.New()
	}

	m := &Mirror{
		name:        "mirror",
		backend:     backend,
		codec:       c,
		logger:      slog.Default(),
		clock:       clockwork.NewRealClock(),
		window:      DefaultWindow,
		parallelism: DefaultParallelism,
		data:        make(map[string]any),
		snapshot:    make(map[string]string),
		failLog:     rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With("mirror", m.name)
	m.echoes = newEchoSet(m.clock, DefaultEchoTTL, !storage.FiltersOwnWrites(backend))
	m.sched = newScheduler(m.clock, m.window, m.fire)
	return m
}

// Name returns the mirror's label.
func (m *Mirror) Name() string { return m.name }

// Codec returns the codec in use.
func (m *Mirror) Codec() *codec.Codec { return m.codec }

// Backend returns the backend in use.
func (m *Mirror) Backend() storage.Backend { return m.backend }

// Scheduler returns the debounce scheduler.
func (m *Mirror) Scheduler() *Scheduler { return m.sched }

// Get returns the live value under key. Values that are maps or slices are
// shared with the mirror; call Check after changing them in place.
func (m *Mirror) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Set stores v under key and schedules a writeback.
func (m *Mirror) Set(key string, v any) {
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	m.Check()
}

// Delete removes key and schedules a writeback.
func (m *Mirror) Delete(key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	m.Check()
}

// Update runs fn with the live record under the mirror lock, then schedules
// a writeback. fn must not call other Mirror methods.
func (m *Mirror) Update(fn func(data map[string]any)) {
	m.mu.Lock()
	fn(m.data)
	m.mu.Unlock()
	m.Check()
}

// Keys returns the non-control keys in sorted order.
func (m *Mirror) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if !IsControl(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of non-control keys.
func (m *Mirror) Len() int {
	return len(m.Keys())
}

// Export returns a deep copy of the non-control contents.
func (m *Mirror) Export() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		if !IsControl(k) {
			out[k] = m.deepCopy(v)
		}
	}
	return out
}

// Check is the change-detection hook: it arms a debounced writeback unless
// one is already pending.
func (m *Mirror) Check() {
	if m.closed.Load() {
		return
	}
	m.sched.Check()
}

// Close stops the scheduler. It does not flush; call Flush first for a
// final writeback. Close does not close the backend.
func (m *Mirror) Close() {
	if m.closed.CompareAndSwap(false, true) {
		m.sched.Stop()
	}
}

// Stats is a point-in-time summary of mirror activity.
type Stats struct {
	Name             string
	Backend          string
	Keys             int
	Pending          bool
	Writebacks       uint64
	NoopWritebacks   uint64
	Failures         uint64
	ExternalApplied  uint64
	ExternalIgnored  uint64
	EchoesSuppressed uint64
}

// Stats returns activity counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Name:             m.name,
		Backend:          storage.NameOf(m.backend),
		Keys:             m.Len(),
		Pending:          m.sched.Pending(),
		Writebacks:       m.stats.writebacks.Load(),
		NoopWritebacks:   m.stats.noops.Load(),
		Failures:         m.stats.failures.Load(),
		ExternalApplied:  m.stats.applied.Load(),
		ExternalIgnored:  m.stats.ignored.Load(),
		EchoesSuppressed: m.stats.echoes.Load(),
	}
}

// MetricStats adapts Stats for metric.Collector.
func (m *Mirror) MetricStats() metric.MirrorStats {
	return metric.MirrorStats{Keys: m.Len(), Pending: m.sched.Pending()}
}

func (m *Mirror) deepCopy(v any) any {
	if v == nil {
		return nil
	}
	c, err := copystructure.Copy(v)
	if err != nil {
		m.logger.Debug("deep copy failed, sharing value", "error", err)
		return v
	}
	return c
}
