package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/yndnr/mirrorsync/internal/codec"
	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/mirror"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/telemetry/metric"
)

// Provider is one named storage registration.
type Provider struct {
	name       string
	flavor     domain.Flavor
	candidates []storage.Candidate
	codec      *codec.Codec

	logger     *slog.Logger
	metrics    *metric.SyncMetrics
	collector  *metric.Collector
	clock      clockwork.Clock
	sync       SyncConfig
	focus      func() bool
	onExternal func(provider, key string, removed bool)

	mu         sync.Mutex
	probed     bool
	backend    storage.Backend
	capability storage.Capability
	mirror     *mirror.Mirror
	notifier   *mirror.Notifier
	stopTick   context.CancelFunc
	closed     bool
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCodec replaces the default codec.
func WithCodec(c *codec.Codec) ProviderOption {
	return func(p *Provider) {
		if c != nil {
			p.codec = c
		}
	}
}

// WithMetrics records sync activity.
func WithMetrics(m *metric.SyncMetrics) ProviderOption {
	return func(p *Provider) { p.metrics = m }
}

// WithCollector exports mirror gauges.
func WithCollector(c *metric.Collector) ProviderOption {
	return func(p *Provider) { p.collector = c }
}

// WithClock sets the clock of the debounce scheduler.
func WithClock(c clockwork.Clock) ProviderOption {
	return func(p *Provider) { p.clock = c }
}

// WithSync sets sync engine tuning.
func WithSync(cfg SyncConfig) ProviderOption {
	return func(p *Provider) { p.sync = cfg }
}

// WithFocus sets the function reporting whether this process is the one
// currently interacting with the state.
func WithFocus(fn func() bool) ProviderOption {
	return func(p *Provider) { p.focus = fn }
}

// WithOnExternalChange registers the callback run after a change from
// another context has been applied to the provider's mirror.
func WithOnExternalChange(fn func(provider, key string, removed bool)) ProviderOption {
	return func(p *Provider) { p.onExternal = fn }
}

// NewProvider creates a provider whose backend is the first usable
// candidate, or the no-op backend if none is.
func NewProvider(name string, flavor domain.Flavor, candidates []storage.Candidate, opts ...ProviderOption) *Provider {
	p := &Provider{
		name:       name,
		flavor:     flavor,
		candidates: candidates,
		codec:      codec.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("provider", name)
	return p
}

// Name returns the registration name.
func (p *Provider) Name() string { return p.name }

// Flavor returns the lifetime class of the provider's storage.
func (p *Provider) Flavor() domain.Flavor { return p.flavor }

// Codec returns the provider's codec.
func (p *Provider) Codec() *codec.Codec { return p.codec }

// SetKeyPrefix sets the namespace prefix of physical keys.
func (p *Provider) SetKeyPrefix(prefix string) { p.codec.SetKeyPrefix(prefix) }

// SetSerializer sets the value serializer.
func (p *Provider) SetSerializer(fn codec.Serializer) error { return p.codec.SetSerializer(fn) }

// SetDeserializer sets the value deserializer.
func (p *Provider) SetDeserializer(fn codec.Deserializer) error { return p.codec.SetDeserializer(fn) }

// Configure applies untyped codec settings.
func (p *Provider) Configure(settings map[string]any) error { return p.codec.Configure(settings) }

// Backend returns the selected backend, probing candidates on first use.
func (p *Provider) Backend(ctx context.Context) storage.Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backendLocked(ctx)
}

func (p *Provider) backendLocked(ctx context.Context) storage.Backend {
	if !p.probed {
		p.backend, p.capability = storage.Select(ctx, p.logger, p.candidates...)
		p.probed = true
	}
	return p.backend
}

// Capability reports whether the provider's storage is usable.
func (p *Provider) Capability(ctx context.Context) storage.Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backendLocked(ctx)
	return p.capability
}

// Get reads one logical key straight from the backend, bypassing the mirror.
func (p *Provider) Get(ctx context.Context, key string) (any, bool, error) {
	b, err := p.open(ctx)
	if err != nil {
		return nil, false, err
	}
	raw, found, err := b.Get(ctx, p.codec.Encode(key))
	if err != nil || !found {
		return nil, false, err
	}
	v, err := p.codec.Deserialize(raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set writes one logical key straight to the backend, bypassing the mirror.
// A nil value removes the key.
func (p *Provider) Set(ctx context.Context, key string, v any) error {
	b, err := p.open(ctx)
	if err != nil {
		return err
	}
	if v == nil {
		return b.Remove(ctx, p.codec.Encode(key))
	}
	raw, err := p.codec.Serialize(v)
	if err != nil {
		return err
	}
	return b.Set(ctx, p.codec.Encode(key), raw)
}

func (p *Provider) open(ctx context.Context) (storage.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, domain.ErrBackendClosed
	}
	return p.backendLocked(ctx), nil
}

// Mirror returns the provider's mirror, creating and loading it on first
// call. Every call returns the same mirror.
func (p *Provider) Mirror(ctx context.Context) (*mirror.Mirror, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, domain.ErrBackendClosed
	}
	if p.mirror != nil {
		return p.mirror, nil
	}

	b := p.backendLocked(ctx)
	opts := []mirror.Option{
		mirror.WithName(p.name),
		mirror.WithLogger(p.logger),
		mirror.WithMetrics(p.metrics),
		mirror.WithClock(p.clock),
		mirror.WithWindow(p.sync.DebounceWindow),
		mirror.WithParallelism(p.sync.Parallelism),
	}
	if p.onExternal != nil {
		name, fn := p.name, p.onExternal
		opts = append(opts, mirror.WithOnExternalChange(func(key string, removed bool) {
			fn(name, key, removed)
		}))
	}

	m := mirror.New(b, p.codec, opts...)
	m.Load(ctx)

	if w, ok := b.(storage.Watchable); ok {
		var nopts []mirror.NotifierOption
		if p.focus != nil {
			nopts = append(nopts, mirror.WithFocus(p.focus))
		}
		if o, ok := storage.Unwrap(b).(interface{ Origin() string }); ok {
			nopts = append(nopts, mirror.WithOrigin(o.Origin()))
		}
		n := mirror.NewNotifier(m, nopts...)
		if err := n.Attach(w); err != nil {
			p.logger.Warn("change feed unavailable, updates from other contexts will not be seen", "error", err)
		} else {
			p.notifier = n
		}
	}

	if p.sync.TickInterval > 0 {
		tickCtx, cancel := context.WithCancel(context.Background())
		p.stopTick = cancel
		go m.Scheduler().Run(tickCtx, p.sync.TickInterval)
	}

	if p.collector != nil {
		p.collector.Track(p.name, m.MetricStats)
	}

	p.logger.Debug("mirror ready", "backend", storage.NameOf(b), "keys", m.Len())
	p.mirror = m
	return m, nil
}

// Notifier returns the change notifier of the mirror, or nil when the
// mirror does not exist yet or its backend has no change feed.
func (p *Provider) Notifier() *mirror.Notifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notifier
}

// Close flushes the mirror, detaches it and releases the backend.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.stopTick != nil {
		p.stopTick()
	}
	if p.notifier != nil {
		p.notifier.Close()
	}
	if p.mirror != nil {
		p.mirror.Flush(ctx)
		p.mirror.Close()
		if p.collector != nil {
			p.collector.Untrack(p.name)
		}
	}
	if p.backend != nil {
		return storage.Close(p.backend)
	}
	return nil
}
