package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/infra/shutdown"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/storage/memory"
	"github.com/yndnr/mirrorsync/internal/telemetry/metric"
)

// Built-in provider names.
const (
	LocalStorage     = "localStorage"
	SessionStorage   = "sessionStorage"
	ExtensionStorage = "extensionStorage"
)

// Options carries the process-wide collaborators shared by every provider.
type Options struct {
	Logger *slog.Logger

	// Metrics, when set, receives sync metrics, mirror gauges and backend
	// gauges.
	Metrics *metric.Registry

	Clock            clockwork.Clock
	Focus            func() bool
	OnExternalChange func(provider, key string, removed bool)
}

type builtin struct {
	name       string
	flavor     domain.Flavor
	candidates []storage.Candidate
}

// Registry holds the named providers of one process.
type Registry struct {
	cfg     Config
	logger  *slog.Logger
	common  []ProviderOption
	session *memory.Store

	mu        sync.RWMutex
	providers map[string]*Provider
	order     []string
}

// New creates a registry with the built-in providers. Backends are opened
// lazily, on first use of each provider.
func New(cfg Config, o Options) (*Registry, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	r := &Registry{
		cfg:       cfg,
		logger:    o.Logger,
		session:   memory.New(),
		providers: make(map[string]*Provider),
	}

	var reg prometheus.Registerer
	r.common = []ProviderOption{
		WithLogger(o.Logger),
		WithClock(o.Clock),
		WithSync(cfg.Sync),
		WithFocus(o.Focus),
		WithOnExternalChange(o.OnExternalChange),
	}
	if o.Metrics != nil {
		reg = o.Metrics.Prometheus()
		collector := metric.NewCollector()
		reg.MustRegister(collector)
		r.common = append(r.common, WithMetrics(o.Metrics.Sync), WithCollector(collector))
	}

	builtins := []builtin{
		{LocalStorage, domain.FlavorDurable, []storage.Candidate{
			Candidate(cfg.Storage.Durable, cfg.Storage, o.Logger, reg),
		}},
		{SessionStorage, domain.FlavorSession, []storage.Candidate{
			{Name: KindMemory, Open: func() (storage.Backend, error) { return r.session, nil }},
		}},
	}
	if cfg.Storage.Remote.Address != "" {
		builtins = append(builtins, builtin{ExtensionStorage, domain.FlavorExtension, []storage.Candidate{
			Candidate(KindRemote, cfg.Storage, o.Logger, nil),
		}})
	}

	for _, b := range builtins {
		c, err := cfg.Codec.NewCodec()
		if err != nil {
			return nil, err
		}
		p := r.NewProvider(b.name, b.flavor, b.candidates, WithCodec(c))
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Config returns the configuration the registry was built from.
func (r *Registry) Config() Config { return r.cfg }

// NewProvider creates a provider carrying the registry's shared options.
// It still has to be registered.
func (r *Registry) NewProvider(name string, flavor domain.Flavor, candidates []storage.Candidate, opts ...ProviderOption) *Provider {
	all := make([]ProviderOption, 0, len(r.common)+len(opts))
	all = append(all, r.common...)
	all = append(all, opts...)
	return NewProvider(name, flavor, candidates, all...)
}

// Register adds a provider. Names are unique.
func (r *Registry) Register(p *Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.Name()]; ok {
		return domain.ErrProviderConflict.WithDetails(p.Name())
	}
	r.providers[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Provider returns the provider registered under name.
func (r *Registry) Provider(name string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.ErrProviderNotFound.WithDetails(name)
	}
	return p, nil
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Close closes every provider in reverse registration order.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	providers := make([]*Provider, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		providers = append(providers, r.providers[r.order[i]])
	}
	r.mu.RUnlock()

	var errs []error
	for _, p := range providers {
		if err := p.Close(ctx); err != nil {
			r.logger.Warn("close provider", "provider", p.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BindShutdown closes the registry, flushing every mirror, when h runs.
func (r *Registry) BindShutdown(h *shutdown.Handler) {
	h.OnShutdown(r.Close)
}
