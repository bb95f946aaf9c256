package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yndnr/mirrorsync/internal/mirror"
	"github.com/yndnr/mirrorsync/internal/registry"
)

// ChangeFunc receives external changes seen by the open mirror.
type ChangeFunc func(provider, key string, removed bool)

// Manager opens the registry lazily and hands out the selected provider.
type Manager struct {
	cfg      registry.Config
	provider string
	logger   *slog.Logger

	mu       sync.Mutex
	reg      *registry.Registry
	onChange ChangeFunc
}

// NewManager creates a manager for the provider named provider.
func NewManager(cfg registry.Config, provider string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, provider: provider, logger: logger}
}

// ProviderName returns the selected provider name.
func (m *Manager) ProviderName() string { return m.provider }

// OnChange sets the callback for external changes. It only takes effect
// when set before the registry is opened.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Registry opens the registry on first call.
func (m *Manager) Registry() (*registry.Registry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reg != nil {
		return m.reg, nil
	}

	reg, err := registry.New(m.cfg, registry.Options{
		Logger:           m.logger,
		OnExternalChange: m.dispatch,
	})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	m.reg = reg
	return reg, nil
}

func (m *Manager) dispatch(provider, key string, removed bool) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(provider, key, removed)
	}
}

// Provider returns the selected provider.
func (m *Manager) Provider() (*registry.Provider, error) {
	reg, err := m.Registry()
	if err != nil {
		return nil, err
	}
	return reg.Provider(m.provider)
}

// Mirror returns the loaded mirror of the selected provider.
func (m *Manager) Mirror(ctx context.Context) (*mirror.Mirror, error) {
	p, err := m.Provider()
	if err != nil {
		return nil, err
	}
	return p.Mirror(ctx)
}

// IsOpen reports whether the registry has been opened.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg != nil
}

// Close flushes and closes everything opened. The manager can be reopened.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	reg := m.reg
	m.reg = nil
	m.mu.Unlock()

	if reg == nil {
		return nil
	}
	return reg.Close(ctx)
}
