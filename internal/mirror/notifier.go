package mirror

import (
	"context"
	"sync"

	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/telemetry/metric"
)

// Notifier applies changes made by other contexts to a Mirror.
type Notifier struct {
	m      *Mirror
	focus  func() bool
	origin string

	mu    sync.Mutex
	stops []func()
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithFocus sets the function reporting whether this context is the one
// currently interacting. While it returns true, incoming changes are
// assumed to be this context's own and are ignored.
func WithFocus(fn func() bool) NotifierOption {
	return func(n *Notifier) { n.focus = fn }
}

// WithOrigin sets this context's writer identity. Changes stamped with it
// are ignored.
func WithOrigin(origin string) NotifierOption {
	return func(n *Notifier) { n.origin = origin }
}

// NewNotifier creates a Notifier for m.
func NewNotifier(m *Mirror, opts ...NotifierOption) *Notifier {
	n := &Notifier{m: m}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Attach subscribes to w's change feed.
func (n *Notifier) Attach(w storage.Watchable) error {
	stop, err := w.Watch(n.Handle)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.stops = append(n.stops, stop)
	n.mu.Unlock()
	return nil
}

// Handle processes one change notification.
func (n *Notifier) Handle(c storage.Change) {
	m := n.m
	if c.Resync {
		m.Resync(context.Background())
		return
	}
	if c.Key == "" {
		return
	}
	logical, ok := m.codec.Decode(c.Key)
	if !ok || IsControl(logical) {
		return
	}

	// Expectations are consumed before the focus and origin checks so an
	// ignored echo never leaves one behind. A change stamped by another
	// writer cannot be this mirror's echo.
	own := n.origin != "" && c.Origin == n.origin
	foreign := n.origin != "" && c.Origin != "" && !own
	if !foreign && m.echoes.consume(c.Key, c.NewValue, c.Removed) {
		m.stats.echoes.Add(1)
		m.metrics.ExternalChange(metric.ResultEcho)
		return
	}
	if own || (n.focus != nil && n.focus()) {
		n.ignored(metric.ResultIgnored)
		return
	}

	var value any
	if !c.Removed {
		v, err := m.codec.Deserialize(c.NewValue)
		if err != nil {
			m.logger.Debug("ignoring undecodable change", "key", logical, "error", err)
			n.ignored(metric.ResultIgnored)
			return
		}
		value = v
	}

	m.mu.Lock()
	if c.Removed {
		delete(m.data, logical)
	} else {
		m.data[logical] = value
	}
	m.snapshot = m.serializeLocked()
	m.mu.Unlock()

	m.stats.applied.Add(1)
	m.metrics.ExternalChange(metric.ResultApplied)
	m.logger.Debug("applied external change", "key", logical, "removed", c.Removed)

	if m.onExternal != nil {
		m.onExternal(logical, c.Removed)
	}
}

func (n *Notifier) ignored(result string) {
	n.m.stats.ignored.Add(1)
	n.m.metrics.ExternalChange(result)
}

// Close unsubscribes from every attached feed.
func (n *Notifier) Close() {
	n.mu.Lock()
	stops := n.stops
	n.stops = nil
	n.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}
