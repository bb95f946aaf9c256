package mirror

import (
	"context"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/internal/telemetry/metric"
)

// Load reads every key of this mirror's namespace from the backend and
// stores the values, overwriting fields of the same name. Fetches run
// concurrently and are all awaited. Keys that fail to read or deserialize
// are skipped.
func (m *Mirror) Load(ctx context.Context) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	m.loadLocked(ctx)
}

// Resync rereads the store after its change feed was interrupted. It loads
// like Load, then drops keys that were removed from the backend meanwhile.
// A key changed locally since the last writeback is kept and will be
// written again.
func (m *Mirror) Resync(ctx context.Context) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	present, ok := m.loadLocked(ctx)
	if !ok {
		return
	}

	var dropped []string
	m.mu.Lock()
	for logical, wire := range m.snapshot {
		if _, ok := present[logical]; ok {
			continue
		}
		delete(m.snapshot, logical)
		if cur, err := m.codec.Serialize(m.data[logical]); err == nil && cur == wire {
			delete(m.data, logical)
			dropped = append(dropped, logical)
		}
	}
	m.mu.Unlock()

	m.logger.Debug("mirror resynced", "dropped", len(dropped))
	if m.onExternal != nil {
		for _, k := range dropped {
			m.onExternal(k, true)
		}
	}
}

// loadLocked is Load with syncMu held. It returns the logical keys the
// backend listed, and false when they could not be enumerated.
func (m *Mirror) loadLocked(ctx context.Context) (map[string]struct{}, bool) {
	physical, err := m.backend.Keys(ctx)
	m.metrics.BackendOp(metric.OpKeys, err)
	if err != nil {
		m.fail("enumerate keys", "", err)
		return nil, false
	}

	type entry struct {
		logical string
		wire    string
		found   bool
	}
	var entries []entry
	var toFetch []string
	present := make(map[string]struct{})
	for _, p := range physical {
		if logical, ok := m.codec.Decode(p); ok && !IsControl(logical) {
			entries = append(entries, entry{logical: logical})
			toFetch = append(toFetch, p)
			present[logical] = struct{}{}
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(m.parallelism)
	for i, p := range toFetch {
		g.Go(func() error {
			value, found, err := m.backend.Get(ctx, p)
			m.metrics.BackendOp(metric.OpGet, err)
			if err != nil {
				m.fail("read", p, err)
				return nil
			}
			entries[i].wire, entries[i].found = value, found
			return nil
		})
	}
	g.Wait()

	loaded := 0
	m.mu.Lock()
	for _, e := range entries {
		if !e.found {
			continue
		}
		v, err := m.codec.Deserialize(e.wire)
		if err != nil {
			m.logger.Debug("skipping undecodable value", "key", e.logical, "error", err)
			continue
		}
		m.data[e.logical] = v
		m.snapshot[e.logical] = e.wire
		loaded++
	}
	m.mu.Unlock()

	m.metrics.LoadedKeys(loaded)
	m.logger.Debug("mirror loaded", "keys", loaded, "backend_keys", len(physical))
	return present, true
}

// Writeback persists the record if it differs from the snapshot. It writes
// every non-control key holding a non-nil value, then removes the keys that
// are gone. The snapshot becomes the state captured at the start.
// Only one writeback performs I/O at a time.
func (m *Mirror) Writeback(ctx context.Context) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	m.writebackLocked(ctx)
}

// Flush runs a writeback immediately, bypassing the debounce window.
func (m *Mirror) Flush(ctx context.Context) {
	m.Writeback(ctx)
}

func (m *Mirror) fire() {
	m.Writeback(context.Background())
}

// writebackLocked is Writeback with syncMu held.
func (m *Mirror) writebackLocked(ctx context.Context) {
	m.sched.clear()

	m.mu.Lock()
	current := m.serializeLocked()
	if maps.Equal(current, m.snapshot) {
		m.mu.Unlock()
		m.stats.noops.Add(1)
		m.metrics.Writeback(false, 0)
		return
	}
	leftover := maps.Clone(m.snapshot)
	m.mu.Unlock()

	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(m.parallelism)
	for logical, wire := range current {
		delete(leftover, logical)
		physical := m.codec.Encode(logical)
		m.echoes.expectSet(physical, wire)
		g.Go(func() error {
			err := m.backend.Set(ctx, physical, wire)
			m.metrics.BackendOp(metric.OpSet, err)
			if err != nil {
				m.echoes.forget(physical)
				m.fail("write", physical, err)
			}
			return nil
		})
	}
	g.Wait()

	m.removeAll(ctx, keysOf(leftover))

	m.mu.Lock()
	m.snapshot = current
	m.mu.Unlock()

	m.stats.writebacks.Add(1)
	m.metrics.Writeback(true, time.Since(start))
}

// serializeLocked returns the wire form of every persisted key. A value
// that fails to serialize keeps its snapshot entry, so its stored copy is
// neither rewritten nor removed. Caller holds mu.
func (m *Mirror) serializeLocked() map[string]string {
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		if IsControl(k) || v == nil {
			continue
		}
		wire, err := m.codec.Serialize(v)
		if err != nil {
			m.failLog.Do(func() {
				m.logger.Warn("value not serializable, leaving stored copy untouched", "key", k, "error", err)
			})
			if old, ok := m.snapshot[k]; ok {
				out[k] = old
			}
			continue
		}
		out[k] = wire
	}
	return out
}

// removeAll removes logical keys from the backend concurrently.
func (m *Mirror) removeAll(ctx context.Context, logical []string) {
	g := new(errgroup.Group)
	g.SetLimit(m.parallelism)
	for _, k := range logical {
		physical := m.codec.Encode(k)
		m.echoes.expectRemove(physical)
		g.Go(func() error {
			err := m.backend.Remove(ctx, physical)
			m.metrics.BackendOp(metric.OpRemove, err)
			if err != nil {
				m.echoes.forget(physical)
				m.fail("remove", physical, err)
			}
			return nil
		})
	}
	g.Wait()
}

// DefaultFill stores a deep copy of each default whose key is absent or nil,
// then writes back immediately. Existing values are never overridden.
func (m *Mirror) DefaultFill(ctx context.Context, defaults map[string]any) *Mirror {
	m.mu.Lock()
	for k, v := range defaults {
		if cur, ok := m.data[k]; !ok || cur == nil {
			m.data[k] = m.deepCopy(v)
		}
	}
	m.mu.Unlock()

	m.Writeback(ctx)
	return m
}

// Reset deletes every non-control key from memory and every key of this
// namespace from the backend, then applies DefaultFill with defaults.
func (m *Mirror) Reset(ctx context.Context, defaults map[string]any) *Mirror {
	m.syncMu.Lock()

	m.mu.Lock()
	doomed := make(map[string]struct{}, len(m.data))
	for k := range m.data {
		if !IsControl(k) {
			doomed[k] = struct{}{}
			delete(m.data, k)
		}
	}
	m.snapshot = make(map[string]string)
	m.mu.Unlock()

	// Keys written by other contexts since the last load belong to the
	// namespace too.
	physical, err := m.backend.Keys(ctx)
	m.metrics.BackendOp(metric.OpKeys, err)
	if err != nil {
		m.fail("enumerate keys", "", err)
	}
	for _, p := range physical {
		if logical, ok := m.codec.Decode(p); ok && !IsControl(logical) {
			doomed[logical] = struct{}{}
		}
	}

	m.removeAll(ctx, keysOf(doomed))
	m.syncMu.Unlock()

	return m.DefaultFill(ctx, defaults)
}

// fail records a swallowed backend failure.
func (m *Mirror) fail(op, key string, err error) {
	m.stats.failures.Add(1)
	if op == "write" || op == "remove" {
		err = domain.ErrBackendWriteFailure.WithCause(err)
	}
	m.failLog.Do(func() {
		m.logger.Warn("storage "+op+" failed", "key", key, "backend", storage.NameOf(m.backend), "error", err)
	})
}

func keysOf[V any](in map[string]V) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	return out
}
