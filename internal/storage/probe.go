package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/mirrorsync/internal/core/domain"
)

// ProbeKeyPrefix marks the throwaway key written by Probe.
const ProbeKeyPrefix = "__"

// Capability is the outcome of probing a backend.
type Capability struct {
	// Name identifies the probed backend.
	Name string

	// Usable reports whether a write and a remove both succeeded.
	Usable bool

	// Err holds the reason the backend is unusable.
	Err error

	// Latency is the round-trip time of the probe.
	Latency time.Duration
}

// String formats the capability for logs and CLI output.
func (c Capability) String() string {
	if c.Usable {
		return fmt.Sprintf("%s: usable (%s)", c.Name, c.Latency)
	}
	return fmt.Sprintf("%s: unusable: %v", c.Name, c.Err)
}

// Probe checks that b accepts a write and a remove of a harmless key.
// It never panics; a nil backend or a panicking one is reported as unusable.
func Probe(ctx context.Context, name string, b Backend) (c Capability) {
	c.Name = name
	if b == nil {
		c.Err = domain.ErrBackendUnavailable.WithDetails("no backend")
		return c
	}

	start := time.Now()
	defer func() {
		c.Latency = time.Since(start)
		if r := recover(); r != nil {
			c.Usable = false
			c.Err = unavailable(domain.ErrBackendPanic.WithDetails(fmt.Sprint(r)))
		}
	}()

	key := ProbeKeyPrefix + ulid.Make().String()
	if err := b.Set(ctx, key, key); err != nil {
		c.Err = unavailable(err)
		return c
	}
	if err := b.Remove(ctx, key); err != nil {
		c.Err = unavailable(err)
		return c
	}

	c.Usable = true
	return c
}

// Candidate is a named backend constructor considered by Select.
type Candidate struct {
	Name string
	Open func() (Backend, error)
}

// Select opens and probes candidates in order and returns the first usable
// backend wrapped by Guarded. When none is usable it returns Noop and logs
// exactly one warning. Unusable backends that were opened are closed.
func Select(ctx context.Context, logger *slog.Logger, candidates ...Candidate) (Backend, Capability) {
	if logger == nil {
		logger = slog.Default()
	}

	var last Capability
	for _, cand := range candidates {
		b, err := openCandidate(cand)
		if err != nil {
			last = Capability{Name: cand.Name, Err: unavailable(err)}
			logger.Debug("backend open failed", "backend", cand.Name, "error", err)
			continue
		}

		last = Probe(ctx, cand.Name, b)
		if last.Usable {
			logger.Debug("backend selected", "backend", cand.Name, "latency", last.Latency)
			return Guarded(b), last
		}
		logger.Debug("backend probe failed", "backend", cand.Name, "error", last.Err)
		if err := Close(b); err != nil {
			logger.Debug("close unusable backend", "backend", cand.Name, "error", err)
		}
	}

	logger.Warn("no usable storage backend, state will not persist", "last_error", last.Err)
	return NewNoop(), Capability{Name: "noop", Usable: false, Err: last.Err}
}

// unavailable wraps err so its reason shows in Capability.String.
func unavailable(err error) error {
	return domain.ErrBackendUnavailable.WithDetails(err.Error()).WithCause(err)
}

func openCandidate(c Candidate) (b Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.ErrBackendPanic.WithDetails(fmt.Sprint(r))
		}
	}()
	if c.Open == nil {
		return nil, fmt.Errorf("%s: no constructor", c.Name)
	}
	b, err = c.Open()
	if err == nil && b == nil {
		err = fmt.Errorf("%s: constructor returned nil", c.Name)
	}
	return b, err
}
