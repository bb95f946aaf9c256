package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler debounces writebacks. At most one writeback is pending at a
// time; further checks while one is pending are absorbed by it.
type Scheduler struct {
	clock  clockwork.Clock
	window time.Duration
	fire   func()

	mu      sync.Mutex
	pending bool
	stopped bool
	timer   clockwork.Timer
}

func newScheduler(clock clockwork.Clock, window time.Duration, fire func()) *Scheduler {
	return &Scheduler{clock: clock, window: window, fire: fire}
}

// Window returns the debounce window.
func (s *Scheduler) Window() time.Duration { return s.window }

// Check arms the timer unless a writeback is already pending.
func (s *Scheduler) Check() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.pending {
		return
	}
	s.pending = true
	s.timer = s.clock.AfterFunc(s.window, s.fire)
}

// Pending reports whether a writeback is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// clear drops the pending token. The writeback calls it before reading
// state, so mutations made during the writeback arm a new one.
func (s *Scheduler) clear() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}

// Stop disarms the timer and ignores later checks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Run calls Check every interval until ctx ends. It replaces an explicit
// hook for hosts that mutate values in place without telling the mirror.
// A non-positive interval uses the debounce window.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.window
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Check()
		}
	}
}
