package mirror

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestScheduler_Check(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	s := newScheduler(clock, DefaultWindow, func() { fired.Add(1) })

	s.Check()
	s.Check()
	s.Check()
	if !s.Pending() {
		t.Fatal("Check should arm a writeback")
	}

	clock.Advance(DefaultWindow)
	waitFor(t, "timer", func() bool { return fired.Load() == 1 })

	// The writeback clears the token; until then further checks are absorbed.
	s.Check()
	clock.Advance(DefaultWindow)
	time.Sleep(10 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("fired %d times, want 1", n)
	}

	s.clear()
	s.Check()
	clock.Advance(DefaultWindow)
	waitFor(t, "second timer", func() bool { return fired.Load() == 2 })
}

func TestScheduler_Stop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	s := newScheduler(clock, DefaultWindow, func() { fired.Add(1) })

	s.Check()
	s.Stop()
	s.Check()
	clock.Advance(DefaultWindow)
	time.Sleep(10 * time.Millisecond)

	if fired.Load() != 0 {
		t.Error("stopped scheduler fired")
	}
	if s.Pending() {
		t.Error("stopped scheduler reports pending")
	}
}

func TestScheduler_Run(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	s := newScheduler(clock, DefaultWindow, func() { fired.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Second)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	waitFor(t, "tick", s.Pending)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_Window(t *testing.T) {
	s := newScheduler(clockwork.NewFakeClock(), 250*time.Millisecond, func() {})
	if s.Window() != 250*time.Millisecond {
		t.Errorf("Window() = %v", s.Window())
	}
}
