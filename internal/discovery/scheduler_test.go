package discovery

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerDropsStaleGenerations(t *testing.T) {
	s := newScheduler()
	defer s.stop()

	var fired atomic.Int32
	gen := s.advance()
	s.after(gen, 20*time.Millisecond, func() { fired.Add(1) })
	s.after(gen, 25*time.Millisecond, func() { fired.Add(1) })
	if got := s.pending(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	next := s.advance()
	if next != gen+1 {
		t.Fatalf("generation = %d, want %d", next, gen+1)
	}
	if got := s.pending(); got != 0 {
		t.Errorf("pending after advance = %d, want 0", got)
	}

	// Scheduling against the old generation is ignored.
	s.after(gen, time.Millisecond, func() { fired.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("%d stale callbacks fired", fired.Load())
	}
}

func TestSchedulerRunsCurrentGeneration(t *testing.T) {
	s := newScheduler()
	defer s.stop()

	done := make(chan struct{})
	gen := s.advance()
	s.after(gen, 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
	if got := s.pending(); got != 0 {
		t.Errorf("pending = %d, want 0", got)
	}
}
