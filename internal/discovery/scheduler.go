package discovery

import (
	"sync"
	"time"
)

// scheduler runs delayed callbacks that belong to a generation. Starting a new
// generation stops every timer of the previous one, so callbacks from an
// abandoned session never fire.
type scheduler struct {
	mu    sync.Mutex
	gen   uint64
	next  uint64
	tasks map[uint64]*time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{tasks: make(map[uint64]*time.Timer)}
}

// advance cancels all pending tasks and returns the new generation.
func (s *scheduler) advance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		t.Stop()
		delete(s.tasks, id)
	}
	s.gen++
	return s.gen
}

// after schedules fn to run after d if gen is still current at that point.
// It is a no-op for stale generations.
func (s *scheduler) after(gen uint64, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	id := s.next
	s.next++
	s.tasks[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, id)
		s.mu.Unlock()
		fn()
	})
}

// pending reports how many tasks of the current generation have not fired.
func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// stop cancels everything without starting a new generation.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		t.Stop()
		delete(s.tasks, id)
	}
}
