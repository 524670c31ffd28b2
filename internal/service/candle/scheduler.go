package candle

import "time"

// schedEntry pairs a pending completion timer with the window start it was
// scheduled for, so stale fires can be told apart from live ones.
type schedEntry struct {
	timer *time.Timer
	start int64
}

// scheduler keeps at most one pending completion trigger per key. It has no
// lock of its own: the engine mutex guards buffer and timer state as one
// atomic unit, so every method here must be called with that lock held.
type scheduler struct {
	entries map[key]*schedEntry
}

func newScheduler() *scheduler {
	return &scheduler{entries: make(map[key]*schedEntry)}
}

// schedule arms a completion trigger for the window starting at start. A prior
// trigger for the same key is cancelled first.
func (s *scheduler) schedule(k key, start int64, delay time.Duration, fire func()) {
	if prev, ok := s.entries[k]; ok {
		prev.timer.Stop()
	}
	if delay < 0 {
		delay = 0
	}
	s.entries[k] = &schedEntry{timer: time.AfterFunc(delay, fire), start: start}
}

// cancel stops and removes the pending trigger for k, if any.
func (s *scheduler) cancel(k key) {
	if e, ok := s.entries[k]; ok {
		e.timer.Stop()
		delete(s.entries, k)
	}
}

// remove drops the entry for k only if it still belongs to the window starting
// at start. A timer that fired after its key was rescheduled must not clobber
// the replacement entry.
func (s *scheduler) remove(k key, start int64) {
	if e, ok := s.entries[k]; ok && e.start == start {
		delete(s.entries, k)
	}
}

func (s *scheduler) cancelAll() {
	for k, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, k)
	}
}

func (s *scheduler) count() int { return len(s.entries) }
