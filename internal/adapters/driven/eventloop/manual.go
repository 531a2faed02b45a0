package eventloop

import (
	"sort"
	"time"

	"github.com/custodia-labs/mirae/internal/core/ports/driven"
)

// Ensure Manual implements the interface.
var _ driven.EventLoop = (*Manual)(nil)

// Manual is a deterministic event loop with a fake clock.
// It is not safe for concurrent use.
type Manual struct {
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    int
}

// NewManual creates a manual loop whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Post queues fn.
func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// Go queues fn. Blocking work runs inline when the queue is drained.
func (m *Manual) Go(fn func()) {
	m.queue = append(m.queue, fn)
}

// AfterFunc registers fn to run when the clock reaches now+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) driven.Timer {
	m.seq++
	t := &manualTimer{at: m.now.Add(d), fn: fn, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// Now returns the fake clock time.
func (m *Manual) Now() time.Time {
	return m.now
}

// Step runs the next queued task. Returns false if the queue is empty.
func (m *Manual) Step() bool {
	if len(m.queue) == 0 {
		return false
	}
	fn := m.queue[0]
	m.queue = m.queue[1:]
	fn()
	return true
}

// RunUntilIdle runs queued tasks, including tasks they queue, until none remain.
// Returns the number of tasks run.
func (m *Manual) RunUntilIdle() int {
	n := 0
	for m.Step() {
		n++
	}
	return n
}

// Advance moves the clock forward by d, firing due timers in order and
// draining the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	m.RunUntilIdle()
	target := m.now.Add(d)
	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.at
		t.fired = true
		t.fn()
		m.RunUntilIdle()
	}
	m.now = target
}

// Pending returns the number of queued tasks.
func (m *Manual) Pending() int {
	return len(m.queue)
}

// PendingTimers returns the number of timers that have neither fired nor been stopped.
func (m *Manual) PendingTimers() int {
	m.prune()
	return len(m.timers)
}

// nextDue removes and returns the earliest timer due at or before target.
func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.prune()
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	t := m.timers[0]
	if t.at.After(target) {
		return nil
	}
	m.timers = m.timers[1:]
	return t
}

// prune drops stopped timers.
func (m *Manual) prune() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live
}

type manualTimer struct {
	at      time.Time
	fn      func()
	seq     int
	stopped bool
	fired   bool
}

// Stop prevents the timer from firing.
func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
