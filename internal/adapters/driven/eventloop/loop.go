package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/mirae/internal/core/ports/driven"
)

// Ensure Loop implements the interface.
var _ driven.EventLoop = (*Loop)(nil)

// ErrStopped is returned by Do when the loop is not running.
var ErrStopped = errors.New("event loop stopped")

// Loop runs posted tasks one at a time on the goroutine that calls Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	started chan struct{}
	exited  chan struct{}

	workMu sync.Mutex
	idle   *sync.Cond
	active int
}

// New creates a loop. Call Run to start processing tasks.
func New() *Loop {
	l := &Loop{
		wake:    make(chan struct{}, 1),
		started: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	l.idle = sync.NewCond(&l.workMu)
	return l
}

// Run processes tasks until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	close(l.started)
	defer close(l.exited)

	for {
		for _, fn := range l.take() {
			fn()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// take removes and returns all queued tasks.
func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.queue
	l.queue = nil
	return tasks
}

// Post schedules fn to run on the loop. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs fn on a new goroutine tracked by Wait.
func (l *Loop) Go(fn func()) {
	l.workMu.Lock()
	l.active++
	l.workMu.Unlock()

	go func() {
		defer l.finishWork()
		fn()
	}()
}

func (l *Loop) finishWork() {
	l.workMu.Lock()
	defer l.workMu.Unlock()
	l.active--
	if l.active == 0 {
		l.idle.Broadcast()
	}
}

// busy reports whether any Go work is running.
func (l *Loop) busy() bool {
	l.workMu.Lock()
	defer l.workMu.Unlock()
	return l.active > 0
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) driven.Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped {
				return
			}
			t.fired = true
			fn()
		})
	})
	return t
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Do runs fn on the loop and waits for it to return.
// It must not be called from the loop itself.
func (l *Loop) Do(fn func()) error {
	select {
	case <-l.exited:
		return ErrStopped
	default:
	}

	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-l.exited:
		return ErrStopped
	}
}

// Wait blocks until all work started with Go has returned.
// Safe to call while Go starts new work.
func (l *Loop) Wait() {
	l.workMu.Lock()
	defer l.workMu.Unlock()
	for l.active > 0 {
		l.idle.Wait()
	}
}

// Settle blocks until no Go work is running, including work started by
// results that earlier work posted back. It must not be called from the
// loop itself.
func (l *Loop) Settle() error {
	for {
		l.Wait()
		var busy bool
		if err := l.Do(func() { busy = l.busy() }); err != nil {
			return err
		}
		if !busy {
			return nil
		}
	}
}

// loopTimer's flags are only touched on the loop goroutine.
type loopTimer struct {
	timer   *time.Timer
	stopped bool
	fired   bool
}

// Stop prevents the callback from running, even if the wall clock
// timer has already fired and its callback is queued.
func (t *loopTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}
