package driven

import "time"

// EventLoop runs every core service on a single logical thread.
// Core services never lock; they rely on all of their methods and
// callbacks being invoked from the loop.
type EventLoop interface {
	// Post schedules fn to run on the loop after the current task.
	Post(fn func())

	// Go runs blocking work (remote calls) off the loop.
	// The work must use Post to hand results back.
	Go(fn func())

	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer

	// Now returns the loop's current time.
	Now() time.Time
}

// Timer is a handle to a callback scheduled with EventLoop.AfterFunc.
type Timer interface {
	// Stop prevents the callback from running.
	// Returns false if it has already run or was already stopped.
	Stop() bool
}
