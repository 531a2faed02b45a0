// Package eventloop provides implementations of driven.EventLoop.
//
// Adapters:
//   - Loop: A single goroutine draining a task queue. Timers use the wall
//     clock and remote calls run on their own goroutines.
//   - Manual: A deterministic loop with a fake clock. Nothing runs until
//     RunUntilIdle or Advance is called, and Go work runs inline as a
//     queued task. Used by one-shot CLI commands and tests.
package eventloop
