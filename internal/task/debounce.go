// Package task provides the deferred and per-tick tasks used by the session:
// a debouncer with cancel-and-reschedule semantics and a cooperative ticker
// bound to a context.
package task

import (
	"sync"
	"time"
)

// Executor runs fn on the owner's side, typically under the owner's lock
// or on its event loop.
type Executor func(fn func())

// Direct runs fn on the calling goroutine.
func Direct(fn func()) { fn() }

// Debouncer coalesces bursts of Trigger calls into one run of fn after the
// quiet period has elapsed since the last Trigger.
type Debouncer struct {
	delay time.Duration
	fn    func()
	post  Executor

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	runs  int
}

// NewDebouncer creates a Debouncer. A nil post runs fn on the timer goroutine.
func NewDebouncer(delay time.Duration, fn func(), post Executor) *Debouncer {
	if post == nil {
		post = Direct
	}
	return &Debouncer{delay: delay, fn: fn, post: post}
}

// Trigger cancels any pending run and schedules a new one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Cancel drops the pending run, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Flush runs the pending call now instead of waiting for the timer.
// It reports whether anything was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	pending := d.timer != nil
	d.stopLocked()
	if pending {
		d.runs++
	}
	d.mu.Unlock()

	if pending {
		d.post(d.fn)
	}
	return pending
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Runs returns how many times fn has been handed to the executor.
func (d *Debouncer) Runs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runs
}

// stopLocked invalidates the current timer. The generation bump makes a
// timer that already fired but has not yet taken the lock a no-op.
func (d *Debouncer) stopLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.runs++
	d.mu.Unlock()

	d.post(d.fn)
}
