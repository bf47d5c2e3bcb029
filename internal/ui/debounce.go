package ui

import (
	"sync"
	"time"
)

// Debouncer runs fn at most once per quiet period: every Trigger restarts
// the wait, and fn runs once delay has passed without another Trigger.
// Flush runs a pending call immediately; Close flushes and disables it.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // identifies the live timer
	pending bool
	closed  bool

	run sync.Mutex // serializes fn
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a call is waiting.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Cancel drops a waiting call without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Debouncer) Flush() {
	d.mu.Lock()
	was := d.pending
	d.stopLocked()
	d.mu.Unlock()

	if was {
		d.call()
	}
}

func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	was := d.pending
	d.stopLocked()
	d.mu.Unlock()

	if was {
		d.call()
	}
}

// fire runs fn for the timer started as gen. A timer that was replaced
// after it had already fired finds a newer gen and does nothing.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.call()
}

func (d *Debouncer) call() {
	d.run.Lock()
	defer d.run.Unlock()
	d.fn()
}

func (d *Debouncer) stopLocked() {
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
