package lookup

import (
	"sync"
	"time"
)

// Debouncer runs fn once delay has elapsed since the most recent [Debouncer.Call].
//
// A Debouncer shares its owner's lock: Call, Cancel, Pending and SetDelay
// must be called with mu held, and fn runs with mu held. A cancelled or
// superseded countdown never runs fn, even if its timer already fired and is
// waiting for the lock.
type Debouncer struct {
	clock Clock
	mu    sync.Locker
	delay time.Duration
	fn    func()

	timer Timer
	gen   uint64
}

// NewDebouncer returns an idle Debouncer.
func NewDebouncer(clock Clock, mu sync.Locker, delay time.Duration, fn func()) *Debouncer {
	if clock == nil {
		clock = RealClock
	}
	return &Debouncer{clock: clock, mu: mu, delay: delay, fn: fn}
}

// Call starts the countdown, restarting it if one is already pending.
func (d *Debouncer) Call() {
	d.stop()
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Cancel stops a pending countdown. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	if d.timer == nil {
		return false
	}
	d.stop()
	d.gen++
	return true
}

// Pending reports whether a countdown is running.
func (d *Debouncer) Pending() bool {
	return d.timer != nil
}

// SetDelay changes the delay used by subsequent calls.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.delay = delay
}

func (d *Debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.timer == nil {
		return
	}
	d.timer = nil
	d.fn()
}
