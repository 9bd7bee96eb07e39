package services

import (
	"sync"
	"time"
)

// TimeoutTimer is a single-shot, restartable countdown. Start (re)arms the
// window, Abort cancels a pending fire without marking expiry, and natural
// expiry invokes the callback exactly once. A pure scheduling primitive; it
// never fails, only reports time-based facts.
type TimeoutTimer struct {
	interval time.Duration
	onExpire func()

	mu         sync.Mutex
	timer      *time.Timer
	startedAt  time.Time
	started    bool
	expired    bool
	generation uint64
}

// NewTimeoutTimer constructs a timer without starting it.
func NewTimeoutTimer(interval time.Duration, onExpire func()) *TimeoutTimer {
	return &TimeoutTimer{
		interval: interval,
		onExpire: onExpire,
	}
}

// Start begins (or restarts) the countdown from now. Any previously
// scheduled fire is superseded rather than stacked, and a prior expiry
// flag is cleared.
func (t *TimeoutTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	if t.timer != nil {
		t.timer.Stop()
	}

	t.started = true
	t.expired = false
	t.startedAt = time.Now()

	gen := t.generation
	t.timer = time.AfterFunc(t.interval, func() {
		t.fire(gen)
	})
}

// Abort cancels any pending fire without invoking the callback and without
// marking the timer expired. Safe to call when not running.
func (t *TimeoutTimer) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// fire handles natural expiry. A stale generation means the fire was
// superseded by a later Start or Abort and must not run.
func (t *TimeoutTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.expired = true
	t.timer = nil
	onExpire := t.onExpire
	t.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}

// Interval returns the fixed countdown duration.
func (t *TimeoutTimer) Interval() time.Duration {
	return t.interval
}

// Expired reports whether the timer fired naturally. Abort never sets this.
func (t *TimeoutTimer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Elapsed returns the time since the most recent Start, or zero if the
// timer already expired. The second return is false if the timer was never
// started.
func (t *TimeoutTimer) Elapsed() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return 0, false
	}
	if t.expired {
		return 0, true
	}
	return time.Since(t.startedAt), true
}
