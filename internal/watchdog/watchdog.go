// Package watchdog provides a single-shot inactivity timer. At most one timer
// is outstanding: arming always cancels the previous one first.
package watchdog

import (
	"sync"
	"time"
)

// Watchdog is safe for concurrent use. The zero value is ready to use.
type Watchdog struct {
	mu    sync.Mutex
	timer *time.Timer
	token uint64
	armed bool
}

// New returns a disarmed watchdog.
func New() *Watchdog {
	return &Watchdog{}
}

// Arm schedules fn after d, cancelling any pending timer. fn receives the
// token returned here; callers should pass it to Claim before acting so a
// timer that fired while being replaced is ignored.
func (w *Watchdog) Arm(d time.Duration, fn func(token uint64)) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()
	w.token++
	token := w.token
	w.armed = true
	w.timer = time.AfterFunc(d, func() { fn(token) })
	return token
}

// Disarm cancels the pending timer. It reports whether one was armed.
func (w *Watchdog) Disarm() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	wasArmed := w.armed
	w.stopLocked()
	w.token++
	return wasArmed
}

// Claim consumes a firing. It returns true only for the token of the
// currently armed timer, and disarms the watchdog when it does.
func (w *Watchdog) Claim(token uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.armed || token != w.token {
		return false
	}
	w.armed = false
	return true
}

// Armed reports whether a timer is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *Watchdog) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.armed = false
}
