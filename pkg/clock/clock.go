// Package clock provides the monotonic time source and one-shot/periodic
// timer service used by the mDNS scanner and responder. It generalizes the
// per-entry time.Timer bookkeeping already used by the MRP retransmission
// table into a standalone service so callers don't each reinvent it.
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic time source with timer scheduling.
type Clock struct{}

// New returns a Clock backed by the runtime's monotonic clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now()
}

// monoStart anchors NowMs; time.Since reads the runtime's monotonic clock.
var monoStart = time.Now()

// NowMs returns a monotonically increasing millisecond counter suitable for
// TTL/expiry arithmetic. It is not wall-clock time.
func (c *Clock) NowMs() uint64 {
	return uint64(time.Since(monoStart).Milliseconds())
}

// Timer is a cancellable one-shot or periodic timer handle. A timer starts
// running when it is created; there is no Start method, and a stopped timer
// cannot be restarted.
// Stop is idempotent and safe to call from within the timer's own callback.
type Timer struct {
	mu       sync.Mutex
	timer    *time.Timer
	ticker   *time.Ticker
	stopped  bool
	periodic bool
	done     chan struct{}
}

// GetTimer schedules cb to run once after d elapses. Calling Stop before it
// fires cancels it; calling Stop after it fires is a no-op.
func (c *Clock) GetTimer(d time.Duration, cb func()) *Timer {
	t := &Timer{done: make(chan struct{})}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			cb()
		}
	})
	return t
}

// GetPeriodicTimer schedules cb to run approximately every interval until
// Stop is called. The first firing occurs after one interval, not immediately.
func (c *Clock) GetPeriodicTimer(interval time.Duration, cb func()) *Timer {
	t := &Timer{periodic: true, ticker: time.NewTicker(interval), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				t.mu.Lock()
				stopped := t.stopped
				t.mu.Unlock()
				if stopped {
					return
				}
				cb()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

// Stop cancels the timer. Safe to call multiple times and safe to call from
// within the timer's own callback.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.periodic {
		t.ticker.Stop()
		close(t.done)
		return
	}
	t.timer.Stop()
}
