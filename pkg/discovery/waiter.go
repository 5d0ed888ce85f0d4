package discovery

import (
	"sync"
	"time"
)

// waiter is a one-shot resolution gate for a single queryId. Exactly one
// waiter exists per queryId at a time; resolve is idempotent.
type waiter struct {
	queryID string

	// resolveOnUpdatedRecords, when true, trips on every new match rather
	// than only the first (used by FindCommissionableDevicesContinuously).
	resolveOnUpdatedRecords bool
	onMatch                 func(deviceIdentifier string)

	// matches, when set, is consulted before resolving a commissionable
	// waiter: only instances satisfying the caller's original
	// CommissionableIdentifier trip the waiter. nil for waiters that
	// resolve unconditionally (e.g. FindOperationalDevice's SRV waiter).
	matches func(instanceName string, txt *CommissionableTXT) bool

	mu       sync.Mutex
	done     chan struct{}
	resolved bool
	timer    *time.Timer
}

func newWaiter(queryID string) *waiter {
	return &waiter{queryID: queryID, done: make(chan struct{})}
}

// resolve signals the waiter. Safe to call multiple times; only the first
// call has effect unless resolveOnUpdatedRecords is set, in which case
// onMatch is invoked for every call and the waiter otherwise stays open
// until explicitly stopped.
func (w *waiter) resolve(deviceIdentifier string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.resolveOnUpdatedRecords {
		if w.onMatch != nil {
			w.onMatch(deviceIdentifier)
		}
		return
	}

	if w.resolved {
		return
	}
	w.resolved = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
}

// resolveIfMatch resolves the waiter with instanceName only if matches is
// unset or reports the instance as a genuine match for the caller's
// original identifier.
func (w *waiter) resolveIfMatch(instanceName string, txt *CommissionableTXT) {
	if w.matches != nil && !w.matches(instanceName, txt) {
		return
	}
	w.resolve(instanceName)
}

// stop cancels the waiter without treating it as resolved by a match; used
// by explicit cancellation and timeouts.
func (w *waiter) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.resolved {
		return
	}
	w.resolved = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
}

func (w *waiter) wait(timeout time.Duration) {
	if timeout <= 0 {
		<-w.done
		return
	}
	select {
	case <-w.done:
	case <-time.After(timeout):
		w.stop()
	}
}

// waiterTable maps queryId to its single active waiter.
type waiterTable struct {
	mu  sync.Mutex
	all map[string]*waiter
}

func newWaiterTable() *waiterTable {
	return &waiterTable{all: make(map[string]*waiter)}
}

func (t *waiterTable) register(w *waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.all[w.queryID] = w
}

func (t *waiterTable) get(queryID string) (*waiter, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.all[queryID]
	return w, ok
}

func (t *waiterTable) remove(queryID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.all, queryID)
}

// snapshot returns every currently registered waiter.
func (t *waiterTable) snapshot() []*waiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*waiter, 0, len(t.all))
	for _, w := range t.all {
		out = append(out, w)
	}
	return out
}

// resolveAndRemoveAll stops every registered waiter; used on Close.
func (t *waiterTable) resolveAndRemoveAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, w := range t.all {
		w.stop()
		delete(t.all, id)
	}
}
