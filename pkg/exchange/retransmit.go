package exchange

import (
	"sync"
	"time"

	"github.com/quietridge/matter/pkg/clock"
	"github.com/quietridge/matter/pkg/transport"
)

// RetransmitEntry is a reliable message awaiting acknowledgement. Per Spec
// Section 4.12.6.1, an exchange has at most one pending retransmit at a
// time (flow control): the encoded, encrypted message buffer, its
// destination, and how many times it has gone out so far.
type RetransmitEntry struct {
	ExchangeKey    exchangeKey
	MessageCounter uint32
	Message        []byte
	PeerAddress    transport.PeerAddress

	// SendCount starts at 1 for the initial transmission and increments
	// on every retry.
	SendCount int

	timer  *clock.Timer
	onFire func(*RetransmitEntry)
}

// Stop cancels the entry's retransmit timer, if any. Idempotent.
func (e *RetransmitEntry) Stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

// RetransmitTable is the set of reliable messages still awaiting
// acknowledgement, retained until acked or MRPMaxTransmissions is reached
// (Spec 4.12.6.1). Safe for concurrent use.
type RetransmitTable struct {
	clk     *clock.Clock
	backoff *BackoffCalculator

	mu         sync.Mutex
	byCounter  map[uint32]*RetransmitEntry
	byExchange map[exchangeKey]*RetransmitEntry
}

// NewRetransmitTable creates an empty retransmit table. clk schedules
// retry timers; a nil clk selects clock.New().
func NewRetransmitTable(clk *clock.Clock) *RetransmitTable {
	if clk == nil {
		clk = clock.New()
	}
	return &RetransmitTable{
		clk:        clk,
		backoff:    NewBackoffCalculator(nil),
		byCounter:  make(map[uint32]*RetransmitEntry),
		byExchange: make(map[exchangeKey]*RetransmitEntry),
	}
}

// Add registers message as sent reliably (R flag set) on the exchange
// identified by key, and arms its first retry timer using baseInterval
// (the session's idle or active interval) as the backoff base. onTimeout
// fires on every expiry, including retries — the caller decides whether
// to resend or give up by calling ScheduleRetransmit.
//
// Add reports ErrPendingRetransmit if the exchange already has an
// in-flight reliable message; Spec 4.10 forbids a second one until the
// first resolves.
func (t *RetransmitTable) Add(
	key exchangeKey,
	messageCounter uint32,
	message []byte,
	peerAddress transport.PeerAddress,
	baseInterval time.Duration,
	onTimeout func(entry *RetransmitEntry),
) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byExchange[key]; exists {
		return ErrPendingRetransmit
	}

	entry := &RetransmitEntry{
		ExchangeKey:    key,
		MessageCounter: messageCounter,
		Message:        message,
		PeerAddress:    peerAddress,
		SendCount:      1,
		onFire:         onTimeout,
	}
	entry.timer = t.clk.GetTimer(t.backoff.Calculate(baseInterval, 0), func() {
		entry.fire()
	})

	t.byCounter[messageCounter] = entry
	t.byExchange[key] = entry
	return nil
}

// fire invokes the entry's timeout callback, outside any table lock.
func (e *RetransmitEntry) fire() {
	if e.onFire != nil {
		e.onFire(e)
	}
}

// Ack removes and returns the entry for messageCounter, or nil if there is
// none. Called on receipt of an acknowledgement for it.
func (t *RetransmitTable) Ack(messageCounter uint32) *RetransmitEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(messageCounter)
}

func (t *RetransmitTable) removeLocked(messageCounter uint32) *RetransmitEntry {
	entry, ok := t.byCounter[messageCounter]
	if !ok {
		return nil
	}
	entry.Stop()
	delete(t.byCounter, messageCounter)
	delete(t.byExchange, entry.ExchangeKey)
	return entry
}

// ScheduleRetransmit is called from the timeout callback to arm the next
// retry. It reports false, having already removed the entry, once
// MRPMaxTransmissions sends have gone out without acknowledgement;
// otherwise it restarts the timer at the next backoff interval and
// reports true.
func (t *RetransmitTable) ScheduleRetransmit(messageCounter uint32, baseInterval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.byCounter[messageCounter]
	if !ok {
		return false
	}

	entry.SendCount++
	if entry.SendCount > MRPMaxTransmissions {
		t.removeLocked(messageCounter)
		return false
	}

	entry.Stop()
	backoffTime := t.backoff.Calculate(baseInterval, entry.SendCount-1)
	entry.timer = t.clk.GetTimer(backoffTime, entry.fire)
	return true
}

// GetByCounter returns the entry sent with messageCounter, if any.
func (t *RetransmitTable) GetByCounter(messageCounter uint32) (*RetransmitEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.byCounter[messageCounter]
	return entry, ok
}

// GetByExchange returns the pending entry for an exchange, if any.
func (t *RetransmitTable) GetByExchange(key exchangeKey) (*RetransmitEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.byExchange[key]
	return entry, ok
}

// HasPending reports whether an exchange has a message in flight.
func (t *RetransmitTable) HasPending(key exchangeKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byExchange[key]
	return ok
}

// Remove deletes the pending entry for an exchange, e.g. on exchange close.
func (t *RetransmitTable) Remove(key exchangeKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.byExchange[key]; ok {
		t.removeLocked(entry.MessageCounter)
	}
}

// RemoveByCounter deletes the entry for messageCounter, if any.
func (t *RetransmitTable) RemoveByCounter(messageCounter uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(messageCounter)
}

// Count reports the number of in-flight reliable messages.
func (t *RetransmitTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byCounter)
}

// Clear stops and removes every entry, e.g. on manager shutdown.
func (t *RetransmitTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range t.byCounter {
		entry.Stop()
	}
	t.byCounter = make(map[uint32]*RetransmitEntry)
	t.byExchange = make(map[exchangeKey]*RetransmitEntry)
}

// ForEach calls fn for every in-flight entry. fn must not mutate the table.
func (t *RetransmitTable) ForEach(fn func(entry *RetransmitEntry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range t.byCounter {
		fn(entry)
	}
}
