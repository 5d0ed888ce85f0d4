package exchange

import (
	"sync"

	"github.com/quietridge/matter/pkg/clock"
)

// exchangeKey uniquely identifies an exchange for table lookups. Matches
// the spec's {Session Context, Exchange ID, Exchange Role} tuple.
type exchangeKey struct {
	localSessionID uint16
	exchangeID     uint16
	role           ExchangeRole
}

// AckEntry is a pending acknowledgement for a received reliable message.
// Per Spec Section 4.12.6.2, an exchange has at most one at a time: the
// counter of the reliable message it owes an ACK for, and whether a
// standalone ACK has already gone out for it.
//
// Per Spec 4.12.5.2.2, once StandaloneAckSent is true the entry lingers
// until the exchange closes or a later non-standalone message piggybacks
// the ACK instead.
type AckEntry struct {
	MessageCounter    uint32
	StandaloneAckSent bool

	timer  *clock.Timer
	onFire func()
}

// Stop cancels the pending ACK timer, if any. Idempotent.
func (e *AckEntry) Stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

// AckTable is the set of pending acknowledgements for reliable messages,
// at most one per exchange, per Spec 4.12.6.2. Safe for concurrent use.
type AckTable struct {
	clk     *clock.Clock
	mu      sync.Mutex
	entries map[exchangeKey]*AckEntry
}

// NewAckTable creates an empty acknowledgement table. clk schedules
// standalone-ACK timeouts; a nil clk selects clock.New().
func NewAckTable(clk *clock.Clock) *AckTable {
	if clk == nil {
		clk = clock.New()
	}
	return &AckTable{clk: clk, entries: make(map[exchangeKey]*AckEntry)}
}

// Add records a pending acknowledgement for key, replacing any existing
// entry. Per Spec 4.12.5.2.2, if the displaced entry had not yet had a
// standalone ACK sent, the caller is responsible for sending one
// immediately — Add returns that entry so the caller can do so.
//
// onTimeout fires after MRPStandaloneAckTimeout if nothing piggybacks the
// ACK first.
func (t *AckTable) Add(key exchangeKey, messageCounter uint32, onTimeout func()) *AckEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var displaced *AckEntry
	if prev, ok := t.entries[key]; ok {
		prev.Stop()
		if !prev.StandaloneAckSent {
			displaced = prev
		}
	}

	entry := &AckEntry{MessageCounter: messageCounter, onFire: onTimeout}
	entry.timer = t.clk.GetTimer(MRPStandaloneAckTimeout, func() {
		t.fireStandaloneAck(key, entry)
	})
	t.entries[key] = entry
	return displaced
}

// fireStandaloneAck runs on timer expiry: it flips StandaloneAckSent on
// the entry still installed for key (a replacement may have superseded
// it) and then invokes the owner's callback outside the table lock.
func (t *AckTable) fireStandaloneAck(key exchangeKey, entry *AckEntry) {
	t.mu.Lock()
	if current, ok := t.entries[key]; ok && current == entry {
		current.StandaloneAckSent = true
	}
	t.mu.Unlock()

	if entry.onFire != nil {
		entry.onFire()
	}
}

// Get returns the pending ACK entry for key, if any.
func (t *AckTable) Get(key exchangeKey) (*AckEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	return entry, ok
}

// MarkAcked removes the entry for key because its ACK piggybacked on a
// non-standalone message (Spec 4.12.5.1.1), and returns the counter that
// was acknowledged, or 0 if there was no entry.
func (t *AckTable) MarkAcked(key exchangeKey) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return 0
	}
	entry.Stop()
	delete(t.entries, key)
	return entry.MessageCounter
}

// MarkStandaloneAckSent marks key's entry as having had its standalone ACK
// sent. Per Spec 4.12.5.2.2, the entry remains installed until the
// exchange closes or a piggybacked ACK removes it via MarkAcked.
func (t *AckTable) MarkStandaloneAckSent(key exchangeKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[key]; ok {
		entry.Stop()
		entry.StandaloneAckSent = true
	}
}

// Remove deletes the entry for key, e.g. on exchange close.
func (t *AckTable) Remove(key exchangeKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[key]; ok {
		entry.Stop()
		delete(t.entries, key)
	}
}

// HasPendingAck reports whether key has an entry that has not yet had a
// standalone ACK sent.
func (t *AckTable) HasPendingAck(key exchangeKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	return ok && !entry.StandaloneAckSent
}

// PendingCounter returns the message counter awaiting acknowledgement for
// key, if any.
func (t *AckTable) PendingCounter(key exchangeKey) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		return 0, false
	}
	return entry.MessageCounter, true
}

// Count reports the number of pending entries.
func (t *AckTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear removes and stops every entry, e.g. on manager shutdown.
func (t *AckTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.entries {
		entry.Stop()
		delete(t.entries, key)
	}
}
