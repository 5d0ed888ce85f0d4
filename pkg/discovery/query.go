package discovery

import (
	"sync"
	"time"

	"github.com/quietridge/matter/pkg/dnscodec"
)

// minQueryInterval is the re-query interval used immediately after
// SetQueryRecords and the starting point of the doubling schedule.
const minQueryInterval = 1500 * time.Millisecond

// maxQueryInterval caps the doubling schedule.
const maxQueryInterval = 60 * time.Minute

// DNSQuery is a single query tuple the scanner wants answered.
type DNSQuery struct {
	Name string
	Type dnscodec.RecordType
}

// ActiveQuery tracks one logical discovery request: the set of DNS query
// tuples it needs answered and the known answers already collected (used
// for known-answer suppression on the wire). All active queries share one
// send schedule, owned by the Scanner.
type ActiveQuery struct {
	QueryID string

	queries      []DNSQuery
	queriesSet   map[DNSQuery]bool
	knownAnswers []dnscodec.Record
}

func newActiveQuery(id string) *ActiveQuery {
	return &ActiveQuery{
		QueryID:    id,
		queriesSet: make(map[DNSQuery]bool),
	}
}

// union adds any query tuples not already present. Returns true if anything changed.
func (q *ActiveQuery) union(queries []DNSQuery) bool {
	changed := false
	for _, dq := range queries {
		if !q.queriesSet[dq] {
			q.queriesSet[dq] = true
			q.queries = append(q.queries, dq)
			changed = true
		}
	}
	return changed
}

func (q *ActiveQuery) addKnownAnswers(answers []dnscodec.Record) {
	q.knownAnswers = append(q.knownAnswers, answers...)
}

// activeQueryTable is an insertion-ordered map of ActiveQuery, since
// scheduling order must be deterministic and Go maps don't provide that.
type activeQueryTable struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*ActiveQuery
}

func newActiveQueryTable() *activeQueryTable {
	return &activeQueryTable{byID: make(map[string]*ActiveQuery)}
}

// setQueryRecords implements the union-or-create rule. changed reports
// whether the active-query set actually grew, so the caller can decide
// whether to reset the send schedule.
func (t *activeQueryTable) setQueryRecords(id string, queries []DNSQuery, knownAnswers []dnscodec.Record) (aq *ActiveQuery, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	aq, ok := t.byID[id]
	if !ok {
		aq = newActiveQuery(id)
		t.byID[id] = aq
		t.order = append(t.order, id)
		changed = true
	}

	if aq.union(queries) {
		changed = true
	}
	aq.addKnownAnswers(knownAnswers)
	return aq, changed
}

func (t *activeQueryTable) get(id string) (*ActiveQuery, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	aq, ok := t.byID[id]
	return aq, ok
}

func (t *activeQueryTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return
	}
	delete(t.byID, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *activeQueryTable) all() []*ActiveQuery {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*ActiveQuery, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

func (t *activeQueryTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
