package discovery

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/quietridge/matter/pkg/clock"
	"github.com/quietridge/matter/pkg/dnscodec"
	"github.com/quietridge/matter/pkg/fabric"
)

// Sender is the outbound half of the transport the scanner needs: a way to
// multicast a query and a way to reply directly to a peer. Satisfied by
// *mcast.Transport; defined here as an interface so the scanner's discovery
// logic can be unit-tested without a real multicast socket.
type Sender interface {
	Send(data []byte, unicastTarget *net.UDPAddr) error
}

// scanTickInterval is how often the scanner checks whether a query cycle is due.
const scanTickInterval = 100 * time.Millisecond

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// Sender multicasts outbound queries. Required.
	Sender Sender

	// Clock provides timers and monotonic time. Defaults to clock.New().
	Clock *clock.Clock

	// LoggerFactory creates loggers for operational events. Optional.
	LoggerFactory logging.LoggerFactory
}

// Scanner implements active mDNS discovery of Matter operational and
// commissionable devices: it drives the query/response cycle over a Sender,
// maintains TTL-bounded caches of discovered devices, and resolves waiters
// registered by FindOperationalDevice/FindCommissionableDevices.
type Scanner struct {
	sender Sender
	clk    *clock.Clock
	log    logging.LeveledLogger

	operational    *recordCache[*OperationalDeviceRecord]
	commissionable *recordCache[*CommissionableDeviceRecord]

	queries *activeQueryTable
	waiters *waiterTable

	mu          sync.Mutex
	closed      bool
	interval    time.Duration
	nextSendAt  time.Time

	tickTimer  *clock.Timer
	sweepTimer *clock.Timer
}

// NewScanner creates a Scanner. Call Start to begin the periodic send/sweep loop.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.Sender == nil {
		return nil, ErrNoSender
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	s := &Scanner{
		sender:         cfg.Sender,
		clk:            clk,
		operational:    newRecordCache[*OperationalDeviceRecord](),
		commissionable: newRecordCache[*CommissionableDeviceRecord](),
		queries:        newActiveQueryTable(),
		waiters:        newWaiterTable(),
		interval:       minQueryInterval,
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("mdns-scanner")
	}
	return s, nil
}

// Start begins the periodic send-cycle and cache-sweep timers.
func (s *Scanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickTimer = s.clk.GetPeriodicTimer(scanTickInterval, func() { s.Tick(s.clk.Now()) })
	s.sweepTimer = s.clk.GetPeriodicTimer(cacheSweepInterval, func() { s.sweep(s.clk.Now()) })
}

// Close stops all timers, resolves every outstanding waiter, and rejects
// further discovery calls.
func (s *Scanner) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	if s.tickTimer != nil {
		s.tickTimer.Stop()
	}
	if s.sweepTimer != nil {
		s.sweepTimer.Stop()
	}
	s.mu.Unlock()

	s.waiters.resolveAndRemoveAll()
	return nil
}

// SetQueryRecords registers or extends an active query. Registering a query
// whose tuple set grows resets the send schedule to the minimum interval so
// the new query goes out immediately on the next tick.
func (s *Scanner) SetQueryRecords(queryID string, queries []DNSQuery, knownAnswers []dnscodec.Record) {
	_, changed := s.queries.setQueryRecords(queryID, queries, knownAnswers)

	s.mu.Lock()
	if changed {
		s.interval = minQueryInterval
		s.nextSendAt = s.clk.Now()
	}
	s.mu.Unlock()
}

// Tick runs one scheduling check: if a send cycle is due, it flattens every
// active query's tuples and known answers into one or more MTU-budgeted
// outbound messages and reschedules the next cycle with a doubled interval.
func (s *Scanner) Tick(now time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	due := !now.Before(s.nextSendAt)
	s.mu.Unlock()

	if !due {
		return
	}
	if s.queries.count() == 0 {
		return
	}

	s.sendCycle()

	s.mu.Lock()
	s.nextSendAt = now.Add(s.interval)
	s.interval *= 2
	if s.interval > maxQueryInterval {
		s.interval = maxQueryInterval
	}
	s.mu.Unlock()
}

func (s *Scanner) sendCycle() {
	var questions []dnscodec.Question
	var known []dnscodec.Record
	seenQ := map[DNSQuery]bool{}

	for _, aq := range s.queries.all() {
		for _, q := range aq.queries {
			if seenQ[q] {
				continue
			}
			seenQ[q] = true
			questions = append(questions, dnscodec.Question{Name: q.Name, Type: q.Type, Class: dnscodec.ClassIN})
		}
		known = append(known, aq.knownAnswers...)
	}
	if len(questions) == 0 {
		return
	}

	msgs := budgetQueryMessages(questions, known, s.log)
	for _, m := range msgs {
		encoded, err := dnscodec.Encode(m)
		if err != nil {
			if s.log != nil {
				s.log.Warnf("mdns-scanner: encode query failed: %v", err)
			}
			continue
		}
		if err := s.sender.Send(encoded, nil); err != nil && s.log != nil {
			s.log.Warnf("mdns-scanner: send query failed: %v", err)
		}
	}
}

// budgetQueryMessages packs questions and known-answer records into one or
// more messages no larger than dnscodec's MTU budget, marking every message
// but the last as truncated. A question or answer that alone exceeds the
// budget is still emitted, in its own message, with a warning.
func budgetQueryMessages(questions []dnscodec.Question, known []dnscodec.Record, log logging.LeveledLogger) []*dnscodec.Message {
	const budget = 1500
	const headerSize = 12

	var msgs []*dnscodec.Message
	cur := &dnscodec.Message{Header: dnscodec.Header{}}
	curSize := headerSize

	flush := func() {
		cur.Header.Truncated = true
		msgs = append(msgs, cur)
		cur = &dnscodec.Message{}
		curSize = headerSize
	}

	for _, q := range questions {
		enc, err := dnscodec.EncodeQuestion(q)
		if err != nil {
			continue
		}
		if curSize+len(enc) > budget && len(cur.Questions) > 0 {
			flush()
		}
		if len(enc) > budget && log != nil {
			log.Warnf("mdns-scanner: query %q alone exceeds the %d-byte MTU budget, sending anyway", q.Name, budget)
		}
		cur.Questions = append(cur.Questions, q)
		curSize += len(enc)
	}

	for _, r := range known {
		enc, err := dnscodec.EncodeRecord(r)
		if err != nil {
			continue
		}
		if curSize+len(enc) > budget && (len(cur.Questions) > 0 || len(cur.Answers) > 0) {
			flush()
		}
		if len(enc) > budget && log != nil {
			log.Warnf("mdns-scanner: known-answer %q alone exceeds the %d-byte MTU budget, sending anyway", r.Name, budget)
		}
		cur.Answers = append(cur.Answers, r)
		curSize += len(enc)
	}

	msgs = append(msgs, cur)
	return msgs
}

// HandlePacket ingests one inbound datagram: parses it as a DNS/mDNS
// message and merges operational/commissionable records into the caches,
// resolving any waiter that becomes satisfied.
func (s *Scanner) HandlePacket(data []byte, from *net.UDPAddr, iface string) {
	msg, err := dnscodec.Decode(data)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("mdns-scanner: decode failed: %v", err)
		}
		return
	}
	if !msg.Header.Response {
		return
	}

	all := append(append([]dnscodec.Record{}, msg.Answers...), msg.AdditionalRecords...)
	// The codec decodes names without the trailing root dot; the caches and
	// waiters key on fully-qualified names, so restore it before ingesting.
	for i := range all {
		all[i].Name = strings.TrimSuffix(all[i].Name, ".") + "."
		if all[i].Type == dnscodec.TypeSRV {
			all[i].SRV.Target = strings.TrimSuffix(all[i].SRV.Target, ".") + "."
		}
	}
	s.ingestRecords(all, iface)
}

func (s *Scanner) ingestRecords(records []dnscodec.Record, iface string) {
	// Index A/AAAA by target name so SRV processing can resolve addresses
	// observed in the same batch.
	addrsByName := map[string][]dnscodec.Record{}
	for _, r := range records {
		if r.Type == dnscodec.TypeA || r.Type == dnscodec.TypeAAAA {
			addrsByName[strings.ToLower(r.Name)] = append(addrsByName[strings.ToLower(r.Name)], r)
		}
	}

	for _, r := range records {
		switch {
		case strings.HasSuffix(strings.ToLower(r.Name), strings.ToLower(ServiceOperational+"."+DefaultDomain)):
			s.ingestOperational(r, addrsByName, iface)
		case strings.HasSuffix(strings.ToLower(r.Name), strings.ToLower(ServiceCommissionable+"."+DefaultDomain)):
			s.ingestCommissionable(r, addrsByName, iface)
		}
	}
}

func (s *Scanner) ingestOperational(r dnscodec.Record, addrsByName map[string][]dnscodec.Record, iface string) {
	name := strings.ToLower(r.Name)
	if r.TTL == 0 {
		s.operational.delete(name)
		return
	}

	rec, ok := s.operational.get(name)
	if !ok {
		rec = &OperationalDeviceRecord{DeviceIdentifier: name, Addresses: make(map[string]AddressEntry)}
	}

	now := s.clk.Now()
	switch r.Type {
	case dnscodec.TypeTXT:
		txt, err := ParseOperationalTXT(txtStrings(r.TXT))
		if err == nil {
			rec.TXT = *txt
		}
		rec.ExpiresAt = now.Add(time.Duration(r.TTL) * time.Second)
	case dnscodec.TypeSRV:
		rec.ExpiresAt = now.Add(time.Duration(r.TTL) * time.Second)
		target := strings.ToLower(r.SRV.Target)
		for _, a := range addrsByName[target] {
			if a.TTL == 0 {
				continue
			}
			ip := net.IP(a.IP)
			rec.Addresses[ip.String()] = AddressEntry{
				IP: ip, Port: r.SRV.Port, Interface: iface,
				ExpiresAt: now.Add(time.Duration(a.TTL) * time.Second),
			}
		}
	case dnscodec.TypeA, dnscodec.TypeAAAA:
		// Standalone address update for an already-known SRV target is
		// handled the same way the SRV branch resolves addresses; nothing
		// to do here without a cached port, so this case is a no-op.
	}

	s.operational.set(name, rec)

	if rec.HasAddresses() {
		s.resolveWaiter(name, name)
	} else if _, ok := s.waiters.get(name); ok {
		// Address set is still empty but a waiter is registered: chase the
		// SRV target explicitly.
		s.SetQueryRecords(name, []DNSQuery{{Name: name, Type: dnscodec.TypeSRV}}, nil)
	}
}

func (s *Scanner) ingestCommissionable(r dnscodec.Record, addrsByName map[string][]dnscodec.Record, iface string) {
	name := strings.ToLower(r.Name)
	if r.TTL == 0 {
		s.commissionable.delete(name)
		return
	}

	rec, ok := s.commissionable.get(name)
	if !ok {
		rec = &CommissionableDeviceRecord{InstanceName: name, Addresses: make(map[string]AddressEntry)}
	}

	now := s.clk.Now()
	switch r.Type {
	case dnscodec.TypeTXT:
		txt, err := ParseCommissionableTXT(txtStrings(r.TXT))
		if err != nil {
			return // missing D or CM: drop rather than cache a partial record
		}
		rec.TXT = *txt
		rec.ExpiresAt = now.Add(time.Duration(r.TTL) * time.Second)
	case dnscodec.TypeSRV:
		rec.ExpiresAt = now.Add(time.Duration(r.TTL) * time.Second)
		target := strings.ToLower(r.SRV.Target)
		for _, a := range addrsByName[target] {
			if a.TTL == 0 {
				continue
			}
			ip := net.IP(a.IP)
			rec.Addresses[ip.String()] = AddressEntry{
				IP: ip, Port: r.SRV.Port, Interface: iface,
				ExpiresAt: now.Add(time.Duration(a.TTL) * time.Second),
			}
		}
	}

	s.commissionable.set(name, rec)

	if rec.HasAddresses() {
		s.resolveMatchingWaiters(name, &rec.TXT)
	}
}

func txtStrings(raw [][]byte) []string {
	out := make([]string, len(raw))
	for i, b := range raw {
		out[i] = string(b)
	}
	return out
}

// resolveWaiter resolves the waiter registered under queryID, if any.
func (s *Scanner) resolveWaiter(queryID, deviceIdentifier string) {
	if w, ok := s.waiters.get(queryID); ok {
		w.resolve(deviceIdentifier)
	}
}

// resolveMatchingWaiters walks every registered commissionable waiter and
// resolves only the ones whose original CommissionableIdentifier genuinely
// matches this instance's name/TXT record.
func (s *Scanner) resolveMatchingWaiters(instanceName string, txt *CommissionableTXT) {
	for _, w := range s.waiters.snapshot() {
		if !strings.HasPrefix(w.queryID, "commissionable:") {
			continue
		}
		w.resolveIfMatch(instanceName, txt)
	}
}

func (s *Scanner) sweep(now time.Time) {
	for key, rec := range s.operational.snapshot() {
		for ip, a := range rec.Addresses {
			if now.After(a.ExpiresAt) {
				delete(rec.Addresses, ip)
			}
		}
		if now.After(rec.ExpiresAt) || !rec.HasAddresses() {
			s.operational.delete(key)
		}
	}
	for key, rec := range s.commissionable.snapshot() {
		for ip, a := range rec.Addresses {
			if now.After(a.ExpiresAt) {
				delete(rec.Addresses, ip)
			}
		}
		if now.After(rec.ExpiresAt) || !rec.HasAddresses() {
			s.commissionable.delete(key)
		}
	}
}

// FindOperationalDevice resolves the address of a specific commissioned
// node, consulting the cache first and otherwise issuing an SRV query and
// waiting up to timeout (0 means wait indefinitely) for a response.
func (s *Scanner) FindOperationalDevice(f *fabric.FabricInfo, nodeID fabric.NodeID, timeout time.Duration) (*OperationalDeviceRecord, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrScannerClosing
	}

	qname := strings.ToLower(OperationalInstanceName(f.CompressedFabricID, nodeID)) + "." + ServiceOperational + "." + DefaultDomain

	if rec, ok := s.operational.get(qname); ok && rec.HasAddresses() {
		return rec, nil
	}

	w := newWaiter(qname)
	s.waiters.register(w)
	defer s.waiters.remove(qname)

	s.SetQueryRecords(qname, []DNSQuery{{Name: qname, Type: dnscodec.TypeSRV}}, nil)
	w.wait(timeout)

	s.queries.remove(qname)

	if rec, ok := s.operational.get(qname); ok && rec.HasAddresses() {
		return rec, nil
	}
	return nil, ErrTimeout
}

// CancelOperationalDeviceDiscovery stops waiting for a node and returns
// immediately; the caller sees whatever the cache held at cancellation.
func (s *Scanner) CancelOperationalDeviceDiscovery(f *fabric.FabricInfo, nodeID fabric.NodeID) {
	qname := strings.ToLower(OperationalInstanceName(f.CompressedFabricID, nodeID)) + "." + ServiceOperational + "." + DefaultDomain
	if w, ok := s.waiters.get(qname); ok {
		w.stop()
	}
}

// FindCommissionableDevices resolves the first commissionable device
// matching ident, waiting up to timeout (defaults to 5s if zero).
func (s *Scanner) FindCommissionableDevices(ident CommissionableIdentifier, timeout time.Duration) (*CommissionableDeviceRecord, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrScannerClosing
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	id, err := ident.queryID()
	if err != nil {
		return nil, err
	}

	if rec := s.firstCommissionableMatch(ident); rec != nil {
		return rec, nil
	}

	w := newWaiter(id)
	w.matches = ident.matches
	s.waiters.register(w)
	defer s.waiters.remove(id)

	s.SetQueryRecords(id, ident.subtypeQueries(), nil)
	w.wait(timeout)

	s.queries.remove(id)

	if rec := s.firstCommissionableMatch(ident); rec != nil {
		return rec, nil
	}
	return nil, ErrTimeout
}

func (s *Scanner) firstCommissionableMatch(ident CommissionableIdentifier) *CommissionableDeviceRecord {
	for name, rec := range s.commissionable.snapshot() {
		if !rec.HasAddresses() {
			continue
		}
		if ident.matches(name, &rec.TXT) {
			return rec
		}
	}
	return nil
}

// FindCommissionableDevicesContinuously keeps discovering for up to timeout
// (defaults to 900s if zero), calling cb exactly once per distinct device
// identifier as matches arrive.
func (s *Scanner) FindCommissionableDevicesContinuously(ident CommissionableIdentifier, cb func(*CommissionableDeviceRecord), timeout time.Duration) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrScannerClosing
	}
	if timeout == 0 {
		timeout = 900 * time.Second
	}

	id, err := ident.queryID()
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	var seenMu sync.Mutex

	w := newWaiter(id)
	w.resolveOnUpdatedRecords = true
	w.matches = ident.matches
	w.onMatch = func(deviceIdentifier string) {
		seenMu.Lock()
		if seen[deviceIdentifier] {
			seenMu.Unlock()
			return
		}
		seen[deviceIdentifier] = true
		seenMu.Unlock()

		if rec, ok := s.commissionable.get(deviceIdentifier); ok {
			cb(rec)
		}
	}
	s.waiters.register(w)
	defer s.waiters.remove(id)

	s.SetQueryRecords(id, ident.subtypeQueries(), nil)
	w.wait(timeout)

	s.queries.remove(id)
	return nil
}

// CancelCommissionableDeviceDiscovery stops an in-progress
// FindCommissionableDevices/Continuously call for ident.
func (s *Scanner) CancelCommissionableDeviceDiscovery(ident CommissionableIdentifier) {
	id, err := ident.queryID()
	if err != nil {
		return
	}
	if w, ok := s.waiters.get(id); ok {
		w.stop()
	}
}
