package discovery

import (
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/quietridge/matter/pkg/clock"
	"github.com/quietridge/matter/pkg/dnscodec"
	"github.com/quietridge/matter/pkg/fabric"
)

// minDuplicateSuppressWindow is the floor on the "don't resend a record we
// already multicast recently" window (RFC 6762 §6).
const minDuplicateSuppressWindow = 1 * time.Second

// jitterFloor/jitterCeil bound the random delay applied before every
// outbound response (RFC 6762 §6: 20-120ms to avoid synchronized replies).
const (
	jitterFloor = 20 * time.Millisecond
	jitterCeil  = 120 * time.Millisecond
)

// ownedRecordSet is everything a single registered service contributes to
// the responder's answer table.
type ownedRecordSet struct {
	serviceType ServiceType
	ptrNames    []string // base service name plus any subtype names
	instance    string   // SRV/TXT owner name
	srv         dnscodec.Record
	txt         dnscodec.Record
	ptrTTL      uint32
}

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// HostName is the mDNS host this node answers A/AAAA queries for. If
	// empty, a random "<16 hex>.local." host is generated.
	HostName string

	// Addresses supplies this node's own addresses per interface, used to
	// build A/AAAA records for HostName. Required.
	Addresses AddressSource

	// Sender multicasts responses and goodbyes, and unicasts QU replies.
	Sender Sender

	// Clock provides timers. Defaults to clock.New().
	Clock *clock.Clock

	// LoggerFactory creates loggers for operational events. Optional.
	LoggerFactory logging.LoggerFactory
}

// AddressSource supplies a node's own addresses, keyed by interface name,
// for building A/AAAA records. Defined as an interface so tests can fake it
// without enumerating real network interfaces.
type AddressSource interface {
	Addresses() map[string][]net.IP
}

// StaticAddressSource is an AddressSource backed by a fixed map, useful for
// tests and for callers that resolve addresses once at startup.
type StaticAddressSource map[string][]net.IP

func (s StaticAddressSource) Addresses() map[string][]net.IP { return s }

// Responder answers incoming mDNS queries for this node's own commissionable
// and operational service records, without depending on an external mDNS
// registration library: it holds its own record table and implements
// known-answer suppression, duplicate suppression, and QU handling directly
// against the wire codec.
type Responder struct {
	hostName string
	addrs    AddressSource
	sender   Sender
	clk      *clock.Clock
	log      logging.LeveledLogger

	mu       sync.Mutex
	closed   bool
	services map[ServiceType]*ownedRecordSet

	dupMu      sync.Mutex
	lastSentAt map[string]time.Time // encoded-record key -> last send time
}

// NewResponder creates a Responder. No network activity occurs until a
// service is registered via StartCommissionable/StartOperational/StartCommissioner.
func NewResponder(cfg ResponderConfig) (*Responder, error) {
	if cfg.Sender == nil {
		return nil, ErrNoSender
	}
	if cfg.Addresses == nil {
		return nil, ErrNoAddresses
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	hostName := cfg.HostName
	if hostName == "" {
		name, err := GenerateCommissionableInstanceName()
		if err != nil {
			return nil, fmt.Errorf("discovery: generate host name: %w", err)
		}
		hostName = strings.ToLower(name) + "." + DefaultDomain
	}

	r := &Responder{
		hostName:   hostName,
		addrs:      cfg.Addresses,
		sender:     cfg.Sender,
		clk:        clk,
		services:   make(map[ServiceType]*ownedRecordSet),
		lastSentAt: make(map[string]time.Time),
	}
	if cfg.LoggerFactory != nil {
		r.log = cfg.LoggerFactory.NewLogger("mdns-responder")
	}
	return r, nil
}

// HostName returns the host name A/AAAA records are answered under.
func (r *Responder) HostName() string { return r.hostName }

// StartCommissionable registers the commissionable (_matterc._udp) service
// and announces it.
func (r *Responder) StartCommissionable(port uint16, txt CommissionableTXT) error {
	if err := txt.Validate(); err != nil {
		return fmt.Errorf("responder: commissionable txt validation failed: %w", err)
	}

	instanceName, err := GenerateCommissionableInstanceName()
	if err != nil {
		return fmt.Errorf("responder: generate instance name: %w", err)
	}
	instance := strings.ToLower(instanceName) + "." + ServiceCommissionable + "." + DefaultDomain

	base := ServiceCommissionable + "." + DefaultDomain
	ptrNames := []string{base}
	shortDiscrim := txt.ShortDiscriminator()
	ptrNames = append(ptrNames,
		fmt.Sprintf("_S%d._sub.%s", shortDiscrim, base),
		fmt.Sprintf("_L%d._sub.%s", txt.Discriminator, base),
	)
	if txt.CommissioningMode > CommissioningModeDisabled {
		ptrNames = append(ptrNames, "_CM._sub."+base)
	}
	if txt.VendorID != 0 {
		ptrNames = append(ptrNames, fmt.Sprintf("_V%d._sub.%s", txt.VendorID, base))
	}
	if txt.DeviceType != 0 {
		ptrNames = append(ptrNames, fmt.Sprintf("_T%d._sub.%s", txt.DeviceType, base))
	}

	set := &ownedRecordSet{
		serviceType: ServiceTypeCommissionable,
		ptrNames:    ptrNames,
		instance:    instance,
		ptrTTL:      defaultPTRTTL,
		srv:         r.buildSRV(instance, port, defaultSRVTTL),
		txt:         r.buildTXT(instance, txt.Encode(), defaultTXTTTL),
	}
	return r.register(ServiceTypeCommissionable, set)
}

// StartOperational registers the operational (_matter._tcp) service for a
// specific fabric/node identity and announces it.
func (r *Responder) StartOperational(port uint16, compressedFabricID [8]byte, nodeID fabric.NodeID, txt OperationalTXT) error {
	instance := strings.ToLower(OperationalInstanceName(compressedFabricID, nodeID)) + "." + ServiceOperational + "." + DefaultDomain
	base := ServiceOperational + "." + DefaultDomain

	set := &ownedRecordSet{
		serviceType: ServiceTypeOperational,
		ptrNames:    []string{base},
		instance:    instance,
		ptrTTL:      defaultPTRTTL,
		srv:         r.buildSRV(instance, port, defaultSRVTTL),
		txt:         r.buildTXT(instance, txt.Encode(), defaultTXTTTL),
	}
	return r.register(ServiceTypeOperational, set)
}

// StartCommissioner registers the commissioner (_matterd._udp) service and
// announces it.
func (r *Responder) StartCommissioner(port uint16, txt CommissionerTXT) error {
	if err := txt.Validate(); err != nil {
		return fmt.Errorf("responder: commissioner txt validation failed: %w", err)
	}

	instanceName, err := GenerateCommissionableInstanceName()
	if err != nil {
		return fmt.Errorf("responder: generate instance name: %w", err)
	}
	instance := strings.ToLower(instanceName) + "." + ServiceCommissioner + "." + DefaultDomain

	base := ServiceCommissioner + "." + DefaultDomain
	ptrNames := []string{base}
	if txt.VendorID != 0 {
		ptrNames = append(ptrNames, fmt.Sprintf("_V%d._sub.%s", txt.VendorID, base))
	}
	if txt.DeviceType != 0 {
		ptrNames = append(ptrNames, fmt.Sprintf("_T%d._sub.%s", txt.DeviceType, base))
	}

	set := &ownedRecordSet{
		serviceType: ServiceTypeCommissioner,
		ptrNames:    ptrNames,
		instance:    instance,
		ptrTTL:      defaultPTRTTL,
		srv:         r.buildSRV(instance, port, defaultSRVTTL),
		txt:         r.buildTXT(instance, txt.Encode(), defaultTXTTTL),
	}
	return r.register(ServiceTypeCommissioner, set)
}

const (
	defaultPTRTTL uint32 = 4500
	defaultSRVTTL uint32 = 120
	defaultTXTTTL uint32 = 4500
	defaultATTL   uint32 = 120
)

func (r *Responder) buildSRV(instance string, port uint16, ttl uint32) dnscodec.Record {
	return dnscodec.Record{
		Name: instance, Type: dnscodec.TypeSRV, Class: dnscodec.ClassIN, CacheFlush: true, TTL: ttl,
		SRV: dnscodec.SRVData{Priority: 0, Weight: 0, Port: port, Target: r.hostName},
	}
}

func (r *Responder) buildTXT(instance string, strs []string, ttl uint32) dnscodec.Record {
	raw := make([][]byte, len(strs))
	for i, s := range strs {
		raw[i] = []byte(s)
	}
	return dnscodec.Record{
		Name: instance, Type: dnscodec.TypeTXT, Class: dnscodec.ClassIN, CacheFlush: true, TTL: ttl, TXT: raw,
	}
}

func (r *Responder) register(st ServiceType, set *ownedRecordSet) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if _, exists := r.services[st]; exists {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.services[st] = set
	r.mu.Unlock()

	r.announce(set)
	return nil
}

// Stop unregisters a service and sends a ttl=0 goodbye for its records.
func (r *Responder) Stop(st ServiceType) error {
	r.mu.Lock()
	set, exists := r.services[st]
	if !exists {
		r.mu.Unlock()
		return ErrNotStarted
	}
	delete(r.services, st)
	r.mu.Unlock()

	r.goodbye(set)
	return nil
}

// ExpireAnnouncements sends ttl=0 goodbye records for every currently
// registered service and clears the registration table, without closing
// the responder.
func (r *Responder) ExpireAnnouncements() {
	r.mu.Lock()
	services := r.services
	r.services = make(map[ServiceType]*ownedRecordSet)
	r.mu.Unlock()

	for _, set := range services {
		r.goodbye(set)
	}
}

// Close expires all announcements and stops accepting further registrations.
func (r *Responder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	services := r.services
	r.services = nil
	r.mu.Unlock()

	for _, set := range services {
		r.goodbye(set)
	}
	return nil
}

// recordsOf returns the PTR/SRV/TXT/A/AAAA records a set contributes,
// computed fresh each time so address changes are picked up without an
// explicit re-announce call.
func (r *Responder) recordsOf(set *ownedRecordSet) []dnscodec.Record {
	var out []dnscodec.Record
	for _, ptrName := range set.ptrNames {
		out = append(out, dnscodec.Record{
			Name: ptrName, Type: dnscodec.TypePTR, Class: dnscodec.ClassIN, TTL: set.ptrTTL,
			PTRName: set.instance,
		})
	}
	out = append(out, set.srv, set.txt)
	out = append(out, r.addressRecords(defaultATTL)...)
	return out
}

func (r *Responder) addressRecords(ttl uint32) []dnscodec.Record {
	var out []dnscodec.Record
	for _, ips := range r.addrs.Addresses() {
		for _, ip := range ips {
			rt := dnscodec.TypeA
			if ip.To4() == nil {
				rt = dnscodec.TypeAAAA
			}
			out = append(out, dnscodec.Record{
				Name: r.hostName, Type: rt, Class: dnscodec.ClassIN, CacheFlush: true, TTL: ttl, IP: []byte(ip),
			})
		}
	}
	return out
}

// announce sends an unsolicited multicast of every record a newly
// registered service owns, after the standard jitter delay.
func (r *Responder) announce(set *ownedRecordSet) {
	records := r.recordsOf(set)
	r.clk.GetTimer(jitter(), func() {
		r.sendAnswer(records, nil, nil)
	})
}

// goodbye sends ttl=0 versions of a service's owned records immediately
// (RFC 6762 §10.1 recommends goodbyes go out without the usual jitter delay).
func (r *Responder) goodbye(set *ownedRecordSet) {
	records := r.recordsOf(set)
	for i := range records {
		records[i].TTL = 0
	}
	r.sendAnswer(records, nil, nil)
}

// HandlePacket ingests one inbound query datagram and answers it.
func (r *Responder) HandlePacket(data []byte, from *net.UDPAddr, iface string) {
	msg, err := dnscodec.Decode(data)
	if err != nil {
		if r.log != nil {
			r.log.Debugf("mdns-responder: decode failed: %v", err)
		}
		return
	}
	if msg.Header.Response {
		return
	}

	r.mu.Lock()
	services := make([]*ownedRecordSet, 0, len(r.services))
	for _, set := range r.services {
		services = append(services, set)
	}
	r.mu.Unlock()
	if len(services) == 0 {
		return
	}

	var multicastAnswers, unicastAnswers []dnscodec.Record
	var additional []dnscodec.Record

	for _, q := range msg.Questions {
		matched, extra := r.matchQuestion(q, services)
		if len(matched) == 0 {
			continue
		}
		matched = suppressKnownAnswers(matched, msg.Answers)
		if q.UnicastResponse {
			unicastAnswers = append(unicastAnswers, matched...)
		} else {
			multicastAnswers = append(multicastAnswers, matched...)
		}
		additional = append(additional, extra...)
	}

	if len(multicastAnswers) == 0 && len(unicastAnswers) == 0 {
		return
	}

	target := from
	r.clk.GetTimer(jitter(), func() {
		if len(multicastAnswers) > 0 {
			r.sendAnswer(multicastAnswers, dedupeAdditional(multicastAnswers, additional), nil)
		}
		if len(unicastAnswers) > 0 {
			r.sendAnswer(unicastAnswers, dedupeAdditional(unicastAnswers, additional), target)
		}
	})
}

// matchQuestion returns the owned records answering q, plus related
// A/AAAA records to carry as additionalRecords when q is not itself an
// address query.
func (r *Responder) matchQuestion(q dnscodec.Question, services []*ownedRecordSet) (answers, additional []dnscodec.Record) {
	// Decoded names carry no trailing root dot; owned names do.
	qname := strings.ToLower(strings.TrimSuffix(q.Name, ".")) + "."

	for _, set := range services {
		for _, ptrName := range set.ptrNames {
			if strings.ToLower(ptrName) == qname && (q.Type == dnscodec.TypePTR || q.Type == dnscodec.TypeANY) {
				answers = append(answers, dnscodec.Record{
					Name: ptrName, Type: dnscodec.TypePTR, Class: dnscodec.ClassIN, TTL: set.ptrTTL,
					PTRName: set.instance,
				})
				additional = append(additional, set.srv, set.txt)
				additional = append(additional, r.addressRecords(defaultATTL)...)
			}
		}

		if strings.ToLower(set.instance) == qname {
			if q.Type == dnscodec.TypeSRV || q.Type == dnscodec.TypeANY {
				answers = append(answers, set.srv)
			}
			if q.Type == dnscodec.TypeTXT || q.Type == dnscodec.TypeANY {
				answers = append(answers, set.txt)
			}
			if len(answers) > 0 {
				additional = append(additional, r.addressRecords(defaultATTL)...)
			}
		}
	}

	if strings.ToLower(r.hostName) == qname {
		for _, a := range r.addressRecords(defaultATTL) {
			if q.Type == dnscodec.TypeANY ||
				(q.Type == dnscodec.TypeA && a.Type == dnscodec.TypeA) ||
				(q.Type == dnscodec.TypeAAAA && a.Type == dnscodec.TypeAAAA) {
				answers = append(answers, a)
			}
		}
	}

	return answers, additional
}

// suppressKnownAnswers drops any candidate answer byte-for-byte equal to a
// record already present in the querier's knownAnswers section.
func suppressKnownAnswers(candidates, known []dnscodec.Record) []dnscodec.Record {
	if len(known) == 0 {
		return candidates
	}
	knownEnc := make(map[string]bool, len(known))
	for _, k := range known {
		enc, err := dnscodec.EncodeRecord(k)
		if err != nil {
			continue
		}
		knownEnc[string(enc)] = true
	}

	out := make([]dnscodec.Record, 0, len(candidates))
	for _, c := range candidates {
		enc, err := dnscodec.EncodeRecord(c)
		if err != nil {
			out = append(out, c)
			continue
		}
		if !knownEnc[string(enc)] {
			out = append(out, c)
		}
	}
	return out
}

// dedupeAdditional drops any additional record that's already among the
// chosen answers, or that duplicates another additional record.
func dedupeAdditional(answers, additional []dnscodec.Record) []dnscodec.Record {
	seen := map[string]bool{}
	for _, a := range answers {
		if enc, err := dnscodec.EncodeRecord(a); err == nil {
			seen[string(enc)] = true
		}
	}
	var out []dnscodec.Record
	for _, a := range additional {
		enc, err := dnscodec.EncodeRecord(a)
		if err != nil {
			continue
		}
		if seen[string(enc)] {
			continue
		}
		seen[string(enc)] = true
		out = append(out, a)
	}
	return out
}

// sendAnswer applies duplicate suppression per record, builds a response
// message from whatever survives, and sends it via the configured target
// (nil means multicast).
func (r *Responder) sendAnswer(answers, additional []dnscodec.Record, unicastTarget *net.UDPAddr) {
	now := r.clk.Now()
	var filtered []dnscodec.Record
	for _, rec := range answers {
		if r.shouldSend(rec, now) {
			filtered = append(filtered, rec)
		}
	}
	if len(filtered) == 0 {
		return
	}

	msg := &dnscodec.Message{
		Header:            dnscodec.Header{Response: true},
		Answers:           filtered,
		AdditionalRecords: additional,
	}
	encoded, err := dnscodec.Encode(msg)
	if err != nil {
		if r.log != nil {
			r.log.Warnf("mdns-responder: encode answer failed: %v", err)
		}
		return
	}
	if err := r.sender.Send(encoded, unicastTarget); err != nil && r.log != nil {
		r.log.Warnf("mdns-responder: send answer failed: %v", err)
	}
}

// shouldSend applies the duplicate-suppression window: a record is skipped
// if it was already sent within the last 1s or TTL/4, whichever is longer.
// Goodbye (ttl=0) records bypass suppression so they always go out.
func (r *Responder) shouldSend(rec dnscodec.Record, now time.Time) bool {
	if rec.TTL == 0 {
		return true
	}

	enc, err := dnscodec.EncodeRecord(rec)
	if err != nil {
		return true
	}
	key := string(enc)

	window := minDuplicateSuppressWindow
	if quarter := time.Duration(rec.TTL) * time.Second / 4; quarter > window {
		window = quarter
	}

	r.dupMu.Lock()
	defer r.dupMu.Unlock()
	if last, ok := r.lastSentAt[key]; ok && now.Sub(last) < window {
		return false
	}
	r.lastSentAt[key] = now
	return true
}

// jitter returns a random delay in [jitterFloor, jitterCeil], used to
// stagger outbound responses per RFC 6762 §6.
func jitter() time.Duration {
	span := int64(jitterCeil - jitterFloor)
	return jitterFloor + time.Duration(rand.Int63n(span+1))
}
