package discovery

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quietridge/matter/pkg/clock"
	"github.com/quietridge/matter/pkg/dnscodec"
	"github.com/quietridge/matter/pkg/fabric"
)

// fakeSender records every outbound send without touching a real socket.
type fakeSender struct {
	mu       sync.Mutex
	sent     [][]byte
	unicasts []*net.UDPAddr
}

func (f *fakeSender) Send(data []byte, unicastTarget *net.UDPAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	f.unicasts = append(f.unicasts, unicastTarget)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestScanner(t *testing.T) (*Scanner, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	s, err := NewScanner(ScannerConfig{Sender: sender, Clock: clock.New()})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	return s, sender
}

func TestNewScannerRequiresSender(t *testing.T) {
	if _, err := NewScanner(ScannerConfig{}); err != ErrNoSender {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
}

func TestSetQueryRecordsResetsScheduleOnChange(t *testing.T) {
	s, _ := newTestScanner(t)
	s.SetQueryRecords("q1", []DNSQuery{{Name: "_matterc._udp.local.", Type: dnscodec.TypePTR}}, nil)

	if s.queries.count() != 1 {
		t.Fatalf("expected 1 active query, got %d", s.queries.count())
	}
	if s.interval != minQueryInterval {
		t.Fatalf("expected interval reset to minimum, got %v", s.interval)
	}
}

func TestTickSendsAndDoublesInterval(t *testing.T) {
	s, sender := newTestScanner(t)
	s.SetQueryRecords("q1", []DNSQuery{{Name: "_matterc._udp.local.", Type: dnscodec.TypePTR}}, nil)

	now := time.Now()
	s.Tick(now)
	if sender.count() != 1 {
		t.Fatalf("expected 1 send after first due tick, got %d", sender.count())
	}
	if s.interval != minQueryInterval*2 {
		t.Fatalf("expected interval doubled, got %v", s.interval)
	}

	// Not due yet: no second send.
	s.Tick(now.Add(time.Millisecond))
	if sender.count() != 1 {
		t.Fatalf("expected no send before the next interval elapses, got %d", sender.count())
	}
}

func TestTickNoopsWithNoActiveQueries(t *testing.T) {
	s, sender := newTestScanner(t)
	s.Tick(time.Now())
	if sender.count() != 0 {
		t.Fatal("expected no send with no active queries")
	}
}

func encodeTestMessage(t *testing.T, msg *dnscodec.Message) []byte {
	t.Helper()
	b, err := dnscodec.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func TestHandlePacketIngestsOperationalRecord(t *testing.T) {
	s, _ := newTestScanner(t)

	deviceName := "ABCDEF0123456789-0000000000000001._matter._tcp.local."
	msg := &dnscodec.Message{
		Header: dnscodec.Header{Response: true},
		Answers: []dnscodec.Record{
			{Name: deviceName, Type: dnscodec.TypeSRV, Class: dnscodec.ClassIN, TTL: 120,
				SRV: dnscodec.SRVData{Port: 5540, Target: "host1.local."}},
			{Name: "host1.local.", Type: dnscodec.TypeA, Class: dnscodec.ClassIN, TTL: 120,
				IP: net.ParseIP("192.0.2.10").To4()},
		},
	}

	s.HandlePacket(encodeTestMessage(t, msg), nil, "eth0")

	rec, ok := s.operational.get(strings.ToLower(deviceName))
	if !ok {
		t.Fatal("expected operational record to be cached")
	}
	if !rec.HasAddresses() {
		t.Fatal("expected cached record to have a resolved address")
	}
}

func TestHandlePacketIgnoresQueries(t *testing.T) {
	s, _ := newTestScanner(t)

	msg := &dnscodec.Message{
		Header:    dnscodec.Header{Response: false},
		Questions: []dnscodec.Question{{Name: "_matterc._udp.local.", Type: dnscodec.TypePTR, Class: dnscodec.ClassIN}},
	}
	s.HandlePacket(encodeTestMessage(t, msg), nil, "eth0")

	if len(s.commissionable.snapshot()) != 0 {
		t.Fatal("expected a query packet to be ignored, not ingested")
	}
}

func TestIngestOperationalGoodbyeRemovesRecord(t *testing.T) {
	s, _ := newTestScanner(t)
	deviceName := "ABCDEF0123456789-0000000000000001._matter._tcp.local."

	s.ingestOperational(dnscodec.Record{Name: deviceName, Type: dnscodec.TypeTXT, TTL: 120}, nil, "eth0")
	if _, ok := s.operational.get(strings.ToLower(deviceName)); !ok {
		t.Fatal("expected record to be cached after TTL>0 TXT")
	}

	s.ingestOperational(dnscodec.Record{Name: deviceName, Type: dnscodec.TypeTXT, TTL: 0}, nil, "eth0")
	if _, ok := s.operational.get(strings.ToLower(deviceName)); ok {
		t.Fatal("expected goodbye (ttl=0) to evict the cached record")
	}
}

func TestSweepExpiresStaleRecords(t *testing.T) {
	s, _ := newTestScanner(t)
	deviceName := "ABCDEF0123456789-0000000000000001._matter._tcp.local."

	past := time.Now().Add(-time.Hour)
	s.operational.set(deviceName, &OperationalDeviceRecord{
		DeviceIdentifier: deviceName,
		Addresses: map[string]AddressEntry{
			"192.0.2.10": {IP: net.ParseIP("192.0.2.10"), ExpiresAt: past},
		},
		ExpiresAt: past,
	})

	s.sweep(time.Now())

	if _, ok := s.operational.get(deviceName); ok {
		t.Fatal("expected expired record to be swept")
	}
}

func TestFindOperationalDeviceReturnsFromCache(t *testing.T) {
	s, _ := newTestScanner(t)

	fab := &fabric.FabricInfo{CompressedFabricID: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	nodeID := fabric.NodeID(42)
	qname := strings.ToLower(OperationalInstanceName(fab.CompressedFabricID, nodeID)) + "." + ServiceOperational + "." + DefaultDomain

	s.operational.set(qname, &OperationalDeviceRecord{
		DeviceIdentifier: qname,
		Addresses: map[string]AddressEntry{
			"192.0.2.10": {IP: net.ParseIP("192.0.2.10"), Port: 5540, ExpiresAt: time.Now().Add(time.Minute)},
		},
		ExpiresAt: time.Now().Add(time.Minute),
	})

	rec, err := s.FindOperationalDevice(fab, nodeID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.HasAddresses() {
		t.Fatal("expected the cached record to be returned with its addresses")
	}
}

func TestFindOperationalDeviceTimesOutWithoutCacheOrResponse(t *testing.T) {
	s, _ := newTestScanner(t)
	fab := &fabric.FabricInfo{CompressedFabricID: [8]byte{9, 9, 9, 9, 9, 9, 9, 9}}

	_, err := s.FindOperationalDevice(fab, fabric.NodeID(7), 10*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func commissionablePacket(t *testing.T, instanceName, hostName string, discriminator uint16, addr string) []byte {
	t.Helper()
	msg := &dnscodec.Message{
		Header: dnscodec.Header{Response: true},
		Answers: []dnscodec.Record{
			{Name: instanceName, Type: dnscodec.TypeTXT, Class: dnscodec.ClassIN, TTL: 120,
				TXT: [][]byte{[]byte("D=" + itoa(discriminator)), []byte("CM=1")}},
			{Name: instanceName, Type: dnscodec.TypeSRV, Class: dnscodec.ClassIN, TTL: 120,
				SRV: dnscodec.SRVData{Port: 5540, Target: hostName}},
			{Name: hostName, Type: dnscodec.TypeA, Class: dnscodec.ClassIN, TTL: 120,
				IP: net.ParseIP(addr).To4()},
		},
	}
	return encodeTestMessage(t, msg)
}

func itoa(v uint16) string {
	return strconv.Itoa(int(v))
}

// TestFindCommissionableDevicesIgnoresNonMatchingRecords guards against
// resolving a FindCommissionableDevices waiter off any commissionable
// record rather than one that actually satisfies the caller's identifier.
func TestFindCommissionableDevicesIgnoresNonMatchingRecords(t *testing.T) {
	s, _ := newTestScanner(t)

	wantDiscriminator := uint16(1234)
	ident := CommissionableIdentifier{LongDiscriminator: &wantDiscriminator}

	resultCh := make(chan *CommissionableDeviceRecord, 1)
	errCh := make(chan error, 1)
	go func() {
		rec, err := s.FindCommissionableDevices(ident, time.Second)
		resultCh <- rec
		errCh <- err
	}()

	// Give the waiter a moment to register, then deliver a commissionable
	// record that does NOT match the requested discriminator.
	time.Sleep(10 * time.Millisecond)
	otherInstance := "NONMATCH._matterc._udp.local."
	s.HandlePacket(commissionablePacket(t, otherInstance, "host1.local.", 9999, "192.0.2.20"), nil, "eth0")

	select {
	case rec := <-resultCh:
		t.Fatalf("FindCommissionableDevices resolved on a non-matching record: %+v", rec)
	case <-time.After(50 * time.Millisecond):
		// Expected: still waiting.
	}

	// Now deliver the genuinely matching record; this should resolve it.
	wantInstance := "MATCH._matterc._udp.local."
	s.HandlePacket(commissionablePacket(t, wantInstance, "host2.local.", wantDiscriminator, "192.0.2.21"), nil, "eth0")

	rec := <-resultCh
	err := <-errCh
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || rec.InstanceName != strings.ToLower(wantInstance) {
		t.Fatalf("expected match on %q, got %+v", wantInstance, rec)
	}
}

// TestFindCommissionableDevicesContinuouslyIgnoresNonMatchingRecords covers
// the onMatch callback path used by the continuous discovery variant.
func TestFindCommissionableDevicesContinuouslyIgnoresNonMatchingRecords(t *testing.T) {
	s, _ := newTestScanner(t)

	wantDiscriminator := uint16(4321)
	ident := CommissionableIdentifier{LongDiscriminator: &wantDiscriminator}

	var mu sync.Mutex
	var seen []string

	done := make(chan error, 1)
	go func() {
		done <- s.FindCommissionableDevicesContinuously(ident, func(rec *CommissionableDeviceRecord) {
			mu.Lock()
			seen = append(seen, rec.InstanceName)
			mu.Unlock()
		}, 80*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	s.HandlePacket(commissionablePacket(t, "NONMATCH2._matterc._udp.local.", "host3.local.", 1111, "192.0.2.30"), nil, "eth0")
	s.HandlePacket(commissionablePacket(t, "MATCH2._matterc._udp.local.", "host4.local.", wantDiscriminator, "192.0.2.31"), nil, "eth0")

	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != strings.ToLower("MATCH2._matterc._udp.local.") {
		t.Fatalf("expected exactly one callback for the matching instance, got %v", seen)
	}
}
