package exchange

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quietridge/matter/pkg/message"
	"github.com/quietridge/matter/pkg/session"
	"github.com/quietridge/matter/pkg/transport"
)

// testSession implements SessionContext for testing.
type testSession struct {
	params    session.Params
	sessionID uint16
	peerID    uint16
	counter   uint32
	mu        sync.Mutex
}

func newTestSession(localID, peerID uint16) *testSession {
	return &testSession{
		params: session.Params{
			IdleInterval:    50 * time.Millisecond, // fast for tests
			ActiveInterval:  30 * time.Millisecond,
			ActiveThreshold: 100 * time.Millisecond,
		},
		sessionID: localID,
		peerID:    peerID,
	}
}

func (s *testSession) GetParams() session.Params { return s.params }
func (s *testSession) LocalSessionID() uint16    { return s.sessionID }
func (s *testSession) PeerSessionID() uint16     { return s.peerID }
func (s *testSession) IsPeerActive() bool        { return false }

func (s *testSession) Encrypt(header *message.MessageHeader, protocol *message.ProtocolHeader, payload []byte, privacy bool) ([]byte, error) {
	s.mu.Lock()
	s.counter++
	header.MessageCounter = s.counter
	s.mu.Unlock()

	header.SessionID = s.peerID
	frame := &message.Frame{
		Header:   *header,
		Protocol: *protocol,
		Payload:  payload,
	}
	return frame.EncodeUnsecured(), nil
}

// deterministicRandom provides predictable random values for testing.
type deterministicRandom struct {
	value float64
}

func (r *deterministicRandom) Float64() float64 { return r.value }

func mustTransportManager(t *testing.T, conn net.PacketConn, handler transport.MessageHandler) *transport.Manager {
	t.Helper()
	mgr, err := transport.NewManager(transport.ManagerConfig{
		UDPConn:        conn,
		UDPEnabled:     true,
		TCPEnabled:     false,
		MessageHandler: handler,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr
}

func noopHandler(msg *transport.ReceivedMessage) {}

// senderFixture wires one pipe-backed UDP sender into a fresh exchange
// manager, pointed at a bare receiver endpoint on the other side of the
// pipe. Most of the reliability/lifecycle tests below only need the
// sending half instrumented.
type senderFixture struct {
	t       *testing.T
	f0, f1  *transport.PipeFactory
	exchMgr *Manager
	sess    *testSession
	peer    transport.PeerAddress
}

func newSenderFixture(t *testing.T, autoProcess bool) *senderFixture {
	t.Helper()

	var f0, f1 *transport.PipeFactory
	if autoProcess {
		f0, f1 = transport.NewPipeFactoryPair()
	} else {
		f0, f1 = transport.NewPipeFactoryPairWithConfig(transport.PipeConfig{AutoProcess: false})
	}
	t.Cleanup(func() { f0.Pipe().Close() })

	conn0, _ := f0.CreateUDPConn(5540)
	_, _ = f1.CreateUDPConn(5540)

	mgr0 := mustTransportManager(t, conn0, noopHandler)
	sess := newTestSession(1, 2)
	exchMgr := NewManager(ManagerConfig{TransportManager: mgr0})

	return &senderFixture{
		t: t, f0: f0, f1: f1, exchMgr: exchMgr, sess: sess,
		peer: transport.NewUDPPeerAddress(f1.LocalAddr()),
	}
}

func (f *senderFixture) newExchange() *ExchangeContext {
	f.t.Helper()
	ctx, err := f.exchMgr.NewExchange(f.sess, f.sess.sessionID, f.peer, message.ProtocolSecureChannel, nil)
	if err != nil {
		f.t.Fatalf("NewExchange: %v", err)
	}
	return ctx
}

// =============================================================================
// Message Reliability Protocol
// =============================================================================

// TestE2E_InFlightLimit verifies that only one reliable message can be
// pending per exchange at a time (Spec 4.10: flow control).
func TestE2E_InFlightLimit(t *testing.T) {
	f := newSenderFixture(t, false)
	ctx := f.newExchange()

	if err := ctx.SendMessage(0x01, []byte("first"), true); err != nil {
		t.Fatalf("First SendMessage: %v", err)
	}
	if !ctx.HasPendingRetransmit() {
		t.Error("Expected pending retransmit after reliable send")
	}

	if err := ctx.SendMessage(0x02, []byte("second"), true); err != ErrPendingRetransmit {
		t.Errorf("Second SendMessage: got %v, want ErrPendingRetransmit", err)
	}
	if ctx.CanSend() {
		t.Error("CanSend should return false while retransmit pending")
	}
}

// TestE2E_MessageCounterMonotonicity verifies that message counters increase.
func TestE2E_MessageCounterMonotonicity(t *testing.T) {
	f0, f1 := transport.NewPipeFactoryPair()
	defer f0.Pipe().Close()

	var counters []uint32
	var mu sync.Mutex

	conn0, _ := f0.CreateUDPConn(5540)
	conn1, _ := f1.CreateUDPConn(5540)

	mgr1 := mustTransportManager(t, conn1, func(msg *transport.ReceivedMessage) {
		var header message.MessageHeader
		if _, err := header.Decode(msg.Data); err != nil {
			return
		}
		mu.Lock()
		counters = append(counters, header.MessageCounter)
		mu.Unlock()
	})
	mgr1.Start()
	defer mgr1.Stop()

	mgr0 := mustTransportManager(t, conn0, noopHandler)
	sess := newTestSession(1, 2)
	exchMgr := NewManager(ManagerConfig{TransportManager: mgr0})
	peerAddr := transport.NewUDPPeerAddress(f1.LocalAddr())

	for i := 0; i < 5; i++ {
		ctx, err := exchMgr.NewExchange(sess, sess.sessionID, peerAddr, message.ProtocolSecureChannel, nil)
		if err != nil {
			t.Fatalf("NewExchange %d: %v", i, err)
		}
		if err := ctx.SendMessage(uint8(i), []byte("test"), false); err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(counters) < 5 {
		t.Fatalf("Expected 5 messages, got %d", len(counters))
	}
	for i := 1; i < len(counters); i++ {
		if counters[i] <= counters[i-1] {
			t.Errorf("Counter not monotonic: counters[%d]=%d <= counters[%d]=%d",
				i, counters[i], i-1, counters[i-1])
		}
	}
}

// TestE2E_RetransmitTableBasics verifies RetransmitTable tracks pending messages.
func TestE2E_RetransmitTableBasics(t *testing.T) {
	table := NewRetransmitTable(nil)
	key := exchangeKey{localSessionID: 1, exchangeID: 100, role: ExchangeRoleInitiator}
	peerAddr := transport.PeerAddress{TransportType: transport.TransportTypeUDP}

	var callbackCalled bool
	if err := table.Add(key, 12345, []byte("test message"), peerAddr, 50*time.Millisecond,
		func(entry *RetransmitEntry) { callbackCalled = true }); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !table.HasPending(key) {
		t.Error("Expected pending entry")
	}
	entry, ok := table.GetByCounter(12345)
	if !ok {
		t.Fatal("Entry not found by counter")
	}
	if entry.SendCount != 1 {
		t.Errorf("SendCount = %d, want 1", entry.SendCount)
	}

	if err := table.Add(key, 12346, []byte("second"), peerAddr, 50*time.Millisecond, nil); err != ErrPendingRetransmit {
		t.Errorf("Duplicate Add: got %v, want ErrPendingRetransmit", err)
	}

	if acked := table.Ack(12345); acked == nil {
		t.Error("Ack returned nil")
	}
	if table.HasPending(key) {
		t.Error("Entry should be removed after Ack")
	}

	time.Sleep(100 * time.Millisecond)
	if callbackCalled {
		t.Error("Callback should not be called after Ack")
	}
}

// TestE2E_RetransmitScheduling verifies retransmit scheduling with backoff.
func TestE2E_RetransmitScheduling(t *testing.T) {
	table := NewRetransmitTable(nil)
	key := exchangeKey{localSessionID: 1, exchangeID: 100, role: ExchangeRoleInitiator}
	peerAddr := transport.PeerAddress{TransportType: transport.TransportTypeUDP}

	var retransmitCount int32
	err := table.Add(key, 12345, []byte("test"), peerAddr, 10*time.Millisecond,
		func(entry *RetransmitEntry) {
			atomic.AddInt32(&retransmitCount, 1)
			table.ScheduleRetransmit(entry.MessageCounter, 10*time.Millisecond)
		})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	table.Ack(12345)

	if count := atomic.LoadInt32(&retransmitCount); count < 2 {
		t.Errorf("Expected at least 2 retransmit callbacks, got %d", count)
	}
}

// TestE2E_MaxRetransmissions verifies MRP_MAX_TRANSMISSIONS limit.
// MRPMaxTransmissions=5 allows 1 initial send plus 4 retransmits, so
// (MRPMaxTransmissions - 1) ScheduleRetransmit calls succeed and the next
// call trips the limit and removes the entry.
func TestE2E_MaxRetransmissions(t *testing.T) {
	table := NewRetransmitTable(nil)
	key := exchangeKey{localSessionID: 1, exchangeID: 100, role: ExchangeRoleInitiator}
	peerAddr := transport.PeerAddress{TransportType: transport.TransportTypeUDP}

	if err := table.Add(key, 12345, []byte("test"), peerAddr, time.Hour, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entry, ok := table.GetByCounter(12345)
	if !ok {
		t.Fatal("Entry not found after Add")
	}
	if entry.SendCount != 1 {
		t.Errorf("Initial SendCount = %d, want 1", entry.SendCount)
	}

	successfulRetransmits := MRPMaxTransmissions - 1
	for i := 0; i < successfulRetransmits; i++ {
		if ok := table.ScheduleRetransmit(12345, time.Hour); !ok {
			t.Errorf("ScheduleRetransmit %d failed early", i+1)
		}
		entry, found := table.GetByCounter(12345)
		if !found {
			t.Fatalf("Entry removed too early at retransmit %d", i+1)
		}
		if want := i + 2; entry.SendCount != want {
			t.Errorf("SendCount = %d, want %d", entry.SendCount, want)
		}
	}

	if ok := table.ScheduleRetransmit(12345, time.Hour); ok {
		t.Error("ScheduleRetransmit should fail after max transmissions")
	}
	if table.HasPending(key) {
		t.Error("Entry should be removed after max retransmissions")
	}
}

// TestE2E_BackoffCalculation verifies MRP backoff formula.
func TestE2E_BackoffCalculation(t *testing.T) {
	calc := NewBackoffCalculator(&deterministicRandom{value: 0.5})
	baseInterval := 500 * time.Millisecond

	attempts := []int{0, 1, 2, 3, 4}
	var prevBackoff time.Duration
	for _, attempt := range attempts {
		backoff := calc.Calculate(baseInterval, attempt)
		minBackoff := calc.CalculateMin(baseInterval, attempt)
		maxBackoff := calc.CalculateMax(baseInterval, attempt)

		if backoff < minBackoff || backoff > maxBackoff {
			t.Errorf("Backoff %v out of range [%v, %v]", backoff, minBackoff, maxBackoff)
		}
		if attempt > MRPBackoffThreshold && prevBackoff > 0 {
			if backoff < time.Duration(float64(prevBackoff)*1.5) {
				t.Errorf("Backoff not growing exponentially: %v vs prev %v", backoff, prevBackoff)
			}
		}
		prevBackoff = backoff
	}
}

// TestE2E_AckTable verifies ACK tracking and piggybacking.
func TestE2E_AckTable(t *testing.T) {
	table := NewAckTable(nil)
	key := exchangeKey{localSessionID: 1, exchangeID: 100, role: ExchangeRoleResponder}

	var timeoutCalled bool
	if displaced := table.Add(key, 12345, func() { timeoutCalled = true }); displaced != nil {
		t.Error("First add should not displace")
	}

	if !table.HasPendingAck(key) {
		t.Error("Expected pending ACK")
	}
	if counter, ok := table.PendingCounter(key); !ok || counter != 12345 {
		t.Errorf("PendingCounter: got %d, %v; want 12345, true", counter, ok)
	}

	table.MarkAcked(key)
	if table.HasPendingAck(key) {
		t.Error("Should not have pending ACK after MarkAcked")
	}

	time.Sleep(MRPStandaloneAckTimeout + 50*time.Millisecond)
	if timeoutCalled {
		t.Error("Timeout should not be called after MarkAcked")
	}
}

// TestE2E_StandaloneAckTimeout verifies standalone ACK is sent after timeout.
func TestE2E_StandaloneAckTimeout(t *testing.T) {
	table := NewAckTable(nil)
	key := exchangeKey{localSessionID: 1, exchangeID: 100, role: ExchangeRoleResponder}

	timeoutCalled := make(chan struct{})
	table.Add(key, 12345, func() { close(timeoutCalled) })

	select {
	case <-timeoutCalled:
	case <-time.After(MRPStandaloneAckTimeout + 100*time.Millisecond):
		t.Error("Timeout callback not called")
	}
}

// =============================================================================
// Packet Loss Scenarios (Scripted)
// =============================================================================

// TestE2E_PacketLoss_ScriptedDrop sends one unreliable message through a
// manually processed pipe and logs how many packets Process delivers; no
// drop pattern is configured.
func TestE2E_PacketLoss_ScriptedDrop(t *testing.T) {
	f := newSenderFixture(t, false)
	ctx := f.newExchange()

	if err := ctx.SendMessage(0x01, []byte("test packet"), false); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	delivered := f.f0.Pipe().Process()
	t.Logf("Delivered %d packets", delivered)
}

// TestE2E_NetworkCondition_DropRate tests behavior under packet loss.
func TestE2E_NetworkCondition_DropRate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network simulation test in short mode")
	}

	f0, f1 := transport.NewPipeFactoryPair()
	defer f0.Pipe().Close()
	f0.SetCondition(transport.NetworkCondition{DropRate: 0.5})

	conn0, _ := f0.CreateUDPConn(5540)
	conn1, _ := f1.CreateUDPConn(5540)

	var received int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 1024)
		for {
			conn1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
			if _, _, err := conn1.ReadFrom(buf); err != nil {
				return
			}
			atomic.AddInt32(&received, 1)
		}
	}()

	const numPackets = 50
	for i := 0; i < numPackets; i++ {
		conn0.WriteTo([]byte("test"), f1.PeerAddr())
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	r := atomic.LoadInt32(&received)
	dropRate := float64(numPackets-int(r)) / float64(numPackets)
	t.Logf("Sent: %d, Received: %d, Drop rate: %.1f%%", numPackets, r, dropRate*100)

	if r < 10 || r > 40 {
		t.Errorf("Unexpected receive count %d for 50%% drop rate", r)
	}
}

// TestE2E_NetworkCondition_Delay tests behavior under network delay.
func TestE2E_NetworkCondition_Delay(t *testing.T) {
	f0, f1 := transport.NewPipeFactoryPair()
	defer f0.Pipe().Close()

	delayDuration := 50 * time.Millisecond
	f0.SetCondition(transport.NetworkCondition{DelayMin: delayDuration, DelayMax: delayDuration})

	conn0, _ := f0.CreateUDPConn(5540)
	conn1, _ := f1.CreateUDPConn(5540)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 100)
		conn1.ReadFrom(buf)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond) // let receiver start

	start := time.Now()
	conn0.WriteTo([]byte("delayed"), f1.PeerAddr())
	elapsed := time.Since(start)
	if elapsed < delayDuration {
		t.Errorf("Send took %v, expected >= %v", elapsed, delayDuration)
	}

	select {
	case <-done:
		t.Logf("Message delivered after %v delay", elapsed)
	case <-time.After(time.Second):
		t.Error("Message not received")
	}
}

// =============================================================================
// Exchange Lifecycle
// =============================================================================

// TestE2E_ExchangeClose verifies an exchange with nothing pending closes at
// once and then refuses sends.
func TestE2E_ExchangeClose(t *testing.T) {
	f := newSenderFixture(t, true)
	ctx := f.newExchange()

	if ctx.IsClosed() {
		t.Error("Exchange should be active")
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ctx.IsClosed() {
		t.Error("Exchange should be closed")
	}

	if err := ctx.SendMessage(0x01, []byte("test"), false); err != ErrExchangeClosed && err != ErrExchangeClosing {
		t.Errorf("SendMessage after close: got %v, want ErrExchangeClosed", err)
	}
}

// TestE2E_MultipleExchanges verifies concurrent exchanges work correctly.
func TestE2E_MultipleExchanges(t *testing.T) {
	f0, f1 := transport.NewPipeFactoryPair()
	defer f0.Pipe().Close()

	conn0, _ := f0.CreateUDPConn(5540)
	conn1, _ := f1.CreateUDPConn(5540)

	var received int32
	mgr1 := mustTransportManager(t, conn1, func(msg *transport.ReceivedMessage) {
		atomic.AddInt32(&received, 1)
	})
	mgr1.Start()
	defer mgr1.Stop()

	mgr0 := mustTransportManager(t, conn0, noopHandler)
	sess := newTestSession(1, 2)
	exchMgr := NewManager(ManagerConfig{TransportManager: mgr0})
	peerAddr := transport.NewUDPPeerAddress(f1.LocalAddr())

	const numExchanges = 10
	for i := 0; i < numExchanges; i++ {
		ctx, err := exchMgr.NewExchange(sess, sess.sessionID, peerAddr, message.ProtocolSecureChannel, nil)
		if err != nil {
			t.Fatalf("NewExchange %d: %v", i, err)
		}
		if err := ctx.SendMessage(uint8(i), []byte("test"), false); err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
	}

	if exchMgr.ExchangeCount() != numExchanges {
		t.Errorf("ExchangeCount = %d, want %d", exchMgr.ExchangeCount(), numExchanges)
	}

	time.Sleep(50 * time.Millisecond)
	if r := atomic.LoadInt32(&received); r != numExchanges {
		t.Errorf("Received %d messages, want %d", r, numExchanges)
	}
}

// =============================================================================
// Cross-Transport (TCP/UDP Manager Pair)
// =============================================================================

func newExchangeBetween(t *testing.T, pair *TestManagerPair, from, to int, tcp bool) *ExchangeContext {
	t.Helper()
	ctx, err := pair.Manager(from).NewExchange(
		pair.Session(from), 0, pair.PeerAddress(to, tcp),
		message.ProtocolSecureChannel, nil,
	)
	if err != nil {
		t.Fatalf("NewExchange %d->%d: %v", from, to, err)
	}
	return ctx
}

// TestE2E_TCP_ExchangeMessage verifies the exchange layer works over TCP
// transport: Manager 0 -> transport (TCP) -> pipe -> transport -> Manager 1.
func TestE2E_TCP_ExchangeMessage(t *testing.T) {
	pair, err := NewTestManagerPair(TestManagerPairConfig{UDP: false, TCP: true})
	if err != nil {
		t.Fatalf("NewTestManagerPair: %v", err)
	}
	defer pair.Close()

	ctx := newExchangeBetween(t, pair, 0, 1, true)
	payload := []byte("hello over TCP exchange")
	if err := ctx.SendMessage(0x30, payload, false); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	msg, ok := pair.WaitForMessage(1, time.Second)
	if !ok {
		t.Fatal("Timeout waiting for message at Manager 1")
	}
	if msg.Opcode != 0x30 {
		t.Errorf("Opcode = 0x%02x, want 0x30", msg.Opcode)
	}
	if string(msg.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", msg.Payload, payload)
	}
	if !msg.Unsolicited {
		t.Error("Message should be unsolicited (no matching exchange on receiver)")
	}
}

// TestE2E_UDP_ExchangeMessage is the UDP counterpart to TestE2E_TCP_ExchangeMessage.
func TestE2E_UDP_ExchangeMessage(t *testing.T) {
	pair, err := NewTestManagerPair(TestManagerPairConfig{})
	if err != nil {
		t.Fatalf("NewTestManagerPair: %v", err)
	}
	defer pair.Close()

	ctx := newExchangeBetween(t, pair, 0, 1, false)
	payload := []byte("hello over UDP exchange")
	if err := ctx.SendMessage(0x20, payload, false); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	msg, ok := pair.WaitForMessage(1, time.Second)
	if !ok {
		t.Fatal("Timeout waiting for message at Manager 1")
	}
	if msg.Opcode != 0x20 {
		t.Errorf("Opcode = 0x%02x, want 0x20", msg.Opcode)
	}
	if string(msg.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", msg.Payload, payload)
	}
}

// TestE2E_Bidirectional verifies bidirectional exchange communication.
func TestE2E_Bidirectional(t *testing.T) {
	pair, err := NewTestManagerPair(TestManagerPairConfig{})
	if err != nil {
		t.Fatalf("NewTestManagerPair: %v", err)
	}
	defer pair.Close()

	ctx0 := newExchangeBetween(t, pair, 0, 1, false)
	if err := ctx0.SendMessage(0x01, []byte("ping"), false); err != nil {
		t.Fatalf("SendMessage 0->1: %v", err)
	}
	msg1, ok := pair.WaitForMessage(1, time.Second)
	if !ok {
		t.Fatal("Manager 1 didn't receive message")
	}
	if string(msg1.Payload) != "ping" {
		t.Errorf("Manager 1 got %q, want %q", msg1.Payload, "ping")
	}

	ctx1 := newExchangeBetween(t, pair, 1, 0, false)
	if err := ctx1.SendMessage(0x02, []byte("pong"), false); err != nil {
		t.Fatalf("SendMessage 1->0: %v", err)
	}
	msg0, ok := pair.WaitForMessage(0, time.Second)
	if !ok {
		t.Fatal("Manager 0 didn't receive message")
	}
	if string(msg0.Payload) != "pong" {
		t.Errorf("Manager 0 got %q, want %q", msg0.Payload, "pong")
	}
}
