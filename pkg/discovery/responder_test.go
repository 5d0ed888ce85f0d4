package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/quietridge/matter/pkg/clock"
	"github.com/quietridge/matter/pkg/dnscodec"
)

func newTestResponder(t *testing.T) (*Responder, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	addrs := StaticAddressSource{"eth0": {net.ParseIP("192.0.2.5")}}
	r, err := NewResponder(ResponderConfig{
		HostName:  "node1.local.",
		Addresses: addrs,
		Sender:    sender,
		Clock:     clock.New(),
	})
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	return r, sender
}

func TestNewResponderRequiresSenderAndAddresses(t *testing.T) {
	if _, err := NewResponder(ResponderConfig{Addresses: StaticAddressSource{}}); err != ErrNoSender {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
	if _, err := NewResponder(ResponderConfig{Sender: &fakeSender{}}); err != ErrNoAddresses {
		t.Fatalf("expected ErrNoAddresses, got %v", err)
	}
}

func TestStartCommissionableAnnouncesAfterJitter(t *testing.T) {
	r, sender := newTestResponder(t)

	txt := CommissionableTXT{Discriminator: 840, CommissioningMode: CommissioningModeBasic}
	if err := r.StartCommissionable(5540, txt); err != nil {
		t.Fatalf("StartCommissionable: %v", err)
	}

	waitForSend(t, sender, 1)
}

func TestStartCommissionableRejectsInvalidDiscriminator(t *testing.T) {
	r, _ := newTestResponder(t)
	txt := CommissionableTXT{Discriminator: 5000, CommissioningMode: CommissioningModeBasic}
	if err := r.StartCommissionable(5540, txt); err == nil {
		t.Fatal("expected an error for an out-of-range discriminator")
	}
}

func TestStartTwiceForSameServiceFails(t *testing.T) {
	r, _ := newTestResponder(t)
	txt := CommissionableTXT{Discriminator: 840, CommissioningMode: CommissioningModeBasic}

	if err := r.StartCommissionable(5540, txt); err != nil {
		t.Fatalf("StartCommissionable: %v", err)
	}
	if err := r.StartCommissionable(5540, txt); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestHandlePacketAnswersPTRQuery(t *testing.T) {
	r, sender := newTestResponder(t)
	txt := CommissionableTXT{Discriminator: 840, CommissioningMode: CommissioningModeBasic}
	if err := r.StartCommissionable(5540, txt); err != nil {
		t.Fatalf("StartCommissionable: %v", err)
	}
	waitForSend(t, sender, 1) // drain the announcement

	// The announcement just multicast the same PTR record; clear the
	// duplicate-suppression history so the max(1s, TTL/4) window does not
	// hold back the answer.
	r.dupMu.Lock()
	r.lastSentAt = make(map[string]time.Time)
	r.dupMu.Unlock()

	query := &dnscodec.Message{
		Header:    dnscodec.Header{},
		Questions: []dnscodec.Question{{Name: ServiceCommissionable + "." + DefaultDomain, Type: dnscodec.TypePTR, Class: dnscodec.ClassIN}},
	}
	b, err := dnscodec.Encode(query)
	if err != nil {
		t.Fatalf("encode query: %v", err)
	}
	r.HandlePacket(b, nil, "eth0")

	waitForSend(t, sender, 2)
}

func TestHandlePacketSuppressesKnownAnswer(t *testing.T) {
	r, sender := newTestResponder(t)
	txt := CommissionableTXT{Discriminator: 840, CommissioningMode: CommissioningModeBasic}
	if err := r.StartCommissionable(5540, txt); err != nil {
		t.Fatalf("StartCommissionable: %v", err)
	}
	waitForSend(t, sender, 1)

	r.mu.Lock()
	set := r.services[ServiceTypeCommissionable]
	r.mu.Unlock()
	knownPTR := dnscodec.Record{Name: set.ptrNames[0], Type: dnscodec.TypePTR, Class: dnscodec.ClassIN, TTL: set.ptrTTL, PTRName: set.instance}

	query := &dnscodec.Message{
		Questions: []dnscodec.Question{{Name: set.ptrNames[0], Type: dnscodec.TypePTR, Class: dnscodec.ClassIN}},
		Answers:   []dnscodec.Record{knownPTR},
	}
	b, err := dnscodec.Encode(query)
	if err != nil {
		t.Fatalf("encode query: %v", err)
	}
	r.HandlePacket(b, nil, "eth0")

	// The querier already has the PTR answer; suppression should leave the
	// send count unchanged (no new message).
	time.Sleep(200 * time.Millisecond)
	if sender.count() != 1 {
		t.Fatalf("expected known-answer suppression to prevent a resend, got %d sends", sender.count())
	}
}

func TestExpireAnnouncementsSendsGoodbyeImmediately(t *testing.T) {
	r, sender := newTestResponder(t)
	txt := CommissionableTXT{Discriminator: 840, CommissioningMode: CommissioningModeBasic}
	if err := r.StartCommissionable(5540, txt); err != nil {
		t.Fatalf("StartCommissionable: %v", err)
	}
	waitForSend(t, sender, 1)

	r.ExpireAnnouncements()

	if sender.count() != 2 {
		t.Fatalf("expected goodbye to be sent immediately, got %d sends", sender.count())
	}

	r.mu.Lock()
	remaining := len(r.services)
	r.mu.Unlock()
	if remaining != 0 {
		t.Fatal("expected ExpireAnnouncements to clear the registration table")
	}
}

func TestDuplicateSuppressionWithinWindow(t *testing.T) {
	r, _ := newTestResponder(t)
	rec := dnscodec.Record{Name: "a.local.", Type: dnscodec.TypeA, TTL: 120, IP: net.ParseIP("192.0.2.1").To4()}

	now := time.Now()
	if !r.shouldSend(rec, now) {
		t.Fatal("expected first send to be allowed")
	}
	if r.shouldSend(rec, now.Add(time.Second)) {
		t.Fatal("expected a resend within the suppression window to be blocked")
	}
	if !r.shouldSend(rec, now.Add(time.Duration(rec.TTL)*time.Second/4+time.Second)) {
		t.Fatal("expected a resend after the suppression window to be allowed")
	}
}

func TestGoodbyeRecordsBypassDuplicateSuppression(t *testing.T) {
	r, _ := newTestResponder(t)
	rec := dnscodec.Record{Name: "a.local.", Type: dnscodec.TypeA, TTL: 0, IP: net.ParseIP("192.0.2.1").To4()}

	now := time.Now()
	if !r.shouldSend(rec, now) || !r.shouldSend(rec, now) {
		t.Fatal("expected goodbye records to always be sendable")
	}
}

func waitForSend(t *testing.T, sender *fakeSender, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sender.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sends, got %d", want, sender.count())
}
