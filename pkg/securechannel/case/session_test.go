package casesession

import (
	"bytes"
	"testing"

	"github.com/quietridge/matter/pkg/crypto"
	"github.com/quietridge/matter/pkg/fabric"
)

// createTestFabricInfo creates a test fabric with generated keys.
func createTestFabricInfo(t *testing.T, index uint8, fabricID uint64, nodeID uint64) (*fabric.FabricInfo, *crypto.P256KeyPair) {
	t.Helper()

	operationalKey, err := crypto.P256GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate operational key: %v", err)
	}
	rootKey, err := crypto.P256GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate root key: %v", err)
	}

	var rootPubKey [65]byte
	copy(rootPubKey[:], rootKey.P256PublicKey())

	cfid, err := fabric.CompressedFabricIDFromCert(rootPubKey, fabric.FabricID(fabricID))
	if err != nil {
		t.Fatalf("failed to compute compressed fabric ID: %v", err)
	}

	// For testing, the NOC is just the operational public key rather than a real certificate.
	noc := operationalKey.P256PublicKey()

	var ipk [16]byte
	for i := range ipk {
		ipk[i] = byte(i + int(index))
	}

	info := &fabric.FabricInfo{
		FabricIndex:        fabric.FabricIndex(index),
		FabricID:           fabric.FabricID(fabricID),
		NodeID:             fabric.NodeID(nodeID),
		VendorID:           fabric.VendorIDTestVendor1,
		RootPublicKey:      rootPubKey,
		CompressedFabricID: cfid,
		IPK:                ipk,
		NOC:                noc,
	}

	return info, operationalKey
}

// sharedRootPair holds an initiator/responder fabric pair that shares a root
// CA and IPK, as CASE destination ID matching requires.
type sharedRootPair struct {
	fabricID                          uint64
	initiatorNodeID, responderNodeID  uint64
	initiatorFabric, responderFabric  *fabric.FabricInfo
	initiatorKey, responderKey        *crypto.P256KeyPair
}

func newSharedRootPair(t *testing.T) *sharedRootPair {
	t.Helper()

	fabricID := uint64(0x1234567890ABCDEF)
	initiatorNodeID := uint64(0x1111111111111111)
	responderNodeID := uint64(0x2222222222222222)

	initiatorFabric, initiatorKey := createTestFabricInfo(t, 1, fabricID, initiatorNodeID)
	responderFabric, responderKey := createTestFabricInfo(t, 1, fabricID, responderNodeID)

	responderFabric.RootPublicKey = initiatorFabric.RootPublicKey
	responderFabric.IPK = initiatorFabric.IPK
	cfid, _ := fabric.CompressedFabricIDFromCert(responderFabric.RootPublicKey, responderFabric.FabricID)
	responderFabric.CompressedFabricID = cfid

	return &sharedRootPair{
		fabricID:         fabricID,
		initiatorNodeID:  initiatorNodeID,
		responderNodeID:  responderNodeID,
		initiatorFabric:  initiatorFabric,
		responderFabric:  responderFabric,
		initiatorKey:     initiatorKey,
		responderKey:     responderKey,
	}
}

// fabricLookup returns a FabricLookup matching only p's responder fabric.
func (p *sharedRootPair) fabricLookup() func([DestinationIDSize]byte, [RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
	return func(destID [DestinationIDSize]byte, initiatorRandom [RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(p.responderFabric.IPK[:], p.responderFabric.CompressedFabricID[:])
		var ipk [crypto.SymmetricKeySize]byte
		copy(ipk[:], ipkSlice)
		if MatchDestinationID(destID, initiatorRandom, p.responderFabric.RootPublicKey, uint64(p.responderFabric.FabricID), uint64(p.responderFabric.NodeID), ipk) {
			return p.responderFabric, p.responderKey, nil
		}
		return nil, nil, ErrNoSharedRoot
	}
}

func (p *sharedRootPair) newInitiator() *Initiator {
	return NewInitiator(p.initiatorFabric, p.initiatorKey, p.responderNodeID)
}

func (p *sharedRootPair) newResponder(resumption ResumptionLookupFunc) *Responder {
	return NewResponder(p.fabricLookup(), resumption)
}

// runFullHandshake drives initiator and responder through Sigma1-3 plus the
// final status report and returns both sessions, complete.
func runFullHandshake(t *testing.T, initiator *Initiator, responder *Responder) {
	t.Helper()

	sigma1, err := initiator.Start(0x1000)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	sigma2, _, err := responder.HandleSigma1(sigma1, 0x2000)
	if err != nil {
		t.Fatalf("HandleSigma1() failed: %v", err)
	}
	sigma3, err := initiator.HandleSigma2(sigma2)
	if err != nil {
		t.Fatalf("HandleSigma2() failed: %v", err)
	}
	if err := responder.HandleSigma3(sigma3); err != nil {
		t.Fatalf("HandleSigma3() failed: %v", err)
	}
	if err := initiator.HandleStatusReport(true); err != nil {
		t.Fatalf("HandleStatusReport() failed: %v", err)
	}
}

// TestSession_FullHandshake tests a complete CASE handshake without resumption.
func TestSession_FullHandshake(t *testing.T) {
	pair := newSharedRootPair(t)

	initiator := pair.newInitiator()
	responder := pair.newResponder(nil)

	sigma1, err := initiator.Start(0x1000)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if initiator.State() != StateWaitingSigma2 {
		t.Errorf("expected state WaitingSigma2, got %s", initiator.State())
	}

	sigma2, isResumption, err := responder.HandleSigma1(sigma1, 0x2000)
	if err != nil {
		t.Fatalf("HandleSigma1() failed: %v", err)
	}
	if isResumption {
		t.Error("expected full handshake, not resumption")
	}
	if responder.State() != StateWaitingSigma3 {
		t.Errorf("expected state WaitingSigma3, got %s", responder.State())
	}

	sigma3, err := initiator.HandleSigma2(sigma2)
	if err != nil {
		t.Fatalf("HandleSigma2() failed: %v", err)
	}
	if initiator.State() != StateWaitingStatusReport {
		t.Errorf("expected state WaitingStatusReport, got %s", initiator.State())
	}

	if err := responder.HandleSigma3(sigma3); err != nil {
		t.Fatalf("HandleSigma3() failed: %v", err)
	}
	if responder.State() != StateComplete {
		t.Errorf("expected state Complete, got %s", responder.State())
	}

	if err := initiator.HandleStatusReport(true); err != nil {
		t.Fatalf("HandleStatusReport() failed: %v", err)
	}
	if initiator.State() != StateComplete {
		t.Errorf("expected state Complete, got %s", initiator.State())
	}

	initiatorKeys, err := initiator.SessionKeys()
	if err != nil {
		t.Fatalf("initiator.SessionKeys() failed: %v", err)
	}
	responderKeys, err := responder.SessionKeys()
	if err != nil {
		t.Fatalf("responder.SessionKeys() failed: %v", err)
	}

	if initiatorKeys.I2RKey != responderKeys.I2RKey {
		t.Error("I2RKey mismatch between initiator and responder")
	}
	if initiatorKeys.R2IKey != responderKeys.R2IKey {
		t.Error("R2IKey mismatch between initiator and responder")
	}
	if initiatorKeys.AttestationChallenge != responderKeys.AttestationChallenge {
		t.Error("AttestationChallenge mismatch")
	}

	if initiator.PeerSessionID() != responder.LocalSessionID() {
		t.Errorf("session ID mismatch: initiator peer=%d, responder local=%d",
			initiator.PeerSessionID(), responder.LocalSessionID())
	}
	if responder.PeerSessionID() != initiator.LocalSessionID() {
		t.Errorf("session ID mismatch: responder peer=%d, initiator local=%d",
			responder.PeerSessionID(), initiator.LocalSessionID())
	}

	if initiator.UsedResumption() || responder.UsedResumption() {
		t.Error("expected no resumption to be used")
	}
}

// TestSession_Resumption tests session resumption.
func TestSession_Resumption(t *testing.T) {
	pair := newSharedRootPair(t)

	// First complete a full handshake to obtain a shared secret and resumption ID.
	initiator1 := pair.newInitiator()
	responder1 := pair.newResponder(nil)
	runFullHandshake(t, initiator1, responder1)

	sharedSecret := initiator1.SharedSecret()
	resumptionID := initiator1.ResumptionID()

	var storedResumptionID [ResumptionIDSize]byte
	copy(storedResumptionID[:], resumptionID[:])
	storedSharedSecret := make([]byte, len(sharedSecret))
	copy(storedSharedSecret, sharedSecret)

	resumptionLookup := func(incomingID [ResumptionIDSize]byte) ([]byte, *fabric.FabricInfo, *crypto.P256KeyPair, bool) {
		if incomingID == storedResumptionID {
			return storedSharedSecret, pair.responderFabric, pair.responderKey, true
		}
		return nil, nil, nil, false
	}

	initiator2 := pair.newInitiator()
	initiator2.WithResumption(&ResumptionInfo{
		ResumptionID: storedResumptionID,
		SharedSecret: storedSharedSecret,
		PeerNodeID:   pair.responderNodeID,
	})
	responder2 := pair.newResponder(resumptionLookup)

	sigma1Resume, err := initiator2.Start(0x3000)
	if err != nil {
		t.Fatalf("Start() with resumption failed: %v", err)
	}
	if initiator2.State() != StateWaitingSigma2Resume {
		t.Errorf("expected state WaitingSigma2Resume, got %s", initiator2.State())
	}

	response, isResumption, err := responder2.HandleSigma1(sigma1Resume, 0x4000)
	if err != nil {
		t.Fatalf("HandleSigma1() with resumption failed: %v", err)
	}
	if !isResumption {
		t.Error("expected resumption to succeed")
	}
	if responder2.State() != StateComplete {
		t.Errorf("expected state Complete, got %s", responder2.State())
	}

	if err := initiator2.HandleSigma2Resume(response); err != nil {
		t.Fatalf("HandleSigma2Resume() failed: %v", err)
	}
	if initiator2.State() != StateComplete {
		t.Errorf("expected state Complete, got %s", initiator2.State())
	}

	if !initiator2.UsedResumption() || !responder2.UsedResumption() {
		t.Error("expected resumption to be used")
	}

	initiatorKeys, _ := initiator2.SessionKeys()
	responderKeys, _ := responder2.SessionKeys()
	if initiatorKeys.I2RKey != responderKeys.I2RKey {
		t.Error("I2RKey mismatch after resumption")
	}
}

// TestSession_ResumptionFallback tests fallback to full handshake when resumption fails.
func TestSession_ResumptionFallback(t *testing.T) {
	pair := newSharedRootPair(t)

	// Responder has NO resumption lookup - will always fall back.
	responder := pair.newResponder(nil)

	initiator := pair.newInitiator()
	initiator.WithResumption(&ResumptionInfo{
		ResumptionID: [16]byte{0xFF, 0xEE, 0xDD}, // Invalid
		SharedSecret: []byte{0x01, 0x02, 0x03},   // Invalid
		PeerNodeID:   pair.responderNodeID,
	})

	sigma1, err := initiator.Start(0x1000)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	sigma2, isResumption, err := responder.HandleSigma1(sigma1, 0x2000)
	if err != nil {
		t.Fatalf("HandleSigma1() failed: %v", err)
	}
	if isResumption {
		t.Error("expected fallback to full handshake")
	}

	sigma3, err := initiator.HandleSigma2(sigma2)
	if err != nil {
		t.Fatalf("HandleSigma2() failed: %v", err)
	}
	if err := responder.HandleSigma3(sigma3); err != nil {
		t.Fatalf("HandleSigma3() failed: %v", err)
	}
	if err := initiator.HandleStatusReport(true); err != nil {
		t.Fatalf("HandleStatusReport() failed: %v", err)
	}

	if initiator.State() != StateComplete || responder.State() != StateComplete {
		t.Error("expected both sessions to complete")
	}
}

// TestSession_InvalidState tests state machine validation.
func TestSession_InvalidState(t *testing.T) {
	fabricInfo, key := createTestFabricInfo(t, 1, 0x1234, 0x5678)

	t.Run("Start not initiator", func(t *testing.T) {
		responder := NewResponder(nil, nil)
		if _, err := responder.Start(100); err == nil {
			t.Error("expected error for Start() on responder")
		}
	})

	t.Run("HandleSigma1 not responder", func(t *testing.T) {
		initiator := NewInitiator(fabricInfo, key, 0x9999)
		if _, _, err := initiator.HandleSigma1([]byte{0x15}, 100); err == nil {
			t.Error("expected error for HandleSigma1() on initiator")
		}
	})

	t.Run("HandleSigma2 wrong state", func(t *testing.T) {
		initiator := NewInitiator(fabricInfo, key, 0x9999)
		// Don't call Start() first.
		if _, err := initiator.HandleSigma2([]byte{0x15}); err == nil {
			t.Error("expected error for HandleSigma2() in wrong state")
		}
	})

	t.Run("HandleSigma3 wrong state", func(t *testing.T) {
		responder := NewResponder(nil, nil)
		// Don't call HandleSigma1() first.
		if err := responder.HandleSigma3([]byte{0x15}); err == nil {
			t.Error("expected error for HandleSigma3() in wrong state")
		}
	})
}

// TestSession_MissingResumptionFields tests that a Sigma1 carrying a
// resumption ID with no MIC still round-trips through the encoder/decoder.
func TestSession_MissingResumptionFields(t *testing.T) {
	alwaysReject := func([DestinationIDSize]byte, [RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		return nil, nil, ErrNoSharedRoot
	}
	responder := NewResponder(alwaysReject, nil)

	sigma1 := &Sigma1{
		InitiatorRandom:    [32]byte{0x01},
		InitiatorSessionID: 100,
		DestinationID:      [32]byte{0x02},
		InitiatorEphPubKey: [65]byte{0x04},
		ResumptionID:       &[16]byte{0xAA}, // Has resumption ID, no MIC
	}
	data, _ := sigma1.Encode()

	decoded, err := DecodeSigma1(data)
	if err != nil {
		t.Fatalf("DecodeSigma1 failed: %v", err)
	}
	if decoded.ResumptionID == nil || decoded.InitiatorResumeMIC != nil {
		t.Fatal("expected decoded Sigma1 to carry a resumption ID without a MIC")
	}

	sigma1Full := &Sigma1{
		InitiatorRandom:    [32]byte{0x01},
		InitiatorSessionID: 100,
		DestinationID:      [32]byte{0x02},
		InitiatorEphPubKey: [65]byte{0x04},
		ResumptionID:       &[16]byte{0xAA},
		InitiatorResumeMIC: &[16]byte{0xBB},
	}
	dataFull, _ := sigma1Full.Encode()
	// Expected to fail at fabricLookup, not at resumption-field validation.
	if _, _, err := responder.HandleSigma1(dataFull, 200); err == nil {
		t.Log("HandleSigma1 with full resumption fields processed")
	}
}

// TestSession_NoSharedRoot tests error when destination ID doesn't match.
func TestSession_NoSharedRoot(t *testing.T) {
	fabricInfo, key := createTestFabricInfo(t, 1, 0x1234, 0x5678)

	alwaysReject := func([DestinationIDSize]byte, [RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		return nil, nil, ErrNoSharedRoot
	}

	initiator := NewInitiator(fabricInfo, key, 0x9999)
	responder := NewResponder(alwaysReject, nil)

	sigma1, err := initiator.Start(100)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if _, _, err := responder.HandleSigma1(sigma1, 200); err == nil {
		t.Error("expected ErrNoSharedRoot error")
	}
}

// TestSession_WithMRPParams tests MRP parameter exchange.
func TestSession_WithMRPParams(t *testing.T) {
	pair := newSharedRootPair(t)

	initiatorMRP := &MRPParameters{
		IdleRetransTimeout:   5000,
		ActiveRetransTimeout: 300,
	}
	responderMRP := &MRPParameters{
		IdleRetransTimeout: 3000,
		ActiveThreshold:    4000,
	}

	initiator := pair.newInitiator()
	initiator.WithMRPParams(initiatorMRP)
	responder := pair.newResponder(nil)
	responder.WithMRPParams(responderMRP)

	runFullHandshake(t, initiator, responder)

	initiatorPeerMRP := initiator.PeerMRPParams()
	if initiatorPeerMRP == nil {
		t.Error("initiator should have received peer MRP params")
	} else if initiatorPeerMRP.IdleRetransTimeout != responderMRP.IdleRetransTimeout {
		t.Errorf("IdleRetransTimeout mismatch: got %d, want %d",
			initiatorPeerMRP.IdleRetransTimeout, responderMRP.IdleRetransTimeout)
	}

	responderPeerMRP := responder.PeerMRPParams()
	if responderPeerMRP == nil {
		t.Error("responder should have received peer MRP params")
	} else if responderPeerMRP.IdleRetransTimeout != initiatorMRP.IdleRetransTimeout {
		t.Errorf("IdleRetransTimeout mismatch: got %d, want %d",
			responderPeerMRP.IdleRetransTimeout, initiatorMRP.IdleRetransTimeout)
	}
}

// TestSession_StatusReportFailure tests handling of failed status report.
func TestSession_StatusReportFailure(t *testing.T) {
	fabricInfo, key := createTestFabricInfo(t, 1, 0x1234, 0x5678)
	initiator := NewInitiator(fabricInfo, key, 0x9999)

	initiator.mu.Lock()
	initiator.state = StateWaitingStatusReport
	initiator.sharedSecret = bytes.Repeat([]byte{0x01}, 32)
	initiator.msg1Bytes = []byte{0x15}
	initiator.msg2Bytes = []byte{0x15}
	initiator.msg3Bytes = []byte{0x15}
	initiator.mu.Unlock()

	if err := initiator.HandleStatusReport(false); err != ErrInvalidStatusReport {
		t.Errorf("expected ErrInvalidStatusReport, got %v", err)
	}
	if initiator.State() != StateFailed {
		t.Errorf("expected state Failed, got %s", initiator.State())
	}
}

// TestSession_CertValidatorCallback tests that the certificate validation callback fires.
func TestSession_CertValidatorCallback(t *testing.T) {
	pair := newSharedRootPair(t)

	t.Run("initiator callback fires on Sigma2 with correct data", func(t *testing.T) {
		callbackCalled := false
		var receivedNOC, receivedICAC []byte
		var receivedTrustedRoot [65]byte

		certValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			callbackCalled = true
			receivedNOC = append([]byte(nil), noc...)
			if icac != nil {
				receivedICAC = append([]byte(nil), icac...)
			}
			receivedTrustedRoot = trustedRoot

			var pubKey [65]byte
			copy(pubKey[:], pair.responderKey.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.responderNodeID, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		initiator.WithCertValidator(certValidator)
		responder := pair.newResponder(nil)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)

		if _, err := initiator.HandleSigma2(sigma2); err != nil {
			t.Fatalf("HandleSigma2() failed: %v", err)
		}
		if !callbackCalled {
			t.Fatal("cert validator callback was not called during HandleSigma2")
		}

		if !bytes.Equal(receivedNOC, pair.responderFabric.NOC) {
			t.Errorf("callback received wrong NOC: got %d bytes, want %d bytes",
				len(receivedNOC), len(pair.responderFabric.NOC))
		}
		if pair.responderFabric.ICAC != nil {
			if !bytes.Equal(receivedICAC, pair.responderFabric.ICAC) {
				t.Errorf("callback received wrong ICAC: got %d bytes, want %d bytes",
					len(receivedICAC), len(pair.responderFabric.ICAC))
			}
		} else if receivedICAC != nil {
			t.Errorf("callback received ICAC when none expected: got %d bytes", len(receivedICAC))
		}
		if receivedTrustedRoot != pair.initiatorFabric.RootPublicKey {
			t.Error("callback received wrong trusted root public key")
		}
	})

	t.Run("responder callback fires on Sigma3 with correct data", func(t *testing.T) {
		callbackCalled := false
		var receivedNOC, receivedICAC []byte
		var receivedTrustedRoot [65]byte

		certValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			callbackCalled = true
			receivedNOC = append([]byte(nil), noc...)
			if icac != nil {
				receivedICAC = append([]byte(nil), icac...)
			}
			receivedTrustedRoot = trustedRoot

			var pubKey [65]byte
			copy(pubKey[:], pair.initiatorKey.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.initiatorNodeID, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		responder := pair.newResponder(nil)
		responder.WithCertValidator(certValidator)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)
		sigma3, _ := initiator.HandleSigma2(sigma2)

		if err := responder.HandleSigma3(sigma3); err != nil {
			t.Fatalf("HandleSigma3() failed: %v", err)
		}
		if !callbackCalled {
			t.Fatal("cert validator callback was not called during HandleSigma3")
		}

		if !bytes.Equal(receivedNOC, pair.initiatorFabric.NOC) {
			t.Errorf("callback received wrong NOC: got %d bytes, want %d bytes",
				len(receivedNOC), len(pair.initiatorFabric.NOC))
		}
		if pair.initiatorFabric.ICAC != nil {
			if !bytes.Equal(receivedICAC, pair.initiatorFabric.ICAC) {
				t.Errorf("callback received wrong ICAC: got %d bytes, want %d bytes",
					len(receivedICAC), len(pair.initiatorFabric.ICAC))
			}
		} else if receivedICAC != nil {
			t.Errorf("callback received ICAC when none expected: got %d bytes", len(receivedICAC))
		}
		if receivedTrustedRoot != pair.responderFabric.RootPublicKey {
			t.Error("callback received wrong trusted root public key")
		}
	})

	t.Run("callback receives ICAC when present", func(t *testing.T) {
		fabricWithICAC, keyWithICAC := createTestFabricInfo(t, 2, pair.fabricID, pair.responderNodeID)
		fabricWithICAC.ICAC = []byte{0xAA, 0xBB, 0xCC, 0xDD}
		fabricWithICAC.RootPublicKey = pair.initiatorFabric.RootPublicKey
		fabricWithICAC.IPK = pair.initiatorFabric.IPK
		cfid2, _ := fabric.CompressedFabricIDFromCert(fabricWithICAC.RootPublicKey, fabricWithICAC.FabricID)
		fabricWithICAC.CompressedFabricID = cfid2

		var receivedICAC []byte

		fabricLookupWithICAC := func(destID [DestinationIDSize]byte, initiatorRandom [RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
			ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(fabricWithICAC.IPK[:], fabricWithICAC.CompressedFabricID[:])
			var ipk [crypto.SymmetricKeySize]byte
			copy(ipk[:], ipkSlice)
			if MatchDestinationID(destID, initiatorRandom, fabricWithICAC.RootPublicKey, uint64(fabricWithICAC.FabricID), uint64(fabricWithICAC.NodeID), ipk) {
				return fabricWithICAC, keyWithICAC, nil
			}
			return nil, nil, ErrNoSharedRoot
		}

		certValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			if icac != nil {
				receivedICAC = append([]byte(nil), icac...)
			}
			var pubKey [65]byte
			copy(pubKey[:], keyWithICAC.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.responderNodeID, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		initiator.WithCertValidator(certValidator)
		responder := NewResponder(fabricLookupWithICAC, nil)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)

		if _, err := initiator.HandleSigma2(sigma2); err != nil {
			t.Fatalf("HandleSigma2() failed: %v", err)
		}
		if !bytes.Equal(receivedICAC, fabricWithICAC.ICAC) {
			t.Errorf("callback received wrong ICAC: got %x, want %x", receivedICAC, fabricWithICAC.ICAC)
		}
	})
}

// TestSession_CertValidatorFailure tests that validation failures are handled correctly.
func TestSession_CertValidatorFailure(t *testing.T) {
	pair := newSharedRootPair(t)

	t.Run("initiator rejects invalid certificate", func(t *testing.T) {
		certValidator := func([]byte, []byte, [65]byte) (*PeerCertInfo, error) {
			return nil, ErrInvalidCertificate
		}

		initiator := pair.newInitiator()
		initiator.WithCertValidator(certValidator)
		responder := pair.newResponder(nil)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)

		if _, err := initiator.HandleSigma2(sigma2); err == nil {
			t.Error("expected error for invalid certificate")
		}
	})

	t.Run("initiator rejects wrong node ID", func(t *testing.T) {
		certValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			var pubKey [65]byte
			copy(pubKey[:], pair.responderKey.P256PublicKey())
			return &PeerCertInfo{NodeID: 0xDEADBEEF, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		initiator.WithCertValidator(certValidator)
		responder := pair.newResponder(nil)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)

		if _, err := initiator.HandleSigma2(sigma2); err == nil {
			t.Error("expected error for wrong node ID")
		}
	})

	t.Run("responder rejects invalid certificate", func(t *testing.T) {
		certValidator := func([]byte, []byte, [65]byte) (*PeerCertInfo, error) {
			return nil, ErrInvalidCertificate
		}

		initiator := pair.newInitiator()
		responder := pair.newResponder(nil)
		responder.WithCertValidator(certValidator)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)
		sigma3, _ := initiator.HandleSigma2(sigma2)

		if err := responder.HandleSigma3(sigma3); err == nil {
			t.Error("expected error for invalid certificate")
		}
	})

	t.Run("responder rejects wrong fabric ID", func(t *testing.T) {
		certValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			var pubKey [65]byte
			copy(pubKey[:], pair.initiatorKey.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.initiatorNodeID, FabricID: 0xBADBADBAD, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		responder := pair.newResponder(nil)
		responder.WithCertValidator(certValidator)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)
		sigma3, _ := initiator.HandleSigma2(sigma2)

		if err := responder.HandleSigma3(sigma3); err == nil {
			t.Error("expected error for wrong fabric ID")
		}
	})
}

// TestSession_SignatureVerification tests signature verification through the callback.
func TestSession_SignatureVerification(t *testing.T) {
	pair := newSharedRootPair(t)

	t.Run("initiator rejects invalid signature (wrong public key)", func(t *testing.T) {
		wrongKey, _ := crypto.P256GenerateKeyPair()

		certValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			var pubKey [65]byte
			copy(pubKey[:], wrongKey.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.responderNodeID, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		initiator.WithCertValidator(certValidator)
		responder := pair.newResponder(nil)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)

		if _, err := initiator.HandleSigma2(sigma2); err == nil {
			t.Error("expected signature verification error")
		}
	})

	t.Run("responder rejects invalid signature (wrong public key)", func(t *testing.T) {
		wrongKey, _ := crypto.P256GenerateKeyPair()

		certValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			var pubKey [65]byte
			copy(pubKey[:], wrongKey.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.initiatorNodeID, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		responder := pair.newResponder(nil)
		responder.WithCertValidator(certValidator)

		sigma1, _ := initiator.Start(0x1000)
		sigma2, _, _ := responder.HandleSigma1(sigma1, 0x2000)
		sigma3, _ := initiator.HandleSigma2(sigma2)

		if err := responder.HandleSigma3(sigma3); err == nil {
			t.Error("expected signature verification error")
		}
	})

	t.Run("full handshake succeeds with correct validation", func(t *testing.T) {
		initiatorValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			var pubKey [65]byte
			copy(pubKey[:], pair.responderKey.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.responderNodeID, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}
		responderValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*PeerCertInfo, error) {
			var pubKey [65]byte
			copy(pubKey[:], pair.initiatorKey.P256PublicKey())
			return &PeerCertInfo{NodeID: pair.initiatorNodeID, FabricID: pair.fabricID, PublicKey: pubKey}, nil
		}

		initiator := pair.newInitiator()
		initiator.WithCertValidator(initiatorValidator)
		responder := pair.newResponder(nil)
		responder.WithCertValidator(responderValidator)

		sigma1, err := initiator.Start(0x1000)
		if err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
		sigma2, isResumption, err := responder.HandleSigma1(sigma1, 0x2000)
		if err != nil {
			t.Fatalf("HandleSigma1() failed: %v", err)
		}
		if isResumption {
			t.Error("expected full handshake")
		}
		sigma3, err := initiator.HandleSigma2(sigma2)
		if err != nil {
			t.Fatalf("HandleSigma2() failed: %v", err)
		}
		if err := responder.HandleSigma3(sigma3); err != nil {
			t.Fatalf("HandleSigma3() failed: %v", err)
		}
		if err := initiator.HandleStatusReport(true); err != nil {
			t.Fatalf("HandleStatusReport() failed: %v", err)
		}

		if initiator.State() != StateComplete {
			t.Errorf("initiator expected Complete, got %s", initiator.State())
		}
		if responder.State() != StateComplete {
			t.Errorf("responder expected Complete, got %s", responder.State())
		}

		initiatorKeys, _ := initiator.SessionKeys()
		responderKeys, _ := responder.SessionKeys()
		if initiatorKeys.I2RKey != responderKeys.I2RKey {
			t.Error("I2RKey mismatch")
		}
		if initiatorKeys.R2IKey != responderKeys.R2IKey {
			t.Error("R2IKey mismatch")
		}
	})
}
