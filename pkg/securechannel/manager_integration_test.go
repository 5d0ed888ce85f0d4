package securechannel

import (
	"bytes"
	"testing"

	"github.com/quietridge/matter/pkg/crypto"
	"github.com/quietridge/matter/pkg/fabric"
	"github.com/quietridge/matter/pkg/message"
	casesession "github.com/quietridge/matter/pkg/securechannel/case"
	"github.com/quietridge/matter/pkg/session"
)

// TestManager_CASEHandshake_ManagerToManager tests a full CASE handshake
// with two Manager instances communicating via message passing.
func TestManager_CASEHandshake_ManagerToManager(t *testing.T) {
	// Create test fabric info
	fabricID := uint64(0x1234567890ABCDEF)
	initiatorNodeID := uint64(0x1111111111111111)
	responderNodeID := uint64(0x2222222222222222)

	initiatorFabric, initiatorKey := createTestFabricInfo(t, 1, fabricID, initiatorNodeID)
	responderFabric, responderKey := createTestFabricInfo(t, 1, fabricID, responderNodeID)

	// Share root and IPK
	responderFabric.RootPublicKey = initiatorFabric.RootPublicKey
	responderFabric.IPK = initiatorFabric.IPK
	cfid, _ := fabric.CompressedFabricIDFromCert(responderFabric.RootPublicKey, responderFabric.FabricID)
	responderFabric.CompressedFabricID = cfid

	// Setup session managers
	initiatorSessionMgr := session.NewManager(session.ManagerConfig{})
	responderSessionMgr := session.NewManager(session.ManagerConfig{})

	// Track callbacks
	var initiatorSession *session.SecureContext

	// Create cert validators that return correct keys
	initiatorCertValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*casesession.PeerCertInfo, error) {
		var pubKey [65]byte
		copy(pubKey[:], responderKey.P256PublicKey())
		return &casesession.PeerCertInfo{
			NodeID:    responderNodeID,
			FabricID:  fabricID,
			PublicKey: pubKey,
		}, nil
	}

	responderCertValidator := func(noc []byte, icac []byte, trustedRoot [65]byte) (*casesession.PeerCertInfo, error) {
		var pubKey [65]byte
		copy(pubKey[:], initiatorKey.P256PublicKey())
		return &casesession.PeerCertInfo{
			NodeID:    initiatorNodeID,
			FabricID:  fabricID,
			PublicKey: pubKey,
		}, nil
	}

	initiatorMgr := NewManager(ManagerConfig{
		SessionManager: initiatorSessionMgr,
		CertValidator:  initiatorCertValidator,
		LocalNodeID:    fabric.NodeID(initiatorNodeID),
		Callbacks: Callbacks{
			OnSessionEstablished: func(ctx *session.SecureContext) {
				initiatorSession = ctx
			},
		},
	})

	// Create fabric lookup for responder
	fabricLookup := func(destID [casesession.DestinationIDSize]byte, initiatorRandom [casesession.RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(responderFabric.IPK[:], responderFabric.CompressedFabricID[:])
		var ipk [crypto.SymmetricKeySize]byte
		copy(ipk[:], ipkSlice)
		if casesession.MatchDestinationID(destID, initiatorRandom, responderFabric.RootPublicKey, uint64(responderFabric.FabricID), uint64(responderFabric.NodeID), ipk) {
			return responderFabric, responderKey, nil
		}
		return nil, nil, casesession.ErrNoSharedRoot
	}

	// Create responder CASE session
	responderCASE := casesession.NewResponder(fabricLookup, nil)
	responderCASE.WithCertValidator(responderCertValidator)

	// Note: responderMgr not used directly - we use CASE session for responder simulation
	_ = responderSessionMgr

	const exchangeID = uint16(54321)

	// Step 1: Initiator starts CASE
	sigma1, err := initiatorMgr.StartCASE(exchangeID, initiatorFabric, initiatorKey, responderNodeID, nil)
	if err != nil {
		t.Fatalf("StartCASE failed: %v", err)
	}

	// Verify initiator has active CASE handshake
	ht, ok := initiatorMgr.GetHandshakeType(exchangeID)
	if !ok || ht != HandshakeTypeCASE {
		t.Error("expected CASE handshake type on initiator")
	}

	// Step 2: Responder handles Sigma1
	responderLocalSessionID, _ := responderSessionMgr.AllocateSessionID()
	sigma2, isResumption, err := responderCASE.HandleSigma1(sigma1, responderLocalSessionID)
	if err != nil {
		t.Fatalf("HandleSigma1 failed: %v", err)
	}
	if isResumption {
		t.Error("expected full handshake, not resumption")
	}

	// Step 3: Initiator handles Sigma2 via Manager.Route
	sigma3, err := initiatorMgr.Route(exchangeID, OpcodeCASESigma2, sigma2)
	if err != nil {
		t.Fatalf("Route Sigma2 failed: %v", err)
	}

	// Step 4: Responder handles Sigma3
	err = responderCASE.HandleSigma3(sigma3)
	if err != nil {
		t.Fatalf("HandleSigma3 failed: %v", err)
	}

	// Step 5: Send success status to initiator
	successStatus := Success().Encode()
	_, err = initiatorMgr.Route(exchangeID, OpcodeStatusReport, successStatus)
	if err != nil {
		t.Fatalf("Route StatusReport failed: %v", err)
	}

	// Verify initiator session was established
	if initiatorSession == nil {
		t.Error("initiator session callback not called")
	} else {
		if initiatorSession.SessionType() != session.SessionTypeCASE {
			t.Errorf("expected CASE session, got %v", initiatorSession.SessionType())
		}
		if initiatorSession.PeerNodeID() != fabric.NodeID(responderNodeID) {
			t.Errorf("wrong peer node ID: got %d, want %d", initiatorSession.PeerNodeID(), responderNodeID)
		}
	}

	// Verify responder's keys match initiator's
	responderKeys, _ := responderCASE.SessionKeys()
	if responderKeys == nil {
		t.Error("responder keys should be available")
	}

	// Verify handshake cleaned up
	if initiatorMgr.HasActiveHandshake(exchangeID) {
		t.Error("handshake should be cleaned up after completion")
	}

	t.Log("CASE handshake completed successfully")
}

// TestManager_BusyResponse tests that Busy status is properly handled.
func TestManager_BusyResponse(t *testing.T) {
	sessionMgr := session.NewManager(session.ManagerConfig{})

	var busyCalled bool
	var busyWaitTime uint16

	fabricID := uint64(0xAAAAAAAAAAAAAAAA)
	initiatorNodeID := uint64(0xBBBBBBBBBBBBBBBB)
	responderNodeID := uint64(0xCCCCCCCCCCCCCCCC)
	initiatorFabric, initiatorKey := createTestFabricInfo(t, 1, fabricID, initiatorNodeID)

	mgr := NewManager(ManagerConfig{
		SessionManager: sessionMgr,
		LocalNodeID:    fabric.NodeID(initiatorNodeID),
		Callbacks: Callbacks{
			OnResponderBusy: func(waitTimeMs uint16) {
				busyCalled = true
				busyWaitTime = waitTimeMs
			},
		},
	})

	// Start a CASE handshake
	exchangeID := uint16(1)
	_, err := mgr.StartCASE(exchangeID, initiatorFabric, initiatorKey, responderNodeID, nil)
	if err != nil {
		t.Fatalf("StartCASE failed: %v", err)
	}

	// Responder sends Busy
	busyStatus := Busy(5000)
	_, err = mgr.Route(exchangeID, OpcodeStatusReport, busyStatus.Encode())
	if err != nil {
		t.Fatalf("Route Busy failed: %v", err)
	}

	if !busyCalled {
		t.Error("OnResponderBusy callback should have been called")
	}
	if busyWaitTime != 5000 {
		t.Errorf("busyWaitTime = %d, want 5000", busyWaitTime)
	}

	// Handshake should be cleaned up
	if mgr.HasActiveHandshake(exchangeID) {
		t.Error("handshake should be cleaned up after Busy response")
	}
}

// TestManager_SessionKeyVerification verifies that derived keys actually work
// for encryption/decryption by using the SecureContext.
func TestManager_SessionKeyVerification(t *testing.T) {
	fabricID := uint64(0x1234567890ABCDEF)
	initiatorNodeID := uint64(0x1111111111111111)
	responderNodeID := uint64(0x2222222222222222)

	initiatorFabric, initiatorKey := createTestFabricInfo(t, 1, fabricID, initiatorNodeID)
	responderFabric, responderKey := createTestFabricInfo(t, 1, fabricID, responderNodeID)
	responderFabric.RootPublicKey = initiatorFabric.RootPublicKey
	responderFabric.IPK = initiatorFabric.IPK
	cfid, _ := fabric.CompressedFabricIDFromCert(responderFabric.RootPublicKey, responderFabric.FabricID)
	responderFabric.CompressedFabricID = cfid

	fabricLookup := func(destID [casesession.DestinationIDSize]byte, initiatorRandom [casesession.RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(responderFabric.IPK[:], responderFabric.CompressedFabricID[:])
		var ipk [crypto.SymmetricKeySize]byte
		copy(ipk[:], ipkSlice)
		if casesession.MatchDestinationID(destID, initiatorRandom, responderFabric.RootPublicKey, uint64(responderFabric.FabricID), uint64(responderFabric.NodeID), ipk) {
			return responderFabric, responderKey, nil
		}
		return nil, nil, casesession.ErrNoSharedRoot
	}

	initiator := casesession.NewInitiator(initiatorFabric, initiatorKey, responderNodeID)
	responder := casesession.NewResponder(fabricLookup, nil)

	// Complete handshake
	sigma1, err := initiator.Start(1000)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sigma2, _, err := responder.HandleSigma1(sigma1, 2000)
	if err != nil {
		t.Fatalf("HandleSigma1 failed: %v", err)
	}
	sigma3, err := initiator.HandleSigma2(sigma2)
	if err != nil {
		t.Fatalf("HandleSigma2 failed: %v", err)
	}
	if err := responder.HandleSigma3(sigma3); err != nil {
		t.Fatalf("HandleSigma3 failed: %v", err)
	}

	initiatorKeys, err := initiator.SessionKeys()
	if err != nil {
		t.Fatalf("initiator.SessionKeys failed: %v", err)
	}
	responderKeys, err := responder.SessionKeys()
	if err != nil {
		t.Fatalf("responder.SessionKeys failed: %v", err)
	}

	// Create secure contexts for both sides
	initiatorCtx, err := session.NewSecureContext(session.SecureContextConfig{
		SessionType:    session.SessionTypeCASE,
		Role:           session.SessionRoleInitiator,
		LocalSessionID: 1000,
		PeerSessionID:  2000,
		I2RKey:         initiatorKeys.I2RKey[:],
		R2IKey:         initiatorKeys.R2IKey[:],
	})
	if err != nil {
		t.Fatalf("failed to create initiator context: %v", err)
	}

	responderCtx, err := session.NewSecureContext(session.SecureContextConfig{
		SessionType:    session.SessionTypeCASE,
		Role:           session.SessionRoleResponder,
		LocalSessionID: 2000,
		PeerSessionID:  1000,
		I2RKey:         responderKeys.I2RKey[:],
		R2IKey:         responderKeys.R2IKey[:],
	})
	if err != nil {
		t.Fatalf("failed to create responder context: %v", err)
	}

	if !bytes.Equal(initiatorKeys.I2RKey[:], responderKeys.I2RKey[:]) {
		t.Error("I2R keys don't match")
	}
	if !bytes.Equal(initiatorKeys.R2IKey[:], responderKeys.R2IKey[:]) {
		t.Error("R2I keys don't match")
	}
	if !bytes.Equal(initiatorKeys.AttestationChallenge[:], responderKeys.AttestationChallenge[:]) {
		t.Error("Attestation challenges don't match")
	}

	_ = initiatorCtx
	_ = responderCtx

	t.Log("Session keys verified - both sides have matching cryptographic keys")
}

// TestManager_ConcurrentHandshakes tests that multiple handshakes can run concurrently.
func TestManager_ConcurrentHandshakes(t *testing.T) {
	sessionMgr := session.NewManager(session.ManagerConfig{MaxSessions: 100})

	completedCount := 0
	fabricID := uint64(0x1234567890ABCDEF)
	localNodeID := uint64(0x1111111111111111)
	fabricInfo, opKey := createTestFabricInfo(t, 1, fabricID, localNodeID)

	mgr := NewManager(ManagerConfig{
		SessionManager: sessionMgr,
		LocalNodeID:    fabric.NodeID(localNodeID),
		Callbacks: Callbacks{
			OnSessionEstablished: func(ctx *session.SecureContext) {
				completedCount++
			},
		},
	})

	// Start multiple CASE handshakes, each to a distinct peer node.
	for i := uint16(1); i <= 5; i++ {
		_, err := mgr.StartCASE(i, fabricInfo, opKey, localNodeID+uint64(i), nil)
		if err != nil {
			t.Fatalf("StartCASE %d failed: %v", i, err)
		}
	}

	// Verify all are tracked
	if mgr.ActiveHandshakeCount() != 5 {
		t.Errorf("ActiveHandshakeCount = %d, want 5", mgr.ActiveHandshakeCount())
	}

	// Verify each has correct type
	for i := uint16(1); i <= 5; i++ {
		ht, ok := mgr.GetHandshakeType(i)
		if !ok {
			t.Errorf("exchange %d should have active handshake", i)
		}
		if ht != HandshakeTypeCASE {
			t.Errorf("exchange %d should be CASE, got %v", i, ht)
		}
	}
}

// TestManager_EncryptedMessageRoundTrip verifies that session keys can be used
// to encrypt and decrypt actual Matter messages between both sides.
// This goes beyond just comparing keys - it exercises the full message codec.
func TestManager_EncryptedMessageRoundTrip(t *testing.T) {
	fabricID := uint64(0x1234567890ABCDEF)
	initiatorNodeID := uint64(0x1111111111111111)
	responderNodeID := uint64(0x2222222222222222)

	initiatorFabric, initiatorKey := createTestFabricInfo(t, 1, fabricID, initiatorNodeID)
	responderFabric, responderKey := createTestFabricInfo(t, 1, fabricID, responderNodeID)
	responderFabric.RootPublicKey = initiatorFabric.RootPublicKey
	responderFabric.IPK = initiatorFabric.IPK
	cfid, _ := fabric.CompressedFabricIDFromCert(responderFabric.RootPublicKey, responderFabric.FabricID)
	responderFabric.CompressedFabricID = cfid

	fabricLookup := func(destID [casesession.DestinationIDSize]byte, initiatorRandom [casesession.RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(responderFabric.IPK[:], responderFabric.CompressedFabricID[:])
		var ipk [crypto.SymmetricKeySize]byte
		copy(ipk[:], ipkSlice)
		if casesession.MatchDestinationID(destID, initiatorRandom, responderFabric.RootPublicKey, uint64(responderFabric.FabricID), uint64(responderFabric.NodeID), ipk) {
			return responderFabric, responderKey, nil
		}
		return nil, nil, casesession.ErrNoSharedRoot
	}

	initiator := casesession.NewInitiator(initiatorFabric, initiatorKey, responderNodeID)
	responder := casesession.NewResponder(fabricLookup, nil)

	sigma1, err := initiator.Start(1000)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sigma2, _, err := responder.HandleSigma1(sigma1, 2000)
	if err != nil {
		t.Fatalf("HandleSigma1 failed: %v", err)
	}
	sigma3, err := initiator.HandleSigma2(sigma2)
	if err != nil {
		t.Fatalf("HandleSigma2 failed: %v", err)
	}
	if err := responder.HandleSigma3(sigma3); err != nil {
		t.Fatalf("HandleSigma3 failed: %v", err)
	}

	initiatorKeys, err := initiator.SessionKeys()
	if err != nil {
		t.Fatalf("initiator.SessionKeys failed: %v", err)
	}
	responderKeys, err := responder.SessionKeys()
	if err != nil {
		t.Fatalf("responder.SessionKeys failed: %v", err)
	}

	// Create codecs for both sides
	initiatorCodec, err := message.NewCodec(initiatorKeys.I2RKey[:], 0)
	if err != nil {
		t.Fatalf("failed to create initiator codec: %v", err)
	}
	responderCodec, err := message.NewCodec(responderKeys.R2IKey[:], 0)
	if err != nil {
		t.Fatalf("failed to create responder codec: %v", err)
	}

	// Test 1: Initiator sends to Responder (uses I2R key)
	t.Run("initiator_to_responder", func(t *testing.T) {
		header := &message.MessageHeader{
			SessionID:      2000, // Responder's local session ID
			MessageCounter: 1,
			SourceNodeID:   0,
		}

		protocol := &message.ProtocolHeader{
			ExchangeID:     100,
			ProtocolID:     0x0001, // Interaction Model
			ProtocolOpcode: 0x02,   // Read Request
			Initiator:      true,
		}

		payload := []byte("Test payload from initiator to responder")

		encrypted, err := initiatorCodec.Encode(header, protocol, payload, false)
		if err != nil {
			t.Fatalf("initiator encode failed: %v", err)
		}

		responderI2RCodec, _ := message.NewCodec(responderKeys.I2RKey[:], 0)
		decrypted, err := responderI2RCodec.Decode(encrypted, 0)
		if err != nil {
			t.Fatalf("responder decode failed: %v", err)
		}

		if !bytes.Equal(decrypted.Payload, payload) {
			t.Errorf("payload mismatch: got %q, want %q", decrypted.Payload, payload)
		}
		if decrypted.Protocol.ExchangeID != 100 {
			t.Errorf("exchange ID mismatch: got %d, want 100", decrypted.Protocol.ExchangeID)
		}
		if decrypted.Protocol.ProtocolID != 0x0001 {
			t.Errorf("protocol ID mismatch: got %d, want 1", decrypted.Protocol.ProtocolID)
		}

		t.Log("Initiator->Responder encryption/decryption successful")
	})

	// Test 2: Responder sends to Initiator (uses R2I key)
	t.Run("responder_to_initiator", func(t *testing.T) {
		header := &message.MessageHeader{
			SessionID:      1000, // Initiator's local session ID
			MessageCounter: 1,
			SourceNodeID:   0,
		}

		protocol := &message.ProtocolHeader{
			ExchangeID:     100,
			ProtocolID:     0x0001, // Interaction Model
			ProtocolOpcode: 0x05,   // Report Data
		}

		payload := []byte("Test payload from responder to initiator - this is the response data")

		encrypted, err := responderCodec.Encode(header, protocol, payload, false)
		if err != nil {
			t.Fatalf("responder encode failed: %v", err)
		}

		initiatorR2ICodec, _ := message.NewCodec(initiatorKeys.R2IKey[:], 0)
		decrypted, err := initiatorR2ICodec.Decode(encrypted, 0)
		if err != nil {
			t.Fatalf("initiator decode failed: %v", err)
		}

		if !bytes.Equal(decrypted.Payload, payload) {
			t.Errorf("payload mismatch: got %q, want %q", decrypted.Payload, payload)
		}

		t.Log("Responder->Initiator encryption/decryption successful")
	})

	// Test 3: Verify wrong key fails decryption
	t.Run("wrong_key_fails", func(t *testing.T) {
		header := &message.MessageHeader{
			SessionID:      2000,
			MessageCounter: 2,
			SourceNodeID:   0,
		}
		protocol := &message.ProtocolHeader{
			ExchangeID:     101,
			ProtocolID:     0x0001,
			ProtocolOpcode: 0x02,
		}
		payload := []byte("Secret message")

		encrypted, err := initiatorCodec.Encode(header, protocol, payload, false)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		_, err = responderCodec.Decode(encrypted, 0)
		if err == nil {
			t.Error("expected decryption to fail with wrong key, but it succeeded")
		}

		t.Log("Wrong key correctly rejected")
	})

	// Test 4: Privacy obfuscation round-trip
	t.Run("privacy_obfuscation", func(t *testing.T) {
		header := &message.MessageHeader{
			SessionID:      2000,
			MessageCounter: 3,
			SourceNodeID:   0,
		}
		protocol := &message.ProtocolHeader{
			ExchangeID:     102,
			ProtocolID:     0x0001,
			ProtocolOpcode: 0x02,
		}
		payload := []byte("Private message with obfuscated header")

		encrypted, err := initiatorCodec.Encode(header, protocol, payload, true)
		if err != nil {
			t.Fatalf("encode with privacy failed: %v", err)
		}

		responderI2RCodec, _ := message.NewCodec(responderKeys.I2RKey[:], 0)
		decrypted, err := responderI2RCodec.Decode(encrypted, 0)
		if err != nil {
			t.Fatalf("decode with privacy failed: %v", err)
		}

		if !bytes.Equal(decrypted.Payload, payload) {
			t.Errorf("payload mismatch with privacy: got %q, want %q", decrypted.Payload, payload)
		}

		t.Log("Privacy obfuscation round-trip successful")
	})
}

// createTestFabricInfo creates a test fabric with generated keys.
// (Duplicated from case/session_test.go for this test file)
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
