package casesession

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/pion/logging"

	"github.com/quietridge/matter/pkg/crypto"
	"github.com/quietridge/matter/pkg/fabric"
)

// FabricLookupFunc finds a fabric matching the destination ID.
// Used by responder to identify which fabric the initiator is targeting.
//
// Parameters:
//   - destinationID: 32-byte destination identifier from Sigma1
//   - initiatorRandom: 32-byte random from Sigma1 (needed to compute candidate IDs)
//
// Returns the matching FabricInfo and operational key pair, or error if not found.
type FabricLookupFunc func(
	destinationID [DestinationIDSize]byte,
	initiatorRandom [RandomSize]byte,
) (*fabric.FabricInfo, *crypto.P256KeyPair, error)

// ResumptionLookupFunc finds a previous session for resumption.
// Used by responder to look up shared secret and validate resumption.
//
// Parameters:
//   - resumptionID: 16-byte resumption ID from Sigma1
//
// Returns the previous session's shared secret and fabric info, or nil if not found.
type ResumptionLookupFunc func(
	resumptionID [ResumptionIDSize]byte,
) (sharedSecret []byte, fabricInfo *fabric.FabricInfo, operationalKey *crypto.P256KeyPair, ok bool)

// Session drives one side of a CASE handshake to completion. The initiator
// and responder paths are implemented on the same type since both sides
// share almost all of their state (ephemeral keys, transcript bytes,
// derived secrets) — only initiator.go and responder.go differ per role.
//
// Initiator flow: NewInitiator -> Start -> HandleSigma2/HandleSigma2Resume
// -> HandleStatusReport -> SessionKeys.
//
// Responder flow: NewResponder -> HandleSigma1 -> [HandleSigma3] ->
// SessionKeys.
type Session struct {
	role  Role
	state State

	// Our identity for this handshake.
	fabricInfo     *fabric.FabricInfo
	operationalKey *crypto.P256KeyPair
	targetNodeID   uint64 // initiator only: who we're dialing

	// Responder-only: how to resolve an incoming Sigma1 to a fabric/session.
	fabricLookup     FabricLookupFunc
	resumptionLookup ResumptionLookupFunc

	// certValidator verifies a peer's NOC/ICAC chain and recovers its node
	// ID and public key. Skipped (test-only) when nil.
	certValidator ValidatePeerCertChainFunc

	localSessionID uint16
	peerSessionID  uint16

	localRandom [RandomSize]byte
	peerRandom  [RandomSize]byte

	ephKeyPair    *crypto.P256KeyPair
	peerEphPubKey [crypto.P256PublicKeySizeBytes]byte

	sharedSecret []byte
	ipk          [crypto.SymmetricKeySize]byte

	resumptionInfo  *ResumptionInfo     // initiator input: what we're trying to resume
	newResumptionID [ResumptionIDSize]byte // output: ID for a future resumption

	// Raw wire bytes, kept for transcript-hash derivation (S2K/S3K/session keys).
	msg1Bytes, msg2Bytes, msg3Bytes []byte

	sessionKeys    *SessionKeys
	usedResumption bool

	peerNOC, peerICAC []byte
	peerNodeID        uint64

	localMRPParams, peerMRPParams *MRPParameters

	rand io.Reader // injectable for deterministic tests
	log  logging.LeveledLogger

	mu sync.Mutex
}

// NewInitiator creates a CASE session as initiator.
//
// Parameters:
//   - fabricInfo: Our fabric credentials (NOC chain, IPK, etc.)
//   - operationalKey: Our NOC private key for signing
//   - targetNodeID: The peer node ID we want to connect to
func NewInitiator(
	fabricInfo *fabric.FabricInfo,
	operationalKey *crypto.P256KeyPair,
	targetNodeID uint64,
) *Session {
	return &Session{
		role:           RoleInitiator,
		state:          StateInit,
		fabricInfo:     fabricInfo,
		operationalKey: operationalKey,
		targetNodeID:   targetNodeID,
		ipk:            deriveIPK(fabricInfo),
		rand:           rand.Reader,
		log:            logging.NewDefaultLoggerFactory().NewLogger("case"),
	}
}

// NewResponder creates a CASE session as responder.
//
// Parameters:
//   - fabricLookup: Function to find fabric by destination ID
//   - resumptionLookup: Function to find previous session for resumption (optional)
func NewResponder(
	fabricLookup FabricLookupFunc,
	resumptionLookup ResumptionLookupFunc,
) *Session {
	return &Session{
		role:             RoleResponder,
		state:            StateInit,
		fabricLookup:     fabricLookup,
		resumptionLookup: resumptionLookup,
		rand:             rand.Reader,
		log:              logging.NewDefaultLoggerFactory().NewLogger("case"),
	}
}

// deriveIPK computes the operational group key a fabric's members share,
// from its epoch key and compressed fabric ID. Shared by the initiator
// constructor and by the responder once it has resolved a fabric, so it
// lives here rather than duplicated in both role files.
func deriveIPK(info *fabric.FabricInfo) [crypto.SymmetricKeySize]byte {
	var ipk [crypto.SymmetricKeySize]byte
	ipkSlice, _ := crypto.DeriveGroupOperationalKeyV1(info.IPK[:], info.CompressedFabricID[:])
	copy(ipk[:], ipkSlice)
	return ipk
}

// WithLogger overrides the session's logger. Optional; defaults to a
// pion/logging default logger under the "case" scope.
func (s *Session) WithLogger(log logging.LeveledLogger) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
	return s
}

// WithResumption adds resumption info for attempting session resumption.
// Only valid for initiator.
func (s *Session) WithResumption(info *ResumptionInfo) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumptionInfo = info
	return s
}

// WithMRPParams sets local MRP parameters to advertise.
func (s *Session) WithMRPParams(params *MRPParameters) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localMRPParams = params
	return s
}

// WithCertValidator sets the certificate validation callback.
// This callback is called during handshake to validate the peer's certificate chain
// and extract the peer's node ID and public key for signature verification.
//
// If not set, certificate validation and signature verification are skipped.
// This is suitable for testing but MUST be set in production deployments.
func (s *Session) WithCertValidator(validator ValidatePeerCertChainFunc) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certValidator = validator
	return s
}

// advanceTo moves the session into newState and logs the transition at the
// level the caller picked. Callers hold s.mu already.
func (s *Session) advanceTo(newState State, level func(format string, args ...interface{}), format string, args ...interface{}) {
	s.state = newState
	level(format, args...)
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Role returns whether this session is acting as initiator or responder.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// PeerNodeID returns the peer's operational node ID, once known.
func (s *Session) PeerNodeID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerNodeID
}

// LocalSessionID returns our session ID.
func (s *Session) LocalSessionID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localSessionID
}

// PeerSessionID returns the peer's session ID.
func (s *Session) PeerSessionID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerSessionID
}

// UsedResumption returns whether session resumption was used.
func (s *Session) UsedResumption() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usedResumption
}

// ResumptionID returns the new resumption ID for future session resumption.
func (s *Session) ResumptionID() [ResumptionIDSize]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newResumptionID
}

// SharedSecret returns the ECDH shared secret (for resumption storage).
func (s *Session) SharedSecret() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret := make([]byte, len(s.sharedSecret))
	copy(secret, s.sharedSecret)
	return secret
}

// PeerMRPParams returns the peer's MRP parameters (if provided).
func (s *Session) PeerMRPParams() *MRPParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerMRPParams
}

// SessionKeys returns the derived session keys.
// Only valid after the session is complete.
func (s *Session) SessionKeys() (*SessionKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateComplete {
		return nil, ErrSessionNotReady
	}
	return s.sessionKeys, nil
}
