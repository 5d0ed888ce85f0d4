package casesession

// Role represents the CASE participant role.
type Role int

const (
	// RoleInitiator is the node initiating the CASE handshake.
	RoleInitiator Role = iota
	// RoleResponder is the node responding to the CASE handshake.
	RoleResponder
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "Initiator"
	case RoleResponder:
		return "Responder"
	default:
		return "Unknown"
	}
}

// State represents the CASE protocol state machine.
type State int

const (
	// StateInit is the initial state before handshake begins.
	StateInit State = iota
	// StateWaitingSigma2 means initiator sent Sigma1, waiting for Sigma2.
	StateWaitingSigma2
	// StateWaitingSigma2Resume means initiator sent Sigma1 with resumption, waiting for Sigma2_Resume.
	StateWaitingSigma2Resume
	// StateWaitingSigma3 means responder sent Sigma2, waiting for Sigma3.
	StateWaitingSigma3
	// StateWaitingStatusReport means initiator sent Sigma3, waiting for StatusReport.
	StateWaitingStatusReport
	// StateComplete means the session is established.
	StateComplete
	// StateFailed means the handshake failed.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingSigma2:
		return "WaitingSigma2"
	case StateWaitingSigma2Resume:
		return "WaitingSigma2Resume"
	case StateWaitingSigma3:
		return "WaitingSigma3"
	case StateWaitingStatusReport:
		return "WaitingStatusReport"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SessionKeys holds the derived session encryption keys.
type SessionKeys struct {
	// I2RKey encrypts messages from initiator to responder.
	I2RKey [SessionKeySize]byte

	// R2IKey encrypts messages from responder to initiator.
	R2IKey [SessionKeySize]byte

	// AttestationChallenge is used for attestation during commissioning.
	AttestationChallenge [SessionKeySize]byte
}

// ResumptionInfo stores state needed for session resumption.
type ResumptionInfo struct {
	// ResumptionID is the identifier for the previous session.
	ResumptionID [ResumptionIDSize]byte

	// SharedSecret is the ECDH shared secret from the previous session.
	SharedSecret []byte

	// PeerNodeID is the peer's operational node ID.
	PeerNodeID uint64

	// PeerCATs are the peer's CASE Authenticated Tags (optional).
	PeerCATs []uint32
}

// PeerCertInfo contains information extracted from a validated peer certificate chain.
type PeerCertInfo struct {
	// NodeID is the peer's operational node ID extracted from the NOC.
	NodeID uint64

	// FabricID is the fabric ID from the NOC.
	FabricID uint64

	// PublicKey is the peer's public key (65 bytes with 0x04 prefix).
	PublicKey [65]byte
}

// ValidatePeerCertChainFunc validates the peer's certificate chain.
// Called during CASE handshake to verify the peer's NOC chains to a trusted root.
//
// The callback should:
//  1. Parse the NOC (and ICAC if present) from Matter TLV format
//  2. Verify the certificate chain: NOC → ICAC (optional) → trusted root
//  3. Extract and return the node ID, fabric ID, and public key from the NOC
//
// Parameters:
//   - noc: Peer's Node Operational Certificate (Matter TLV encoded)
//   - icac: Peer's ICAC if present (nil if NOC chains directly to root)
//   - trustedRootPubKey: The expected root public key (65 bytes with 0x04 prefix)
//
// Returns PeerCertInfo with extracted fields, or error if validation fails.
type ValidatePeerCertChainFunc func(
	noc []byte,
	icac []byte,
	trustedRootPubKey [65]byte,
) (*PeerCertInfo, error)
