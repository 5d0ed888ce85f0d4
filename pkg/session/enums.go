// Package session implements the security-context layer between raw
// network transport and the exchange layer: it holds per-session state
// (IDs, keys, counters) and encrypts/decrypts message payloads.
//
// Three context kinds exist: UnsecuredContext for the CASE handshake
// itself, SecureContext for an established unicast session, and
// GroupContext for encrypted multicast. See Spec Sections 4.13 (Unicast
// Communication), 4.16.1 (Groupcast Session Context), 4.6 (Message
// Counters) and 4.8 (Message Security).
package session

// SessionType records whether a SecureContext's keys came from PASE or
// CASE establishment, since that changes how the encryption nonce is
// built: PASE sessions use NodeID=0, CASE sessions use the peer's real
// NodeID. See Spec Section 4.13.3.1 field 1.
type SessionType int

const (
	SessionTypeUnknown SessionType = iota
	SessionTypePASE
	SessionTypeCASE
)

var sessionTypeNames = [...]string{"Unknown", "PASE", "CASE"}

func (s SessionType) String() string {
	if s >= SessionTypeUnknown && int(s) < len(sessionTypeNames) {
		return sessionTypeNames[s]
	}
	return "Unknown"
}

// IsValid reports whether s is PASE or CASE.
func (s SessionType) IsValid() bool {
	return s == SessionTypePASE || s == SessionTypeCASE
}

// SessionRole records which side of establishment the local node played,
// which determines which derived key encrypts and which decrypts: an
// initiator encrypts with I2RKey and decrypts with R2IKey; a responder
// does the reverse. See Spec Section 4.13.3.1 field 2.
type SessionRole int

const (
	SessionRoleUnknown SessionRole = iota
	SessionRoleInitiator
	SessionRoleResponder
)

var sessionRoleNames = [...]string{"Unknown", "Initiator", "Responder"}

func (r SessionRole) String() string {
	if r >= SessionRoleUnknown && int(r) < len(sessionRoleNames) {
		return sessionRoleNames[r]
	}
	return "Unknown"
}

// IsValid reports whether r is Initiator or Responder.
func (r SessionRole) IsValid() bool {
	return r == SessionRoleInitiator || r == SessionRoleResponder
}
