package session

import "errors"

// Validation errors: a field presented to the package failed a structural
// check before any table or crypto operation was attempted.
var (
	ErrInvalidSessionType = errors.New("session: invalid session type")
	ErrInvalidRole        = errors.New("session: invalid session role")
	ErrInvalidKey         = errors.New("session: invalid key length")
	ErrInvalidSessionID   = errors.New("session: invalid session ID")
	ErrInvalidNodeID      = errors.New("session: invalid node ID")
)

// Table errors: raised by the session/group tables that index live
// contexts by ID.
var (
	ErrSessionNotFound    = errors.New("session: session not found")
	ErrSessionTableFull   = errors.New("session: session table full")
	ErrSessionIDExhausted = errors.New("session: session ID space exhausted")
	ErrDuplicateSession   = errors.New("session: duplicate session ID")
	ErrGroupPeerTableFull = errors.New("session: group peer table full")
)

// Secure-channel errors: raised while encrypting, decrypting or counting
// messages on an established SecureContext.
var (
	// ErrCounterExhausted means the message counter has wrapped and the
	// session must be re-established.
	ErrCounterExhausted = errors.New("session: message counter exhausted")
	ErrReplayDetected    = errors.New("session: replay detected")
	ErrDecryptionFailed  = errors.New("session: decryption failed")
)
