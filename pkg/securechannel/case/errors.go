package casesession

import "errors"

// Errors returned by CASE operations.
var (
	// ErrInvalidState is returned when an operation is invalid for the current state.
	ErrInvalidState = errors.New("case: invalid state for operation")

	// ErrNoSharedRoot is returned when no shared trust root is found.
	ErrNoSharedRoot = errors.New("case: no shared trust roots")

	// ErrInvalidDestination is returned when destination ID validation fails.
	ErrInvalidDestination = errors.New("case: invalid destination identifier")

	// ErrInvalidCertificate is returned when certificate validation fails.
	ErrInvalidCertificate = errors.New("case: certificate validation failed")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("case: signature verification failed")

	// ErrDecryptionFailed is returned when AEAD decryption fails.
	ErrDecryptionFailed = errors.New("case: decryption failed")

	// ErrResumptionFailed is returned when session resumption fails.
	ErrResumptionFailed = errors.New("case: session resumption failed")

	// ErrInvalidResumeMIC is returned when resumption MIC verification fails.
	ErrInvalidResumeMIC = errors.New("case: invalid resumption MIC")

	// ErrInvalidMessage is returned when a message is malformed.
	ErrInvalidMessage = errors.New("case: invalid message format")

	// ErrInvalidRandom is returned when a random value has wrong size.
	ErrInvalidRandom = errors.New("case: invalid random size")

	// ErrMissingResumptionField is returned when resumption fields are incomplete.
	ErrMissingResumptionField = errors.New("case: resumption requires both resumptionID and initiatorResumeMIC")

	// ErrInvalidStatusReport is returned when status report indicates failure.
	ErrInvalidStatusReport = errors.New("case: received failure status report")

	// ErrSessionNotReady is returned when trying to get keys before session is complete.
	ErrSessionNotReady = errors.New("case: session not yet established")
)
