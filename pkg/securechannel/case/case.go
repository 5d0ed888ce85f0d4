// Package casesession implements CASE (Certificate Authenticated Session Establishment).
//
// CASE is the Sigma protocol used to establish secure sessions between commissioned
// Matter nodes using operational certificates. It provides mutual authentication and
// key derivation for encrypted communication.
//
// The package supports:
//   - Full handshake: Sigma1 → Sigma2 → Sigma3 → StatusReport
//   - Session resumption: Sigma1 (with resumption) → Sigma2_Resume → StatusReport
//
// Spec References:
//   - Section 4.14.2: Certificate Authenticated Session Establishment (CASE)
//   - Section 4.14.2.3: Protocol Details (Sigma1/2/3 message flows)
//   - Section 4.14.2.4: Field Descriptions (Destination Identifier)
//   - Section 4.14.2.6: Key Derivation
package casesession

// Size constants.
const (
	// RandomSize is the size of random values in CASE messages (32 bytes).
	RandomSize = 32

	// ResumptionIDSize is the size of the resumption ID (16 bytes).
	ResumptionIDSize = 16

	// MICSize is the AEAD MIC size (16 bytes).
	MICSize = 16

	// DestinationIDSize is the size of the destination identifier (32 bytes, SHA-256 output).
	DestinationIDSize = 32

	// SessionKeySize is the size of session encryption keys (16 bytes).
	SessionKeySize = 16
)

// AEAD nonces for CASE operations (13 bytes each).
var (
	// Sigma2Nonce is the nonce for TBEData2 encryption.
	Sigma2Nonce = []byte("NCASE_Sigma2N")

	// Sigma3Nonce is the nonce for TBEData3 encryption.
	Sigma3Nonce = []byte("NCASE_Sigma3N")

	// Resume1Nonce is the nonce for Sigma1 resumption MIC.
	Resume1Nonce = []byte("NCASE_SigmaS1")

	// Resume2Nonce is the nonce for Sigma2_Resume MIC.
	Resume2Nonce = []byte("NCASE_SigmaS2")
)

// Key derivation info strings.
var (
	// S2KInfo is the info string for Sigma2 key derivation.
	S2KInfo = []byte("Sigma2")

	// S3KInfo is the info string for Sigma3 key derivation.
	S3KInfo = []byte("Sigma3")

	// S1RKInfo is the info string for Sigma1 resumption key.
	S1RKInfo = []byte("Sigma1_Resume")

	// S2RKInfo is the info string for Sigma2 resumption key.
	S2RKInfo = []byte("Sigma2_Resume")

	// SEKeysInfo is the info string for session encryption keys.
	SEKeysInfo = []byte("SessionKeys")
)
