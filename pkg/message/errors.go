package message

import "errors"

// Header decoding errors.
var (
	ErrMessageTooShort     = errors.New("message: data too short")
	ErrInvalidVersion      = errors.New("message: invalid version (must be 0)")
	ErrInvalidSessionType  = errors.New("message: invalid session type (reserved value)")
	ErrInvalidDSIZ         = errors.New("message: invalid DSIZ field (reserved value)")
	ErrMissingSourceNodeID = errors.New("message: group session requires source node ID")
)

// Frame errors.
var (
	ErrMessageTooLong      = errors.New("message: exceeds maximum size")
	ErrInvalidMIC          = errors.New("message: invalid MIC length")
	ErrPayloadTooShort     = errors.New("message: payload too short for protocol header")
	ErrStreamReadFailed    = errors.New("message: failed to read from stream")
	ErrInvalidLengthPrefix = errors.New("message: invalid length prefix")
)

// Security errors.
var (
	ErrDecryptionFailed = errors.New("message: decryption/authentication failed")
	ErrInvalidKey       = errors.New("message: invalid encryption key")
	ErrInvalidNonce     = errors.New("message: invalid nonce")
)

// Counter errors.
var (
	ErrReplayDetected    = errors.New("message: replay detected (duplicate counter)")
	ErrCounterExhausted  = errors.New("message: message counter exhausted")
	ErrCounterOutOfRange = errors.New("message: counter outside valid window")
)

// Message format constants.
const (
	// MessageVersion is the only supported message format version (Section 4.4.1.1).
	MessageVersion uint8 = 0

	// MinHeaderSize: Message Flags (1) + Session ID (2) + Security Flags (1) +
	// Message Counter (4).
	MinHeaderSize = 8

	// MinProtocolHeaderSize: Exchange Flags (1) + Opcode (1) + Exchange ID (2) +
	// Protocol ID (2).
	MinProtocolHeaderSize = 6

	// MaxUDPMessageSize is the IPv6 minimum MTU (Section 4.4.4).
	MaxUDPMessageSize = 1280

	// MICSize is the AES-CCM tag size in bytes (Section 3.6).
	MICSize = 16

	NodeIDSize  = 8 // 64-bit Node ID
	GroupIDSize = 2 // 16-bit Group ID

	TCPLengthPrefixSize = 4 // Section 4.5.1
	BTPLengthPrefixSize = 2
)

// Message Flags bit layout (Section 4.4.1.1).
const (
	flagDSIZMask      uint8 = 0x03 // DSIZ, bits 0-1
	flagSourcePresent uint8 = 0x04 // S flag, bit 2
	flagVersionShift        = 4    // Version, bits 4-7
	flagVersionMask   uint8 = 0x0F
)

// Security Flags bit layout (Section 4.4.1.3).
const (
	secFlagSessionTypeMask uint8 = 0x03 // bits 0-1
	secFlagExtensions      uint8 = 0x20 // MX flag, bit 5
	secFlagControl         uint8 = 0x40 // C flag, bit 6
	secFlagPrivacy         uint8 = 0x80 // P flag, bit 7
)

// Exchange Flags bit layout (Section 4.4.3.1).
const (
	exchFlagInitiator         uint8 = 0x01 // I flag, bit 0
	exchFlagAcknowledgement   uint8 = 0x02 // A flag, bit 1
	exchFlagReliability       uint8 = 0x04 // R flag, bit 2
	exchFlagSecuredExtensions uint8 = 0x08 // SX flag, bit 3
	exchFlagVendor            uint8 = 0x10 // V flag, bit 4
)

// Counter constants (Section 4.6).
const (
	// CounterWindowSize is MSG_COUNTER_WINDOW_SIZE for replay detection.
	CounterWindowSize = 32

	// CounterInitMax bounds the random initial counter value: counters start
	// uniformly in [1, CounterInitMax].
	CounterInitMax = 1 << 28
)

// UnspecifiedNodeID marks a PASE session with no operational identity yet.
const UnspecifiedNodeID uint64 = 0
