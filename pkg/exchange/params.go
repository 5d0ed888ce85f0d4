package exchange

import "time"

// Message Reliability Protocol constants, Spec Section 4.12.8 Table 22.
// Session-level timing (idle/active interval and threshold) lives in
// session.Params instead, since those come from discovery or session
// establishment rather than being fixed protocol constants.
const (
	// MRPMaxTransmissions caps how many times a reliable message is sent
	// before it is declared undeliverable (MRP_MAX_TRANSMISSIONS = 5).
	MRPMaxTransmissions = 5

	// MRPBackoffBase is the exponential-backoff base (MRP_BACKOFF_BASE = 1.6).
	MRPBackoffBase = 1.6

	// MRPBackoffJitter scales the random jitter term (MRP_BACKOFF_JITTER = 0.25).
	MRPBackoffJitter = 0.25

	// MRPBackoffMargin is the safety margin over the peer's idle/active
	// interval (MRP_BACKOFF_MARGIN = 1.1).
	MRPBackoffMargin = 1.1

	// MRPBackoffThreshold is the attempt count up to which backoff stays
	// constant; later attempts grow exponentially (MRP_BACKOFF_THRESHOLD = 1).
	MRPBackoffThreshold = 1

	// MRPStandaloneAckTimeout bounds how long a received reliable message
	// waits for a piggyback opportunity before a standalone ACK goes out
	// (MRP_STANDALONE_ACK_TIMEOUT = 200ms).
	MRPStandaloneAckTimeout = 200 * time.Millisecond
)

// MaxConcurrentExchanges is the Spec 4.10.5.2 recommendation that a node
// cap itself at 5 concurrent exchanges per unicast session, to avoid
// exhausting the message counter window.
const MaxConcurrentExchanges = 5
