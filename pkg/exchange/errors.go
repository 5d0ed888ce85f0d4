package exchange

import "errors"

// Lifecycle errors: the exchange or its handler setup is in the wrong
// state for the requested operation.
var (
	ErrExchangeClosed  = errors.New("exchange: exchange is closed")
	ErrExchangeClosing = errors.New("exchange: exchange is closing")
	ErrExchangeExists  = errors.New("exchange: exchange already exists")
	ErrExchangeNotFound = errors.New("exchange: exchange not found")
	ErrSessionNotFound  = errors.New("exchange: session not found")
	ErrNoHandler        = errors.New("exchange: no handler registered for protocol")
	ErrInvalidRole      = errors.New("exchange: invalid exchange role")
)

// Message errors: something about a specific message violated the MRP or
// framing rules.
var (
	// ErrPendingRetransmit is returned on a send attempt while the
	// exchange still has a reliable message in flight. Spec 4.10: the
	// exchange layer must not accept a new message from the upper layer
	// while one outbound reliable message is unacknowledged.
	ErrPendingRetransmit = errors.New("exchange: reliable message pending")

	ErrMaxRetransmits         = errors.New("exchange: max retransmissions exceeded")
	ErrDuplicateMessage       = errors.New("exchange: duplicate message")
	ErrInvalidMessage         = errors.New("exchange: invalid message")
	ErrUnsolicitedNotInitiator = errors.New("exchange: unsolicited message must have I flag set")
)
