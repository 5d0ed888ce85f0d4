package mcast

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("mcast: closed")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("mcast: already started")

	// ErrNoHandler is returned when no packet handler is configured.
	ErrNoHandler = errors.New("mcast: no handler configured")

	// ErrNoUsableInterface is returned when no multicast-capable interface
	// could join the IPv6 mDNS group.
	ErrNoUsableInterface = errors.New("mcast: no usable multicast interface")

	// ErrMessageTooLarge is returned when an outbound datagram exceeds MaxMessageSize.
	ErrMessageTooLarge = errors.New("mcast: message exceeds mDNS MTU")
)
