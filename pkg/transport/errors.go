package transport

import "errors"

// Lifecycle errors: the manager or connection is in the wrong state for
// the requested operation.
var (
	ErrClosed          = errors.New("transport: closed")
	ErrNotStarted      = errors.New("transport: not started")
	ErrAlreadyStarted  = errors.New("transport: already started")
	ErrNoHandler       = errors.New("transport: no message handler configured")
)

// Send-path errors.
var (
	ErrInvalidAddress      = errors.New("transport: invalid address")
	ErrConnectionNotFound  = errors.New("transport: connection not found for peer")
	ErrSendFailed          = errors.New("transport: send failed")
	ErrMessageTooLarge     = errors.New("transport: message too large")
)
