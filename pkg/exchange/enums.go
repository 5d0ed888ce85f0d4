// Package exchange implements Matter message exchange management and
// reliability. It sits between the session layer (pkg/session) and
// higher-level protocols (SecureChannel, InteractionModel), providing
// exchange multiplexing, the Message Reliability Protocol (MRP) and
// protocol-ID dispatch to handlers.
//
// An exchange is one conversation between two nodes, bound to exactly one
// session and identified by {Session Context, Exchange ID, Exchange
// Role}. See Spec Sections 4.10 (Message Exchanges) and 4.12 (MRP).
package exchange

// ExchangeRole distinguishes who started a particular exchange, which is
// independent of session.SessionRole (who started the CASE/PASE session
// itself, fixed for its lifetime). A node that responded during session
// establishment can still be the initiator of a later exchange, e.g. to
// start a Read request. See Spec Section 4.10.1.
type ExchangeRole int

const (
	ExchangeRoleUnknown ExchangeRole = iota

	// ExchangeRoleInitiator allocated the Exchange ID and sets the I flag
	// on every message it sends.
	ExchangeRoleInitiator

	// ExchangeRoleResponder reuses the initiator's Exchange ID and never
	// sets the I flag.
	ExchangeRoleResponder
)

var exchangeRoleNames = map[ExchangeRole]string{
	ExchangeRoleInitiator: "Initiator",
	ExchangeRoleResponder: "Responder",
}

func (r ExchangeRole) String() string {
	if name, ok := exchangeRoleNames[r]; ok {
		return name
	}
	return "Unknown"
}

// IsValid reports whether r is Initiator or Responder.
func (r ExchangeRole) IsValid() bool {
	return r == ExchangeRoleInitiator || r == ExchangeRoleResponder
}

// Invert returns the role a newly created responder exchange would take
// on relative to r.
func (r ExchangeRole) Invert() ExchangeRole {
	switch r {
	case ExchangeRoleInitiator:
		return ExchangeRoleResponder
	case ExchangeRoleResponder:
		return ExchangeRoleInitiator
	default:
		return ExchangeRoleUnknown
	}
}

// ExchangeState tracks an exchange's lifecycle. See Spec Section 4.10.5.3
// for the closing sequence.
type ExchangeState int

const (
	ExchangeStateUnknown ExchangeState = iota
	ExchangeStateActive
	ExchangeStateClosing
	ExchangeStateClosed
)

var exchangeStateNames = map[ExchangeState]string{
	ExchangeStateActive:  "Active",
	ExchangeStateClosing: "Closing",
	ExchangeStateClosed:  "Closed",
}

func (s ExchangeState) String() string {
	if name, ok := exchangeStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsValid reports whether s is one of the defined lifecycle states.
func (s ExchangeState) IsValid() bool {
	return s >= ExchangeStateActive && s <= ExchangeStateClosed
}

// CanSend reports whether new outbound messages are accepted in state s.
func (s ExchangeState) CanSend() bool {
	return s == ExchangeStateActive
}

// CanReceive reports whether inbound messages are still processed in
// state s. Closing exchanges keep receiving so pending retransmissions and
// ACKs can flush per Spec 4.10.5.3.
func (s ExchangeState) CanReceive() bool {
	return s == ExchangeStateActive || s == ExchangeStateClosing
}
