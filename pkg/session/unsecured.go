package session

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/quietridge/matter/pkg/fabric"
	"github.com/quietridge/matter/pkg/message"
)

// UnsecuredContext is the state kept for the unencrypted exchange that
// carries a CASE handshake before secure-session keys exist: the role
// played, an ephemeral node ID for routing, replay detection for the
// cleartext messages, and the MRP parameters in effect. See Spec Section
// 4.13.2.1 (Unsecured Session Context).
type UnsecuredContext struct {
	mu sync.RWMutex

	role            SessionRole
	ephemeralNodeID fabric.NodeID
	receptionState  *message.ReceptionState
	params          Params
}

// NewUnsecuredContext creates a context for role. An initiator is given a
// freshly generated ephemeral node ID immediately; a responder's is left
// zero until SetEphemeralNodeID records the initiator's value from the
// incoming message.
func NewUnsecuredContext(role SessionRole) (*UnsecuredContext, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	c := &UnsecuredContext{
		role:           role,
		receptionState: message.NewReceptionStateEmpty(),
		params:         DefaultParams(),
	}

	if role == SessionRoleInitiator {
		nodeID, err := generateEphemeralNodeID()
		if err != nil {
			return nil, err
		}
		c.ephemeralNodeID = nodeID
	}

	return c, nil
}

// Role reports whether this context is the initiator or responder side.
func (c *UnsecuredContext) Role() SessionRole {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// EphemeralNodeID returns the node ID used to route messages on this
// unsecured exchange.
func (c *UnsecuredContext) EphemeralNodeID() fabric.NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ephemeralNodeID
}

// SetEphemeralNodeID records the peer's ephemeral node ID; responders use
// this to capture the initiator's ID from its first message.
func (c *UnsecuredContext) SetEphemeralNodeID(nodeID fabric.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ephemeralNodeID = nodeID
}

// CheckCounter reports whether an incoming unencrypted message counter
// should be accepted. Per Spec 4.6.5.3, unencrypted messages use relaxed
// duplicate detection, so counters behind the window are still accepted —
// they may come from a peer that rebooted mid-handshake.
func (c *UnsecuredContext) CheckCounter(counter uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receptionState.CheckUnencrypted(counter)
}

// GetParams returns the MRP parameters currently in effect, typically
// learned from DNS-SD TXT records.
func (c *UnsecuredContext) GetParams() Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// SetParams installs params, filling any zero fields with their defaults.
func (c *UnsecuredContext) SetParams(params Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = params.WithDefaults()
}

// operationalIDSpan is the width of the valid operational node ID range,
// used to fold a random 64-bit draw into [NodeIDMinOperational,
// NodeIDMaxOperational].
var operationalIDSpan = uint64(fabric.NodeIDMaxOperational) - uint64(fabric.NodeIDMinOperational)

// generateEphemeralNodeID draws a random ID within the operational node ID
// range for use as an unsecured session's ephemeral identifier, per Spec
// 4.13.2.1.
func generateEphemeralNodeID() (fabric.NodeID, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	draw := binary.LittleEndian.Uint64(buf[:])
	return fabric.NodeID(draw%operationalIDSpan + uint64(fabric.NodeIDMinOperational)), nil
}
