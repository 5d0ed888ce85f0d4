// Package message implements Matter message framing, encoding, and security:
// message/protocol header encoding, AES-CCM secure encryption, AES-CTR
// privacy header obfuscation, message counter management with replay
// detection, and TCP stream framing, as defined in Matter Specification
// Chapter 4.
package message

// SessionType identifies the type of session associated with a message,
// encoded in Security Flags bits 0-1 (Section 4.4.1.3).
type SessionType uint8

const (
	// SessionTypeUnicast is a unicast session (PASE or CASE); session ID 0
	// with this type means an unsecured session.
	SessionTypeUnicast SessionType = 0

	// SessionTypeGroup is a group session using group keys.
	SessionTypeGroup SessionType = 1
)

// String returns a human-readable name for the session type.
func (s SessionType) String() string {
	switch s {
	case SessionTypeUnicast:
		return "Unicast"
	case SessionTypeGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the session type is a defined value.
func (s SessionType) IsValid() bool {
	return s <= SessionTypeGroup
}

// DestinationType identifies the format of the Destination Node ID field,
// encoded in the Message Flags DSIZ field, bits 0-1 (Section 4.4.1.1).
type DestinationType uint8

const (
	DestinationNone    DestinationType = 0 // no Destination Node ID field
	DestinationNodeID  DestinationType = 1 // 64-bit Node ID
	DestinationGroupID DestinationType = 2 // 16-bit Group ID
)

var destinationTypeNames = map[DestinationType]string{
	DestinationNone:    "None",
	DestinationNodeID:  "NodeID",
	DestinationGroupID: "GroupID",
}

// String returns a human-readable name for the destination type.
func (d DestinationType) String() string {
	if name, ok := destinationTypeNames[d]; ok {
		return name
	}
	return "Unknown"
}

// IsValid returns true if the destination type is a defined value.
func (d DestinationType) IsValid() bool {
	return d <= DestinationGroupID
}

var destinationTypeSizes = map[DestinationType]int{
	DestinationNone:    0,
	DestinationNodeID:  8,
	DestinationGroupID: 2,
}

// Size returns the size in bytes of the destination field for this type.
func (d DestinationType) Size() int {
	return destinationTypeSizes[d]
}

// ProtocolID identifies the protocol that defines a message's opcode
// (Section 4.4.3.4).
type ProtocolID uint16

const (
	ProtocolSecureChannel             ProtocolID = 0x0000 // PASE, CASE, MRP
	ProtocolInteractionModel          ProtocolID = 0x0001
	ProtocolBDX                       ProtocolID = 0x0002 // Bulk Data Exchange
	ProtocolUserDirectedCommissioning ProtocolID = 0x0003
	ProtocolForTesting                ProtocolID = 0x0004 // reserved for isolated test environments
)

var protocolIDNames = map[ProtocolID]string{
	ProtocolSecureChannel:             "SecureChannel",
	ProtocolInteractionModel:          "InteractionModel",
	ProtocolBDX:                       "BDX",
	ProtocolUserDirectedCommissioning: "UDC",
	ProtocolForTesting:                "Testing",
}

// String returns a human-readable name for the protocol ID.
func (p ProtocolID) String() string {
	if name, ok := protocolIDNames[p]; ok {
		return name
	}
	return "Unknown"
}

// VendorIDMatter is the standard Matter vendor ID.
const VendorIDMatter uint16 = 0x0000
