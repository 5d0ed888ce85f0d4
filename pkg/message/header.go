package message

import "encoding/binary"

// MessageHeader is the Matter message header (Section 4.4.1). All
// multi-byte fields are little-endian on the wire.
type MessageHeader struct {
	// SessionID identifies the encryption context for this message. 0 with
	// SessionTypeUnicast means an unsecured session.
	SessionID uint16

	// MessageCounter is unique per message; used for replay detection and
	// as part of the encryption nonce.
	MessageCounter uint32

	SessionType SessionType

	// SourceNodeID is present only when SourcePresent is true. Required for
	// group messages, optional for unicast.
	SourceNodeID uint64

	DestinationType DestinationType

	// DestinationNodeID is valid only when DestinationType is DestinationNodeID.
	DestinationNodeID uint64

	// DestinationGroupID is valid only when DestinationType is DestinationGroupID.
	DestinationGroupID uint16

	SourcePresent bool // S Flag
	Privacy       bool // P Flag
	Control       bool // C Flag, control message using the control counter

	// Extensions is the MX Flag. Version 1.0 nodes must set this false.
	Extensions bool
}

// Size returns the encoded size of the message header in bytes.
func (h *MessageHeader) Size() int {
	size := MinHeaderSize
	if h.SourcePresent {
		size += NodeIDSize
	}
	return size + h.DestinationType.Size()
}

// Encode serializes the header to a freshly allocated buffer, suitable for
// use directly as AAD for encryption.
func (h *MessageHeader) Encode() []byte {
	buf := make([]byte, h.Size())
	h.EncodeTo(buf)
	return buf
}

// EncodeTo serializes the header into buf, which must be at least Size()
// bytes, and returns the number of bytes written.
func (h *MessageHeader) EncodeTo(buf []byte) int {
	offset := 0

	buf[offset] = h.messageFlags()
	offset++

	binary.LittleEndian.PutUint16(buf[offset:], h.SessionID)
	offset += 2

	buf[offset] = h.securityFlags()
	offset++

	binary.LittleEndian.PutUint32(buf[offset:], h.MessageCounter)
	offset += 4

	if h.SourcePresent {
		binary.LittleEndian.PutUint64(buf[offset:], h.SourceNodeID)
		offset += NodeIDSize
	}

	switch h.DestinationType {
	case DestinationNodeID:
		binary.LittleEndian.PutUint64(buf[offset:], h.DestinationNodeID)
		offset += NodeIDSize
	case DestinationGroupID:
		binary.LittleEndian.PutUint16(buf[offset:], h.DestinationGroupID)
		offset += GroupIDSize
	}

	return offset
}

// messageFlags builds the Message Flags byte: Version in bits 4-7, S Flag
// in bit 2, DSIZ in bits 0-1.
func (h *MessageHeader) messageFlags() uint8 {
	flags := MessageVersion << flagVersionShift
	if h.SourcePresent {
		flags |= flagSourcePresent
	}
	flags |= uint8(h.DestinationType) & flagDSIZMask
	return flags
}

// securityFlags builds the Security Flags byte: Session Type in bits 0-1,
// MX Flag in bit 5, C Flag in bit 6, P Flag in bit 7.
func (h *MessageHeader) securityFlags() uint8 {
	flags := uint8(h.SessionType) & secFlagSessionTypeMask
	if h.Extensions {
		flags |= secFlagExtensions
	}
	if h.Control {
		flags |= secFlagControl
	}
	if h.Privacy {
		flags |= secFlagPrivacy
	}
	return flags
}

// Decode deserializes a header from data and returns the number of bytes consumed.
func (h *MessageHeader) Decode(data []byte) (int, error) {
	if len(data) < MinHeaderSize {
		return 0, ErrMessageTooShort
	}

	offset := 0

	msgFlags := data[offset]
	offset++

	if version := (msgFlags >> flagVersionShift) & flagVersionMask; version != MessageVersion {
		return 0, ErrInvalidVersion
	}
	h.SourcePresent = msgFlags&flagSourcePresent != 0
	h.DestinationType = DestinationType(msgFlags & flagDSIZMask)
	if !h.DestinationType.IsValid() {
		return 0, ErrInvalidDSIZ
	}

	h.SessionID = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	secFlags := data[offset]
	offset++

	h.SessionType = SessionType(secFlags & secFlagSessionTypeMask)
	if !h.SessionType.IsValid() {
		return 0, ErrInvalidSessionType
	}
	h.Extensions = secFlags&secFlagExtensions != 0
	h.Control = secFlags&secFlagControl != 0
	h.Privacy = secFlags&secFlagPrivacy != 0

	h.MessageCounter = binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	requiredLen := offset
	if h.SourcePresent {
		requiredLen += NodeIDSize
	}
	requiredLen += h.DestinationType.Size()
	if len(data) < requiredLen {
		return 0, ErrMessageTooShort
	}

	if h.SourcePresent {
		h.SourceNodeID = binary.LittleEndian.Uint64(data[offset:])
		offset += NodeIDSize
	} else {
		h.SourceNodeID = 0
	}

	switch h.DestinationType {
	case DestinationNodeID:
		h.DestinationNodeID = binary.LittleEndian.Uint64(data[offset:])
		h.DestinationGroupID = 0
		offset += NodeIDSize
	case DestinationGroupID:
		h.DestinationGroupID = binary.LittleEndian.Uint16(data[offset:])
		h.DestinationNodeID = 0
		offset += GroupIDSize
	default:
		h.DestinationNodeID = 0
		h.DestinationGroupID = 0
	}

	return offset, nil
}

// IsSecure returns true unless this is an unsecured session (unicast, session ID 0).
func (h *MessageHeader) IsSecure() bool {
	return !(h.SessionType == SessionTypeUnicast && h.SessionID == 0)
}

// Validate checks the header against the constraints in Section 4.7.2.1.
func (h *MessageHeader) Validate() error {
	if h.SessionType == SessionTypeGroup {
		if !h.SourcePresent {
			return ErrMissingSourceNodeID
		}
		if h.DestinationType == DestinationNone {
			return ErrInvalidDSIZ
		}
	}
	if h.SessionType == SessionTypeUnicast && h.DestinationType == DestinationGroupID {
		return ErrInvalidDSIZ
	}
	return nil
}

// PrivacyObfuscatedSize returns the size of the privacy-obfuscated portion
// of the header: Message Counter + [Source Node ID] + [Destination].
func (h *MessageHeader) PrivacyObfuscatedSize() int {
	size := 4
	if h.SourcePresent {
		size += NodeIDSize
	}
	return size + h.DestinationType.Size()
}

// PrivacyHeaderOffset returns the byte offset where privacy obfuscation
// starts: after Message Flags (1) + Session ID (2) + Security Flags (1).
func (h *MessageHeader) PrivacyHeaderOffset() int {
	return 4
}
