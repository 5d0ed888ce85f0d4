package message

import "encoding/binary"

// ProtocolHeader is the Matter protocol message header (Section 4.4.3), the
// first part of the Message Payload — encrypted for secure sessions.
type ProtocolHeader struct {
	ProtocolID     ProtocolID
	ProtocolOpcode uint8

	// ExchangeID identifies the exchange (conversation) this message belongs to.
	ExchangeID uint16

	// ProtocolVendorID namespaces ProtocolID. Present only when VendorPresent
	// is set; defaults to VendorIDMatter.
	ProtocolVendorID uint16

	// AckedMessageCounter is the counter of the message being acknowledged.
	// Valid only when Acknowledgement is set.
	AckedMessageCounter uint32

	Initiator       bool // I Flag
	Acknowledgement bool // A Flag
	Reliability     bool // R Flag, sender wants an ack

	// SecuredExtensions is the SX Flag. Version 1.0 nodes must set this false.
	SecuredExtensions bool

	VendorPresent bool // V Flag
}

// Size returns the encoded size of the protocol header in bytes.
func (p *ProtocolHeader) Size() int {
	size := MinProtocolHeaderSize
	if p.VendorPresent {
		size += 2
	}
	if p.Acknowledgement {
		size += 4
	}
	return size
}

// Encode serializes the protocol header to a freshly allocated buffer.
func (p *ProtocolHeader) Encode() []byte {
	buf := make([]byte, p.Size())
	p.EncodeTo(buf)
	return buf
}

// EncodeTo serializes the header into buf, which must be at least Size()
// bytes, and returns the number of bytes written.
func (p *ProtocolHeader) EncodeTo(buf []byte) int {
	offset := 0

	buf[offset] = p.exchangeFlags()
	offset++

	buf[offset] = p.ProtocolOpcode
	offset++

	binary.LittleEndian.PutUint16(buf[offset:], p.ExchangeID)
	offset += 2

	if p.VendorPresent {
		binary.LittleEndian.PutUint16(buf[offset:], p.ProtocolVendorID)
		offset += 2
	}

	binary.LittleEndian.PutUint16(buf[offset:], uint16(p.ProtocolID))
	offset += 2

	if p.Acknowledgement {
		binary.LittleEndian.PutUint32(buf[offset:], p.AckedMessageCounter)
		offset += 4
	}

	return offset
}

// exchangeFlags builds the Exchange Flags byte from the I/A/R/SX/V flags.
func (p *ProtocolHeader) exchangeFlags() uint8 {
	var flags uint8
	if p.Initiator {
		flags |= exchFlagInitiator
	}
	if p.Acknowledgement {
		flags |= exchFlagAcknowledgement
	}
	if p.Reliability {
		flags |= exchFlagReliability
	}
	if p.SecuredExtensions {
		flags |= exchFlagSecuredExtensions
	}
	if p.VendorPresent {
		flags |= exchFlagVendor
	}
	return flags
}

// Decode deserializes a protocol header from data and returns the number of
// bytes consumed.
func (p *ProtocolHeader) Decode(data []byte) (int, error) {
	if len(data) < MinProtocolHeaderSize {
		return 0, ErrPayloadTooShort
	}

	offset := 0

	exchFlags := data[offset]
	offset++

	p.Initiator = exchFlags&exchFlagInitiator != 0
	p.Acknowledgement = exchFlags&exchFlagAcknowledgement != 0
	p.Reliability = exchFlags&exchFlagReliability != 0
	p.SecuredExtensions = exchFlags&exchFlagSecuredExtensions != 0
	p.VendorPresent = exchFlags&exchFlagVendor != 0

	p.ProtocolOpcode = data[offset]
	offset++

	p.ExchangeID = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	requiredLen := offset + 2 // Protocol ID
	if p.VendorPresent {
		requiredLen += 2
	}
	if p.Acknowledgement {
		requiredLen += 4
	}
	if len(data) < requiredLen {
		return 0, ErrPayloadTooShort
	}

	if p.VendorPresent {
		p.ProtocolVendorID = binary.LittleEndian.Uint16(data[offset:])
		offset += 2
	} else {
		p.ProtocolVendorID = VendorIDMatter
	}

	p.ProtocolID = ProtocolID(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2

	if p.Acknowledgement {
		p.AckedMessageCounter = binary.LittleEndian.Uint32(data[offset:])
		offset += 4
	} else {
		p.AckedMessageCounter = 0
	}

	return offset, nil
}

// IsSecureChannel returns true if this is a Secure Channel Protocol message.
func (p *ProtocolHeader) IsSecureChannel() bool {
	return p.ProtocolVendorID == VendorIDMatter && p.ProtocolID == ProtocolSecureChannel
}

// IsInteractionModel returns true if this is an Interaction Model Protocol message.
func (p *ProtocolHeader) IsInteractionModel() bool {
	return p.ProtocolVendorID == VendorIDMatter && p.ProtocolID == ProtocolInteractionModel
}

// NeedsAck returns true if this message requires an acknowledgement.
func (p *ProtocolHeader) NeedsAck() bool {
	return p.Reliability
}

// IsAck returns true if this message is an acknowledgement.
func (p *ProtocolHeader) IsAck() bool {
	return p.Acknowledgement
}
