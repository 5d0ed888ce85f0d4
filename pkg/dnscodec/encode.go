package dnscodec

import (
	"strings"
)

type encoder struct {
	buf   []byte
	names map[string]int // lowercased dotted suffix -> offset of its first label
}

func newEncoder() *encoder {
	return &encoder{names: make(map[string]int)}
}

// writeName appends name in wire form, using a pointer to a previously
// written suffix when one is available (RFC 1035 §4.1.4).
func (e *encoder) writeName(name string) error {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if name == "" {
		e.buf = append(e.buf, 0)
		return nil
	}

	labels := strings.Split(name, ".")
	if encodedNameLength(labels) > MaxNameLength {
		return ErrNameTooLong
	}

	for i := range labels {
		suffix := strings.Join(labels[i:], ".")
		if off, ok := e.names[suffix]; ok {
			for _, l := range labels[:i] {
				if len(l) > MaxLabelLength {
					return ErrLabelTooLong
				}
				e.buf = append(e.buf, byte(len(l)))
				e.buf = append(e.buf, l...)
			}
			e.buf = append(e.buf, byte(0xC0|(off>>8)), byte(off&0xFF))
			return nil
		}
	}

	for i, l := range labels {
		if len(l) > MaxLabelLength {
			return ErrLabelTooLong
		}
		if len(e.buf) < 0x4000 {
			suffix := strings.Join(labels[i:], ".")
			if _, exists := e.names[suffix]; !exists {
				e.names[suffix] = len(e.buf)
			}
		}
		e.buf = append(e.buf, byte(len(l)))
		e.buf = append(e.buf, l...)
	}
	e.buf = append(e.buf, 0)
	return nil
}

func encodedNameLength(labels []string) int {
	n := 1 // root terminator
	for _, l := range labels {
		n += 1 + len(l)
	}
	return n
}

func (e *encoder) writeUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

func (e *encoder) writeUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *encoder) writeQuestion(q Question) error {
	if err := e.writeName(q.Name); err != nil {
		return err
	}
	e.writeUint16(uint16(q.Type))
	class := q.Class
	if q.UnicastResponse {
		class |= classCacheFlushOrUnicastBit
	}
	e.writeUint16(class)
	return nil
}

func (e *encoder) writeRecord(r Record) error {
	if err := e.writeName(r.Name); err != nil {
		return err
	}
	e.writeUint16(uint16(r.Type))
	class := r.Class
	if r.CacheFlush {
		class |= classCacheFlushOrUnicastBit
	}
	e.writeUint16(class)
	e.writeUint32(r.TTL)

	// Reserve 2 bytes for RDLENGTH, then patch once RDATA is known.
	lenPos := len(e.buf)
	e.writeUint16(0)
	rdataStart := len(e.buf)

	switch r.Type {
	case TypeA:
		if len(r.IP) != 4 {
			return ErrUnsupportedType
		}
		e.buf = append(e.buf, r.IP...)
	case TypeAAAA:
		if len(r.IP) != 16 {
			return ErrUnsupportedType
		}
		e.buf = append(e.buf, r.IP...)
	case TypePTR:
		if err := e.writeName(r.PTRName); err != nil {
			return err
		}
	case TypeSRV:
		e.writeUint16(r.SRV.Priority)
		e.writeUint16(r.SRV.Weight)
		e.writeUint16(r.SRV.Port)
		if err := e.writeName(r.SRV.Target); err != nil {
			return err
		}
	case TypeTXT:
		if len(r.TXT) == 0 {
			e.buf = append(e.buf, 0)
		}
		for _, kv := range r.TXT {
			if len(kv) > 255 {
				return ErrLabelTooLong
			}
			e.buf = append(e.buf, byte(len(kv)))
			e.buf = append(e.buf, kv...)
		}
	default:
		return ErrUnsupportedType
	}

	rdlen := len(e.buf) - rdataStart
	e.buf[lenPos] = byte(rdlen >> 8)
	e.buf[lenPos+1] = byte(rdlen)
	return nil
}

// Encode serializes a full message, sharing a single name-compression table
// across the header's question/answer/authority/additional sections.
func Encode(msg *Message) ([]byte, error) {
	e := newEncoder()

	hdr := msg.Header
	hdr.QDCount = uint16(len(msg.Questions))
	hdr.ANCount = uint16(len(msg.Answers))
	hdr.NSCount = uint16(len(msg.NameServers))
	hdr.ARCount = uint16(len(msg.AdditionalRecords))

	e.writeUint16(hdr.ID)
	var flags uint16
	if hdr.Response {
		flags |= 1 << 15
	}
	if hdr.Truncated {
		flags |= 1 << 9
	}
	e.writeUint16(flags)
	e.writeUint16(hdr.QDCount)
	e.writeUint16(hdr.ANCount)
	e.writeUint16(hdr.NSCount)
	e.writeUint16(hdr.ARCount)

	for _, q := range msg.Questions {
		if err := e.writeQuestion(q); err != nil {
			return nil, err
		}
	}
	for _, r := range msg.Answers {
		if err := e.writeRecord(r); err != nil {
			return nil, err
		}
	}
	for _, r := range msg.NameServers {
		if err := e.writeRecord(r); err != nil {
			return nil, err
		}
	}
	for _, r := range msg.AdditionalRecords {
		if err := e.writeRecord(r); err != nil {
			return nil, err
		}
	}

	return e.buf, nil
}

// EncodeRecord serializes a single record with no compression context, for
// callers that need to measure a record's standalone encoded size before
// deciding whether it fits an outbound message's remaining MTU budget.
// Because it carries no shared-name table, this is always an upper bound on
// the record's size once it's actually appended to a real message.
func EncodeRecord(r Record) ([]byte, error) {
	e := newEncoder()
	if err := e.writeRecord(r); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// EncodeQuestion serializes a single question with no compression context,
// for the same MTU-budgeting purpose as EncodeRecord.
func EncodeQuestion(q Question) ([]byte, error) {
	e := newEncoder()
	if err := e.writeQuestion(q); err != nil {
		return nil, err
	}
	return e.buf, nil
}
