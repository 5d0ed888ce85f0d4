package dnscodec

import (
	"strings"
)

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readUint16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, ErrTruncated
	}
	v := uint16(d.buf[d.pos])<<8 | uint16(d.buf[d.pos+1])
	d.pos += 2
	return v, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, ErrTruncated
	}
	v := uint32(d.buf[d.pos])<<24 | uint32(d.buf[d.pos+1])<<16 | uint32(d.buf[d.pos+2])<<8 | uint32(d.buf[d.pos+3])
	d.pos += 4
	return v, nil
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, ErrTruncated
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// readName decodes a possibly-compressed name starting at the decoder's
// current position, advancing pos past the name (or past the first pointer,
// per RFC 1035 §4.1.4 — pointer targets are followed but never advance the
// caller-visible cursor beyond the pointer itself).
func (d *decoder) readName() (string, error) {
	var labels []string
	pos := d.pos
	jumped := false
	seen := map[int]bool{}

	for {
		if pos >= len(d.buf) {
			return "", ErrTruncated
		}
		lead := d.buf[pos]

		if lead == 0 {
			pos++
			break
		}

		if lead&0xC0 == 0xC0 {
			if pos+1 >= len(d.buf) {
				return "", ErrTruncated
			}
			target := int(lead&0x3F)<<8 | int(d.buf[pos+1])
			if target >= pos || seen[target] {
				return "", ErrBadPointer
			}
			seen[target] = true
			if !jumped {
				d.pos = pos + 2
				jumped = true
			}
			pos = target
			continue
		}

		if lead&0xC0 != 0 {
			return "", ErrBadPointer
		}

		labelLen := int(lead)
		pos++
		if pos+labelLen > len(d.buf) {
			return "", ErrTruncated
		}
		labels = append(labels, string(d.buf[pos:pos+labelLen]))
		pos += labelLen
	}

	if !jumped {
		d.pos = pos
	}
	return strings.Join(labels, "."), nil
}

func (d *decoder) readHeader() (Header, error) {
	var h Header
	var err error
	if h.ID, err = d.readUint16(); err != nil {
		return h, err
	}
	flags, err := d.readUint16()
	if err != nil {
		return h, err
	}
	h.Response = flags&(1<<15) != 0
	h.Truncated = flags&(1<<9) != 0
	if h.QDCount, err = d.readUint16(); err != nil {
		return h, err
	}
	if h.ANCount, err = d.readUint16(); err != nil {
		return h, err
	}
	if h.NSCount, err = d.readUint16(); err != nil {
		return h, err
	}
	if h.ARCount, err = d.readUint16(); err != nil {
		return h, err
	}
	return h, nil
}

func (d *decoder) readQuestion() (Question, error) {
	var q Question
	name, err := d.readName()
	if err != nil {
		return q, err
	}
	q.Name = name
	t, err := d.readUint16()
	if err != nil {
		return q, err
	}
	q.Type = RecordType(t)
	class, err := d.readUint16()
	if err != nil {
		return q, err
	}
	q.UnicastResponse = class&classCacheFlushOrUnicastBit != 0
	q.Class = class &^ classCacheFlushOrUnicastBit
	return q, nil
}

func (d *decoder) readRecord() (Record, error) {
	var r Record
	name, err := d.readName()
	if err != nil {
		return r, err
	}
	r.Name = name

	t, err := d.readUint16()
	if err != nil {
		return r, err
	}
	r.Type = RecordType(t)

	class, err := d.readUint16()
	if err != nil {
		return r, err
	}
	r.CacheFlush = class&classCacheFlushOrUnicastBit != 0
	r.Class = class &^ classCacheFlushOrUnicastBit

	if r.TTL, err = d.readUint32(); err != nil {
		return r, err
	}

	rdlen, err := d.readUint16()
	if err != nil {
		return r, err
	}
	rdataEnd := d.pos + int(rdlen)
	if rdataEnd > len(d.buf) {
		return r, ErrTruncated
	}

	switch r.Type {
	case TypeA:
		ip, err := d.readBytes(4)
		if err != nil {
			return r, err
		}
		r.IP = append([]byte{}, ip...)
	case TypeAAAA:
		ip, err := d.readBytes(16)
		if err != nil {
			return r, err
		}
		r.IP = append([]byte{}, ip...)
	case TypePTR:
		target, err := d.readName()
		if err != nil {
			return r, err
		}
		r.PTRName = target
	case TypeSRV:
		if r.SRV.Priority, err = d.readUint16(); err != nil {
			return r, err
		}
		if r.SRV.Weight, err = d.readUint16(); err != nil {
			return r, err
		}
		if r.SRV.Port, err = d.readUint16(); err != nil {
			return r, err
		}
		target, err := d.readName()
		if err != nil {
			return r, err
		}
		r.SRV.Target = target
	case TypeTXT:
		for d.pos < rdataEnd {
			n := int(d.buf[d.pos])
			d.pos++
			kv, err := d.readBytes(n)
			if err != nil {
				return r, err
			}
			r.TXT = append(r.TXT, append([]byte{}, kv...))
		}
	default:
		// Unknown record type: skip the RDATA verbatim.
		if _, err := d.readBytes(rdataEnd - d.pos); err != nil {
			return r, err
		}
	}

	// A decoded name (e.g. SRV target, PTR target) may have followed a
	// compression pointer out of the RDATA bounds; resync to the declared
	// RDATA end rather than trust the name decoder's cursor.
	d.pos = rdataEnd
	return r, nil
}

// Decode parses a full DNS/mDNS message.
func Decode(buf []byte) (*Message, error) {
	d := &decoder{buf: buf}
	msg := &Message{}

	hdr, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	msg.Header = hdr

	for i := uint16(0); i < hdr.QDCount; i++ {
		q, err := d.readQuestion()
		if err != nil {
			return nil, err
		}
		msg.Questions = append(msg.Questions, q)
	}
	for i := uint16(0); i < hdr.ANCount; i++ {
		r, err := d.readRecord()
		if err != nil {
			return nil, err
		}
		msg.Answers = append(msg.Answers, r)
	}
	for i := uint16(0); i < hdr.NSCount; i++ {
		r, err := d.readRecord()
		if err != nil {
			return nil, err
		}
		msg.NameServers = append(msg.NameServers, r)
	}
	for i := uint16(0); i < hdr.ARCount; i++ {
		r, err := d.readRecord()
		if err != nil {
			return nil, err
		}
		msg.AdditionalRecords = append(msg.AdditionalRecords, r)
	}

	return msg, nil
}
