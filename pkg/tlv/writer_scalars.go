package tlv

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// PutInt writes a signed integer with the given tag.
// The writer chooses the minimum width needed to encode the value.
func (w *Writer) PutInt(tag Tag, v int64) error {
	var elemType ElementType
	var buf [8]byte

	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		elemType = ElementTypeInt8
		buf[0] = byte(v)
		return w.writeFixedValue(elemType, tag, buf[:1])
	case v >= math.MinInt16 && v <= math.MaxInt16:
		elemType = ElementTypeInt16
		binary.LittleEndian.PutUint16(buf[:2], uint16(v))
		return w.writeFixedValue(elemType, tag, buf[:2])
	case v >= math.MinInt32 && v <= math.MaxInt32:
		elemType = ElementTypeInt32
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		return w.writeFixedValue(elemType, tag, buf[:4])
	default:
		elemType = ElementTypeInt64
		binary.LittleEndian.PutUint64(buf[:8], uint64(v))
		return w.writeFixedValue(elemType, tag, buf[:8])
	}
}

// PutIntWithWidth writes a signed integer with a specific width (1, 2, 4, or 8 bytes).
// This is useful when you need to match a specific encoding.
func (w *Writer) PutIntWithWidth(tag Tag, v int64, width int) error {
	var elemType ElementType
	var buf [8]byte

	switch width {
	case 1:
		elemType = ElementTypeInt8
		buf[0] = byte(v)
		return w.writeFixedValue(elemType, tag, buf[:1])
	case 2:
		elemType = ElementTypeInt16
		binary.LittleEndian.PutUint16(buf[:2], uint16(v))
		return w.writeFixedValue(elemType, tag, buf[:2])
	case 4:
		elemType = ElementTypeInt32
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		return w.writeFixedValue(elemType, tag, buf[:4])
	case 8:
		elemType = ElementTypeInt64
		binary.LittleEndian.PutUint64(buf[:8], uint64(v))
		return w.writeFixedValue(elemType, tag, buf[:8])
	default:
		return ErrInvalidElementType
	}
}

// PutUint writes an unsigned integer with the given tag.
// The writer chooses the minimum width needed to encode the value.
func (w *Writer) PutUint(tag Tag, v uint64) error {
	var elemType ElementType
	var buf [8]byte

	switch {
	case v <= math.MaxUint8:
		elemType = ElementTypeUInt8
		buf[0] = byte(v)
		return w.writeFixedValue(elemType, tag, buf[:1])
	case v <= math.MaxUint16:
		elemType = ElementTypeUInt16
		binary.LittleEndian.PutUint16(buf[:2], uint16(v))
		return w.writeFixedValue(elemType, tag, buf[:2])
	case v <= math.MaxUint32:
		elemType = ElementTypeUInt32
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		return w.writeFixedValue(elemType, tag, buf[:4])
	default:
		elemType = ElementTypeUInt64
		binary.LittleEndian.PutUint64(buf[:8], v)
		return w.writeFixedValue(elemType, tag, buf[:8])
	}
}

// PutUintWithWidth writes an unsigned integer with a specific width (1, 2, 4, or 8 bytes).
func (w *Writer) PutUintWithWidth(tag Tag, v uint64, width int) error {
	var elemType ElementType
	var buf [8]byte

	switch width {
	case 1:
		elemType = ElementTypeUInt8
		buf[0] = byte(v)
		return w.writeFixedValue(elemType, tag, buf[:1])
	case 2:
		elemType = ElementTypeUInt16
		binary.LittleEndian.PutUint16(buf[:2], uint16(v))
		return w.writeFixedValue(elemType, tag, buf[:2])
	case 4:
		elemType = ElementTypeUInt32
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		return w.writeFixedValue(elemType, tag, buf[:4])
	case 8:
		elemType = ElementTypeUInt64
		binary.LittleEndian.PutUint64(buf[:8], v)
		return w.writeFixedValue(elemType, tag, buf[:8])
	default:
		return ErrInvalidElementType
	}
}

// PutBool writes a boolean with the given tag.
func (w *Writer) PutBool(tag Tag, v bool) error {
	elemType := ElementTypeFalse
	if v {
		elemType = ElementTypeTrue
	}
	return w.writeControlAndTag(elemType, tag)
}

// PutFloat32 writes a 32-bit floating point number with the given tag.
func (w *Writer) PutFloat32(tag Tag, v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return w.writeFixedValue(ElementTypeFloat32, tag, buf[:])
}

// PutFloat64 writes a 64-bit floating point number with the given tag.
func (w *Writer) PutFloat64(tag Tag, v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return w.writeFixedValue(ElementTypeFloat64, tag, buf[:])
}

// PutString writes a UTF-8 string with the given tag.
// Returns ErrInvalidUTF8 if the string is not valid UTF-8.
func (w *Writer) PutString(tag Tag, v string) error {
	if !utf8.ValidString(v) {
		return ErrInvalidUTF8
	}
	return w.writeStringValue(true, tag, []byte(v))
}

// PutBytes writes an octet string (byte slice) with the given tag.
func (w *Writer) PutBytes(tag Tag, v []byte) error {
	return w.writeStringValue(false, tag, v)
}

// PutNull writes a null value with the given tag.
func (w *Writer) PutNull(tag Tag) error {
	return w.writeControlAndTag(ElementTypeNull, tag)
}
