package tlv

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer encodes TLV elements to an io.Writer.
type Writer struct {
	w              io.Writer
	containerStack []ElementType // Track open containers for validation
}

// NewWriter creates a new TLV Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// writeControlAndTag writes the control octet and tag.
func (w *Writer) writeControlAndTag(elemType ElementType, tag Tag) error {
	ctrl := BuildControlOctet(elemType, tag.Control())
	if _, err := w.w.Write([]byte{ctrl}); err != nil {
		return err
	}
	_, err := tag.WriteTo(w.w)
	return err
}

// StartStructure starts a structure container with the given tag.
func (w *Writer) StartStructure(tag Tag) error {
	if err := w.writeControlAndTag(ElementTypeStruct, tag); err != nil {
		return err
	}
	w.containerStack = append(w.containerStack, ElementTypeStruct)
	return nil
}

// StartArray starts an array container with the given tag.
func (w *Writer) StartArray(tag Tag) error {
	if err := w.writeControlAndTag(ElementTypeArray, tag); err != nil {
		return err
	}
	w.containerStack = append(w.containerStack, ElementTypeArray)
	return nil
}

// StartList starts a list container with the given tag.
func (w *Writer) StartList(tag Tag) error {
	if err := w.writeControlAndTag(ElementTypeList, tag); err != nil {
		return err
	}
	w.containerStack = append(w.containerStack, ElementTypeList)
	return nil
}

// EndContainer ends the current container.
func (w *Writer) EndContainer() error {
	if len(w.containerStack) == 0 {
		return ErrNotInContainer
	}
	w.containerStack = w.containerStack[:len(w.containerStack)-1]

	// End-of-container always has anonymous tag (tag control = 0)
	_, err := w.w.Write([]byte{byte(ElementTypeEnd)})
	return err
}

// ContainerDepth returns the current container nesting depth.
func (w *Writer) ContainerDepth() int {
	return len(w.containerStack)
}

// writeFixedValue writes a control byte, tag, and fixed-size value.
func (w *Writer) writeFixedValue(elemType ElementType, tag Tag, value []byte) error {
	if err := w.writeControlAndTag(elemType, tag); err != nil {
		return err
	}
	_, err := w.w.Write(value)
	return err
}

// writeStringValue writes a string (UTF-8 or octet) with length prefix.
func (w *Writer) writeStringValue(isUTF8 bool, tag Tag, data []byte) error {
	length := uint64(len(data))

	var elemType ElementType
	var lenBuf [8]byte
	var lenSize int

	// Choose the minimum length field size needed
	switch {
	case length <= math.MaxUint8:
		lenSize = 1
		if isUTF8 {
			elemType = ElementTypeUTF8_1
		} else {
			elemType = ElementTypeBytes1
		}
		lenBuf[0] = byte(length)
	case length <= math.MaxUint16:
		lenSize = 2
		if isUTF8 {
			elemType = ElementTypeUTF8_2
		} else {
			elemType = ElementTypeBytes2
		}
		binary.LittleEndian.PutUint16(lenBuf[:2], uint16(length))
	case length <= math.MaxUint32:
		lenSize = 4
		if isUTF8 {
			elemType = ElementTypeUTF8_4
		} else {
			elemType = ElementTypeBytes4
		}
		binary.LittleEndian.PutUint32(lenBuf[:4], uint32(length))
	default:
		lenSize = 8
		if isUTF8 {
			elemType = ElementTypeUTF8_8
		} else {
			elemType = ElementTypeBytes8
		}
		binary.LittleEndian.PutUint64(lenBuf[:8], length)
	}

	if err := w.writeControlAndTag(elemType, tag); err != nil {
		return err
	}
	if _, err := w.w.Write(lenBuf[:lenSize]); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}
