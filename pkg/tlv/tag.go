package tlv

import (
	"encoding/binary"
	"io"
)

// TagControl is the tag form encoded in the upper 3 bits of the control
// octet (Spec A.7.2).
type TagControl int

const (
	TagControlAnonymous        TagControl = 0 // 000 - No tag, 0 octets
	TagControlContext          TagControl = 1 // 001 - Context-specific, 1 octet
	TagControlCommonProfile2   TagControl = 2 // 010 - Common Profile, 2 octets (tag < 65536)
	TagControlCommonProfile4   TagControl = 3 // 011 - Common Profile, 4 octets (tag >= 65536)
	TagControlImplicitProfile2 TagControl = 4 // 100 - Implicit Profile, 2 octets (tag < 65536)
	TagControlImplicitProfile4 TagControl = 5 // 101 - Implicit Profile, 4 octets (tag >= 65536)
	TagControlFullyQualified6  TagControl = 6 // 110 - Fully Qualified, 6 octets (tag < 65536)
	TagControlFullyQualified8  TagControl = 7 // 111 - Fully Qualified, 8 octets (tag >= 65536)
)

var tagControlNames = [...]string{
	TagControlAnonymous:        "Anonymous",
	TagControlContext:          "Context",
	TagControlCommonProfile2:   "CommonProfile2",
	TagControlCommonProfile4:   "CommonProfile4",
	TagControlImplicitProfile2: "ImplicitProfile2",
	TagControlImplicitProfile4: "ImplicitProfile4",
	TagControlFullyQualified6:  "FullyQualified6",
	TagControlFullyQualified8:  "FullyQualified8",
}

// String returns the string representation of the tag control.
func (tc TagControl) String() string {
	if int(tc) >= 0 && int(tc) < len(tagControlNames) {
		return tagControlNames[tc]
	}
	return "Unknown"
}

var tagControlSizes = [...]int{
	TagControlAnonymous:        0,
	TagControlContext:          1,
	TagControlCommonProfile2:   2,
	TagControlCommonProfile4:   4,
	TagControlImplicitProfile2: 2,
	TagControlImplicitProfile4: 4,
	TagControlFullyQualified6:  6,
	TagControlFullyQualified8:  8,
}

// Size returns the size in bytes of the tag field for this control type.
func (tc TagControl) Size() int {
	if int(tc) >= 0 && int(tc) < len(tagControlSizes) {
		return tagControlSizes[tc]
	}
	return 0
}

// Tag is a TLV tag (Spec A.2): anonymous, context-specific, or
// profile-specific (common, implicit, or fully qualified).
type Tag struct {
	control       TagControl
	vendorID      uint16 // only for fully-qualified tags
	profileNumber uint16 // only for fully-qualified tags
	tagNumber     uint32 // 8-bit for context, up to 32-bit for others
}

// Anonymous returns a new anonymous tag.
func Anonymous() Tag {
	return Tag{control: TagControlAnonymous}
}

// ContextTag returns a new context-specific tag with the given tag number (0-255).
func ContextTag(tagNum uint8) Tag {
	return Tag{control: TagControlContext, tagNumber: uint32(tagNum)}
}

// CommonProfileTag returns a new common profile tag with the given tag number.
func CommonProfileTag(tagNum uint32) Tag {
	ctrl := TagControlCommonProfile2
	if tagNum >= 65536 {
		ctrl = TagControlCommonProfile4
	}
	return Tag{control: ctrl, tagNumber: tagNum}
}

// ImplicitProfileTag returns a new implicit profile tag with the given tag number.
func ImplicitProfileTag(tagNum uint32) Tag {
	ctrl := TagControlImplicitProfile2
	if tagNum >= 65536 {
		ctrl = TagControlImplicitProfile4
	}
	return Tag{control: ctrl, tagNumber: tagNum}
}

// FullyQualifiedTag returns a new fully-qualified profile-specific tag.
func FullyQualifiedTag(vendorID, profileNum uint16, tagNum uint32) Tag {
	ctrl := TagControlFullyQualified6
	if tagNum >= 65536 {
		ctrl = TagControlFullyQualified8
	}
	return Tag{control: ctrl, vendorID: vendorID, profileNumber: profileNum, tagNumber: tagNum}
}

// Control returns the tag control form.
func (t Tag) Control() TagControl {
	return t.control
}

// IsAnonymous returns true if this is an anonymous tag.
func (t Tag) IsAnonymous() bool {
	return t.control == TagControlAnonymous
}

// IsContext returns true if this is a context-specific tag.
func (t Tag) IsContext() bool {
	return t.control == TagControlContext
}

// IsProfileSpecific returns true if this is a profile-specific tag (common
// profile, implicit profile, or fully qualified).
func (t Tag) IsProfileSpecific() bool {
	return t.control >= TagControlCommonProfile2
}

// VendorID returns the vendor ID for fully-qualified tags, or 0 otherwise.
func (t Tag) VendorID() uint16 {
	return t.vendorID
}

// ProfileNumber returns the profile number for fully-qualified tags, or 0 otherwise.
func (t Tag) ProfileNumber() uint16 {
	return t.profileNumber
}

// TagNumber returns the tag number: 0-255 for context-specific tags, up to
// 32 bits for profile-specific tags.
func (t Tag) TagNumber() uint32 {
	return t.tagNumber
}

// Size returns the encoded size in bytes of this tag.
func (t Tag) Size() int {
	return t.control.Size()
}

// encode serializes the tag body (everything after the control octet) in
// little-endian order, per Spec A.8. Returns nil for an anonymous tag.
func (t Tag) encode() []byte {
	switch t.control {
	case TagControlContext:
		return []byte{byte(t.tagNumber)}

	case TagControlCommonProfile2, TagControlImplicitProfile2:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(t.tagNumber))
		return buf

	case TagControlCommonProfile4, TagControlImplicitProfile4:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, t.tagNumber)
		return buf

	case TagControlFullyQualified6:
		buf := make([]byte, 6)
		binary.LittleEndian.PutUint16(buf[0:2], t.vendorID)
		binary.LittleEndian.PutUint16(buf[2:4], t.profileNumber)
		binary.LittleEndian.PutUint16(buf[4:6], uint16(t.tagNumber))
		return buf

	case TagControlFullyQualified8:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint16(buf[0:2], t.vendorID)
		binary.LittleEndian.PutUint16(buf[2:4], t.profileNumber)
		binary.LittleEndian.PutUint32(buf[4:8], t.tagNumber)
		return buf

	default: // TagControlAnonymous and anything unrecognized
		return nil
	}
}

// WriteTo writes the tag to w in little-endian order (Spec A.8).
func (t Tag) WriteTo(w io.Writer) (int64, error) {
	buf := t.encode()
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadTag reads a tag from r given its already-parsed tag control.
func ReadTag(r io.Reader, ctrl TagControl) (Tag, error) {
	tag := Tag{control: ctrl}
	var buf [8]byte

	switch ctrl {
	case TagControlAnonymous:
		return tag, nil

	case TagControlContext:
		if _, err := io.ReadFull(r, buf[:1]); err != nil {
			return tag, err
		}
		tag.tagNumber = uint32(buf[0])

	case TagControlCommonProfile2, TagControlImplicitProfile2:
		if _, err := io.ReadFull(r, buf[:2]); err != nil {
			return tag, err
		}
		tag.tagNumber = uint32(binary.LittleEndian.Uint16(buf[:2]))

	case TagControlCommonProfile4, TagControlImplicitProfile4:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return tag, err
		}
		tag.tagNumber = binary.LittleEndian.Uint32(buf[:4])

	case TagControlFullyQualified6:
		if _, err := io.ReadFull(r, buf[:6]); err != nil {
			return tag, err
		}
		tag.vendorID = binary.LittleEndian.Uint16(buf[0:2])
		tag.profileNumber = binary.LittleEndian.Uint16(buf[2:4])
		tag.tagNumber = uint32(binary.LittleEndian.Uint16(buf[4:6]))

	case TagControlFullyQualified8:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return tag, err
		}
		tag.vendorID = binary.LittleEndian.Uint16(buf[0:2])
		tag.profileNumber = binary.LittleEndian.Uint16(buf[2:4])
		tag.tagNumber = binary.LittleEndian.Uint32(buf[4:8])
	}

	return tag, nil
}
