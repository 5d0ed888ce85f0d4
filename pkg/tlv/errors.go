package tlv

import "errors"

// Reader-state errors: the caller called a method that doesn't make sense
// given what has or hasn't been read yet.
var (
	ErrNoElement        = errors.New("tlv: no current element")
	ErrValueAlreadyRead = errors.New("tlv: value already read")
	ErrNotInContainer   = errors.New("tlv: not in container")
)

// Wire-decoding errors: the input bytes don't form valid TLV.
var (
	ErrUnexpectedEOF            = errors.New("tlv: unexpected end of input")
	ErrInvalidElementType       = errors.New("tlv: invalid element type")
	ErrInvalidTagControl        = errors.New("tlv: invalid tag control")
	ErrUnexpectedEndOfContainer = errors.New("tlv: unexpected end of container")
	ErrContainerNotClosed       = errors.New("tlv: container not closed")
	ErrInvalidUTF8              = errors.New("tlv: invalid UTF-8 string")
)

// Tag-placement errors: the tag control doesn't match the context it
// appears in.
var (
	ErrAnonymousTagInStruct    = errors.New("tlv: anonymous tag not allowed in structure")
	ErrTaggedElementInArray    = errors.New("tlv: tagged element not allowed in array")
	ErrContextTagOutsideStruct = errors.New("tlv: context tag only allowed in structure")
)

// ErrTypeMismatch is returned when a value is read as a type it isn't.
var ErrTypeMismatch = errors.New("tlv: type mismatch")

// ErrOverflow is returned when a decoded integer doesn't fit the target type.
var ErrOverflow = errors.New("tlv: value overflow")
