package dnscodec

import "errors"

var (
	// ErrNameTooLong is returned when an encoded name would exceed MaxNameLength.
	ErrNameTooLong = errors.New("dnscodec: name exceeds 255 octets")

	// ErrLabelTooLong is returned when a single label exceeds MaxLabelLength.
	ErrLabelTooLong = errors.New("dnscodec: label exceeds 63 octets")

	// ErrTruncated is returned when a message ends before a field it
	// declares is fully present.
	ErrTruncated = errors.New("dnscodec: message truncated")

	// ErrBadPointer is returned when a compression pointer targets an
	// offset past the current position or past the buffer.
	ErrBadPointer = errors.New("dnscodec: invalid compression pointer")

	// ErrUnsupportedType is returned when encoding a record of a type this
	// codec does not know how to serialize (ANY is query-only).
	ErrUnsupportedType = errors.New("dnscodec: unsupported record type for encoding")
)
