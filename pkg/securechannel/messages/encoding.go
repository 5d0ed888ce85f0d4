// Package messages provides shared field encoding helpers for the secure
// channel protocol messages (PASE, CASE, status reports).
package messages

import "github.com/quietridge/matter/pkg/tlv"

// putFixedUint16 writes v as a TLV UInt16, enforcing the 2-byte width the
// spec mandates for the session/passcode ID fields regardless of value.
func putFixedUint16(w *tlv.Writer, tag tlv.Tag, v uint16) error {
	return w.PutUintWithWidth(tag, uint64(v), 2)
}

// PutSessionID writes sessionID as a 2-byte UInt16 (Spec Section 4.11.2).
func PutSessionID(w *tlv.Writer, tag tlv.Tag, sessionID uint16) error {
	return putFixedUint16(w, tag, sessionID)
}

// PutPasscodeID writes passcodeID as a 2-byte UInt16 (Spec Section 5.1.6.3).
func PutPasscodeID(w *tlv.Writer, tag tlv.Tag, passcodeID uint16) error {
	return putFixedUint16(w, tag, passcodeID)
}
