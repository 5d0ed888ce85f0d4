package securechannel

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// StatusReportMinSize is the encoded size of a StatusReport carrying no
// ProtocolData: GeneralCode(2) + ProtocolID(4) + ProtocolCode(2).
const StatusReportMinSize = 8

var ErrStatusReportTooShort = errors.New("securechannel: status report too short")

// StatusReport is the payload of a StatusReport message (Appendix D).
type StatusReport struct {
	GeneralCode  GeneralCode
	ProtocolID   uint32 // VendorID (upper 16) | ProtocolID (lower 16)
	ProtocolCode uint16
	ProtocolData []byte
}

func NewStatusReport(general GeneralCode, protocolID uint32, code uint16) *StatusReport {
	return &StatusReport{GeneralCode: general, ProtocolID: protocolID, ProtocolCode: code}
}

// NewSecureChannelStatusReport builds a StatusReport for the Secure
// Channel protocol (VendorID 0, ProtocolID 0).
func NewSecureChannelStatusReport(general GeneralCode, code ProtocolCode) *StatusReport {
	return NewStatusReport(general, uint32(ProtocolID), uint16(code))
}

func Success() *StatusReport {
	return NewSecureChannelStatusReport(GeneralCodeSuccess, ProtocolCodeSuccess)
}

func InvalidParam() *StatusReport {
	return NewSecureChannelStatusReport(GeneralCodeFailure, ProtocolCodeInvalidParam)
}

// Busy builds a busy StatusReport carrying the minimum retry wait time.
func Busy(waitTimeMs uint16) *StatusReport {
	sr := NewSecureChannelStatusReport(GeneralCodeBusy, ProtocolCodeBusy)
	sr.ProtocolData = make([]byte, 2)
	binary.LittleEndian.PutUint16(sr.ProtocolData, waitTimeMs)
	return sr
}

func CloseSession() *StatusReport {
	return NewSecureChannelStatusReport(GeneralCodeSuccess, ProtocolCodeCloseSession)
}

func NoSharedTrustRoots() *StatusReport {
	return NewSecureChannelStatusReport(GeneralCodeFailure, ProtocolCodeNoSharedRoot)
}

func RequiredCATMismatch() *StatusReport {
	return NewSecureChannelStatusReport(GeneralCodeFailure, ProtocolCode(0x0005))
}

func SessionNotFound() *StatusReport {
	return NewSecureChannelStatusReport(GeneralCodeFailure, ProtocolCodeSessionNotFound)
}

// Encode serializes the StatusReport.
func (s *StatusReport) Encode() []byte {
	buf := make([]byte, StatusReportMinSize+len(s.ProtocolData))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(s.GeneralCode))
	binary.LittleEndian.PutUint32(buf[2:6], s.ProtocolID)
	binary.LittleEndian.PutUint16(buf[6:8], s.ProtocolCode)
	copy(buf[8:], s.ProtocolData)
	return buf
}

// DecodeStatusReport parses a StatusReport.
func DecodeStatusReport(data []byte) (*StatusReport, error) {
	if len(data) < StatusReportMinSize {
		return nil, ErrStatusReportTooShort
	}

	s := &StatusReport{
		GeneralCode:  GeneralCode(binary.LittleEndian.Uint16(data[0:2])),
		ProtocolID:   binary.LittleEndian.Uint32(data[2:6]),
		ProtocolCode: binary.LittleEndian.Uint16(data[6:8]),
	}
	if rest := data[StatusReportMinSize:]; len(rest) > 0 {
		s.ProtocolData = append([]byte(nil), rest...)
	}
	return s, nil
}

func (s *StatusReport) IsSuccess() bool {
	return s.GeneralCode == GeneralCodeSuccess
}

func (s *StatusReport) IsBusy() bool {
	return s.GeneralCode == GeneralCodeBusy &&
		s.ProtocolID == uint32(ProtocolID) &&
		s.ProtocolCode == uint16(ProtocolCodeBusy)
}

// BusyWaitTime returns the minimum retry wait time in milliseconds, or 0
// if this isn't a busy status or carries no protocol data.
func (s *StatusReport) BusyWaitTime() uint16 {
	if !s.IsBusy() || len(s.ProtocolData) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(s.ProtocolData)
}

func (s *StatusReport) IsSecureChannel() bool {
	return s.ProtocolID == uint32(ProtocolID)
}

// SecureChannelCode interprets ProtocolCode as a secure channel code.
// Only meaningful when IsSecureChannel is true.
func (s *StatusReport) SecureChannelCode() ProtocolCode {
	return ProtocolCode(s.ProtocolCode)
}

func (s *StatusReport) String() string {
	if s.IsSecureChannel() {
		return fmt.Sprintf("StatusReport{General: %s, Protocol: SecureChannel, Code: %s}",
			s.GeneralCode, ProtocolCode(s.ProtocolCode))
	}
	return fmt.Sprintf("StatusReport{General: %s, ProtocolID: 0x%08X, Code: 0x%04X}",
		s.GeneralCode, s.ProtocolID, s.ProtocolCode)
}

func (s *StatusReport) Error() string {
	return s.String()
}
