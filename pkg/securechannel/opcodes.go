// Package securechannel implements the Matter Secure Channel Protocol.
//
// This package provides constants and types for secure channel operations
// including PASE (Passcode-Authenticated Session Establishment) and
// CASE (Certificate Authenticated Session Establishment).
//
// See Matter Specification Section 4.11.
package securechannel

// ProtocolID is the Secure Channel protocol identifier.
const ProtocolID uint16 = 0x0000

// Opcode represents a Secure Channel protocol message type.
type Opcode uint8

// Secure Channel Protocol Opcodes (Table 18).
const (
	// Message Counter Synchronization
	OpcodeMsgCounterSyncReq  Opcode = 0x00
	OpcodeMsgCounterSyncResp Opcode = 0x01

	// Reliable Messaging Protocol
	OpcodeStandaloneAck Opcode = 0x10

	// PASE (Password-based session establishment)
	OpcodePBKDFParamRequest  Opcode = 0x20
	OpcodePBKDFParamResponse Opcode = 0x21
	OpcodePASEPake1          Opcode = 0x22
	OpcodePASEPake2          Opcode = 0x23
	OpcodePASEPake3          Opcode = 0x24

	// CASE (Certificate-based session establishment)
	OpcodeCASESigma1       Opcode = 0x30
	OpcodeCASESigma2       Opcode = 0x31
	OpcodeCASESigma3       Opcode = 0x32
	OpcodeCASESigma2Resume Opcode = 0x33

	// Status and ICD
	OpcodeStatusReport Opcode = 0x40
	OpcodeICDCheckIn   Opcode = 0x50
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpcodeMsgCounterSyncReq:
		return "MsgCounterSyncReq"
	case OpcodeMsgCounterSyncResp:
		return "MsgCounterSyncResp"
	case OpcodeStandaloneAck:
		return "StandaloneAck"
	case OpcodePBKDFParamRequest:
		return "PBKDFParamRequest"
	case OpcodePBKDFParamResponse:
		return "PBKDFParamResponse"
	case OpcodePASEPake1:
		return "PASE_Pake1"
	case OpcodePASEPake2:
		return "PASE_Pake2"
	case OpcodePASEPake3:
		return "PASE_Pake3"
	case OpcodeCASESigma1:
		return "CASE_Sigma1"
	case OpcodeCASESigma2:
		return "CASE_Sigma2"
	case OpcodeCASESigma3:
		return "CASE_Sigma3"
	case OpcodeCASESigma2Resume:
		return "CASE_Sigma2Resume"
	case OpcodeStatusReport:
		return "StatusReport"
	case OpcodeICDCheckIn:
		return "ICD_CheckIn"
	default:
		return "Unknown"
	}
}
