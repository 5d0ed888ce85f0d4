package message

import (
	"encoding/binary"
	"io"
)

// Frame is a complete, decrypted Matter message frame: Header, Protocol,
// and the application Payload that follows the protocol header.
type Frame struct {
	Header   MessageHeader
	Protocol ProtocolHeader
	Payload  []byte
}

// EncodeUnsecured encodes the frame for an unsecured session (PASE/CASE
// handshake), with no encryption applied.
func (f *Frame) EncodeUnsecured() []byte {
	buf := make([]byte, f.Header.Size()+f.Protocol.Size()+len(f.Payload))
	offset := f.Header.EncodeTo(buf)
	offset += f.Protocol.EncodeTo(buf[offset:])
	copy(buf[offset:], f.Payload)
	return buf
}

// DecodeUnsecured decodes an unsecured message frame, returning an error if
// it's malformed.
func DecodeUnsecured(data []byte) (*Frame, error) {
	f := &Frame{}

	headerLen, err := f.Header.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(data) < headerLen {
		return nil, ErrMessageTooShort
	}

	protocolLen, err := f.Protocol.Decode(data[headerLen:])
	if err != nil {
		return nil, err
	}

	appPayloadStart := headerLen + protocolLen
	if len(data) > appPayloadStart {
		f.Payload = make([]byte, len(data)-appPayloadStart)
		copy(f.Payload, data[appPayloadStart:])
	}

	return f, nil
}

// RawFrame is a message frame whose payload is still encrypted: a
// MessageHeader plus the encrypted Protocol-header-and-payload blob and its
// MIC. Decrypt via Codec to get a Frame.
type RawFrame struct {
	Header           MessageHeader
	EncryptedPayload []byte
	MIC              []byte // 16 bytes
}

// EncodeRaw encodes the raw frame to wire format.
func (r *RawFrame) EncodeRaw() []byte {
	buf := make([]byte, r.Header.Size()+len(r.EncryptedPayload)+len(r.MIC))
	offset := r.Header.EncodeTo(buf)
	offset += copy(buf[offset:], r.EncryptedPayload)
	copy(buf[offset:], r.MIC)
	return buf
}

// DecodeRaw decodes a raw message frame from wire data. The payload is left
// encrypted.
func DecodeRaw(data []byte) (*RawFrame, error) {
	r := &RawFrame{}

	headerLen, err := r.Header.Decode(data)
	if err != nil {
		return nil, err
	}

	if !r.Header.IsSecure() {
		if len(data) > headerLen {
			r.EncryptedPayload = make([]byte, len(data)-headerLen)
			copy(r.EncryptedPayload, data[headerLen:])
		}
		return r, nil
	}

	if len(data) < headerLen+MICSize {
		return nil, ErrMessageTooShort
	}
	payloadEnd := len(data) - MICSize
	r.EncryptedPayload = make([]byte, payloadEnd-headerLen)
	copy(r.EncryptedPayload, data[headerLen:payloadEnd])
	r.MIC = make([]byte, MICSize)
	copy(r.MIC, data[payloadEnd:])

	return r, nil
}

// TotalSize returns the total wire size of the raw frame.
func (r *RawFrame) TotalSize() int {
	size := r.Header.Size() + len(r.EncryptedPayload)
	if r.Header.IsSecure() {
		size += MICSize
	}
	return size
}

// StreamWriter adds TCP length-prefix framing (Section 4.5.1) to an io.Writer.
type StreamWriter struct {
	w io.Writer
}

func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// Write writes frame with a 4-byte little-endian length prefix.
func (sw *StreamWriter) Write(frame []byte) (int, error) {
	var lenBuf [TCPLengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frame)))

	n, err := sw.w.Write(lenBuf[:])
	if err != nil {
		return n, err
	}
	m, err := sw.w.Write(frame)
	return n + m, err
}

// WriteFrame encodes frame and writes it with a length prefix.
func (sw *StreamWriter) WriteFrame(frame *RawFrame) error {
	_, err := sw.Write(frame.EncodeRaw())
	return err
}

// StreamReader reads TCP length-prefixed frames from an io.Reader.
type StreamReader struct {
	r io.Reader
}

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// Read reads one length-prefixed message and returns it without the prefix.
func (sr *StreamReader) Read() ([]byte, error) {
	var lenBuf [TCPLengthPrefixSize]byte
	if _, err := io.ReadFull(sr.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, ErrStreamReadFailed
	}

	frameLen := binary.LittleEndian.Uint32(lenBuf[:])
	if frameLen == 0 {
		return nil, ErrInvalidLengthPrefix
	}
	if frameLen > MaxUDPMessageSize*2 { // TCP frames may run larger than one UDP MTU
		return nil, ErrMessageTooLong
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(sr.r, frame); err != nil {
		return nil, ErrStreamReadFailed
	}
	return frame, nil
}

// ReadFrame reads and decodes a raw frame from the stream.
func (sr *StreamReader) ReadFrame() (*RawFrame, error) {
	data, err := sr.Read()
	if err != nil {
		return nil, err
	}
	return DecodeRaw(data)
}

// EncodeWithLengthPrefix adds a 4-byte TCP length prefix to frame.
func EncodeWithLengthPrefix(frame []byte) []byte {
	buf := make([]byte, TCPLengthPrefixSize+len(frame))
	binary.LittleEndian.PutUint32(buf[:TCPLengthPrefixSize], uint32(len(frame)))
	copy(buf[TCPLengthPrefixSize:], frame)
	return buf
}

// ValidateSize checks that data fits within the UDP MTU limit.
func ValidateSize(data []byte) error {
	if len(data) > MaxUDPMessageSize {
		return ErrMessageTooLong
	}
	return nil
}
