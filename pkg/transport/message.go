package transport

// ReceivedMessage is one inbound datagram or stream frame: the raw wire
// bytes (Matter message header, payload, and MIC if encrypted — parsing
// is the caller's job) plus where it came from.
type ReceivedMessage struct {
	Data     []byte
	PeerAddr PeerAddress
}

// MessageHandler processes one ReceivedMessage. It runs on the
// transport's read loop, so a slow handler should hand off to a goroutine
// rather than block it.
type MessageHandler func(msg *ReceivedMessage)
