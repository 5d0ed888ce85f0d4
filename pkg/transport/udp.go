package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/quietridge/matter/pkg/message"
)

// DefaultPort is the default Matter port (Spec Section 2.5.6.3).
const DefaultPort = 5540

// UDPConfig configures a UDP transport.
type UDPConfig struct {
	// Conn is a pre-existing PacketConn to use. If nil, NewUDP listens on
	// ListenAddr (or an ephemeral port if that's empty too).
	Conn net.PacketConn

	ListenAddr string

	// MessageHandler receives every inbound datagram. Required.
	MessageHandler MessageHandler

	// LoggerFactory creates loggers for transport events. Nil disables
	// logging.
	LoggerFactory logging.LoggerFactory
}

// UDP wraps a net.PacketConn with a background read loop that dispatches
// each datagram to a MessageHandler.
type UDP struct {
	conn    net.PacketConn
	handler MessageHandler
	log     logging.LeveledLogger

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewUDP constructs a UDP transport per config.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}

	t := &UDP{
		conn:    config.Conn,
		handler: config.MessageHandler,
		closeCh: make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("transport-udp")
	}

	if t.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		t.conn = conn
	}

	return t, nil
}

// Start launches the background read loop. Received datagrams are handed
// to the configured MessageHandler.
func (t *UDP) Start() error {
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return ErrClosed
	case t.started:
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Infof("starting UDP transport on %s", t.conn.LocalAddr())
	}

	t.wg.Add(1)
	go t.readLoop()
	return nil
}

// Stop signals the read loop to exit, closes the socket, and waits for
// the loop to return.
func (t *UDP) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Info("stopping UDP transport")
	}

	t.closeOnce.Do(func() { close(t.closeCh) })
	t.conn.SetReadDeadline(time.Now())
	t.conn.Close()
	t.wg.Wait()
	return nil
}

// Send writes data to addr.
func (t *UDP) Send(data []byte, addr net.Addr) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if addr == nil {
		return ErrInvalidAddress
	}
	if len(data) > message.MaxUDPMessageSize {
		return ErrMessageTooLarge
	}

	if t.log != nil {
		t.log.Debugf("sending %d bytes to %v", len(data), addr)
	}
	if _, err := t.conn.WriteTo(data, addr); err != nil {
		if t.log != nil {
			t.log.Warnf("send failed: %v", err)
		}
		return err
	}
	return nil
}

// LocalAddr returns the socket's bound address.
func (t *UDP) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// stopping reports whether Stop has signaled the read loop to exit.
func (t *UDP) stopping() bool {
	select {
	case <-t.closeCh:
		return true
	default:
		return false
	}
}

func (t *UDP) readLoop() {
	defer t.wg.Done()

	buf := make([]byte, message.MaxUDPMessageSize)
	for !t.stopping() {
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			if t.stopping() {
				return
			}
			if t.log != nil {
				t.log.Warnf("UDP read error: %v", err)
			}
			continue
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if t.log != nil {
			t.log.Debugf("received %d bytes from %v", n, addr)
		}

		t.handler(&ReceivedMessage{Data: data, PeerAddr: NewUDPPeerAddress(addr)})
	}
}
