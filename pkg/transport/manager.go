package transport

import (
	"fmt"
	"net"
	"sync"
)

// endpoint is the subset of UDP/TCP that Manager drives generically for
// startup, shutdown, and address reporting.
type endpoint interface {
	Start() error
	Stop() error
	LocalAddr() net.Addr
}

// Manager multiplexes UDP and TCP transports behind a single Send/receive
// surface, dispatching every inbound message to one MessageHandler
// regardless of which transport carried it.
type ManagerConfig struct {
	// Port is the port to listen on (default: 5540).
	Port int

	UDPEnabled bool
	TCPEnabled bool

	// MessageHandler is called for each received message. Required.
	MessageHandler MessageHandler

	// UDPConn is an optional pre-existing UDP connection for testing.
	UDPConn net.PacketConn

	// TCPListener is an optional pre-existing TCP listener for testing.
	TCPListener net.Listener
}

type Manager struct {
	udp *UDP
	tcp *TCP

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewManager builds a Manager from config. Leaving both UDPEnabled and
// TCPEnabled false enables both transports.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if !config.UDPEnabled && !config.TCPEnabled {
		config.UDPEnabled = true
		config.TCPEnabled = true
	}

	m := &Manager{}
	listenAddr := fmt.Sprintf(":%d", config.Port)

	if config.UDPEnabled {
		udp, err := NewUDP(UDPConfig{
			Conn:           config.UDPConn,
			ListenAddr:     listenAddr,
			MessageHandler: config.MessageHandler,
		})
		if err != nil {
			return nil, fmt.Errorf("creating UDP transport: %w", err)
		}
		m.udp = udp
	}

	if config.TCPEnabled {
		tcp, err := NewTCP(TCPConfig{
			Listener:       config.TCPListener,
			ListenAddr:     listenAddr,
			MessageHandler: config.MessageHandler,
		})
		if err != nil {
			if m.udp != nil {
				m.udp.Stop()
			}
			return nil, fmt.Errorf("creating TCP transport: %w", err)
		}
		m.tcp = tcp
	}

	return m, nil
}

// endpoints returns the live, enabled transports in a fixed order.
func (m *Manager) endpoints() []endpoint {
	var eps []endpoint
	if m.udp != nil {
		eps = append(eps, m.udp)
	}
	if m.tcp != nil {
		eps = append(eps, m.tcp)
	}
	return eps
}

// Start begins listening on every enabled transport, rolling back any that
// already started if a later one fails.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	started := m.endpoints()
	for i, ep := range started {
		if err := ep.Start(); err != nil {
			for _, prev := range started[:i] {
				prev.Stop()
			}
			return fmt.Errorf("starting transport: %w", err)
		}
	}
	return nil
}

// Stop closes every enabled transport and reports the first error, if any.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	m.mu.Unlock()

	var first error
	for _, ep := range m.endpoints() {
		if err := ep.Stop(); err != nil && err != ErrClosed && first == nil {
			first = err
		}
	}
	return first
}

// Send dispatches data to peer over whichever transport peer.TransportType
// names.
func (m *Manager) Send(data []byte, peer PeerAddress) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !peer.IsValid() {
		return ErrInvalidAddress
	}

	switch peer.TransportType {
	case TransportTypeUDP:
		if m.udp == nil {
			return fmt.Errorf("UDP transport not enabled")
		}
		return m.udp.Send(data, peer.Addr)
	case TransportTypeTCP:
		if m.tcp == nil {
			return fmt.Errorf("TCP transport not enabled")
		}
		return m.tcp.SendRaw(data, peer.Addr)
	default:
		return ErrInvalidAddress
	}
}

// LocalAddresses returns the bound address of every enabled transport.
func (m *Manager) LocalAddresses() []net.Addr {
	eps := m.endpoints()
	addrs := make([]net.Addr, 0, len(eps))
	for _, ep := range eps {
		addrs = append(addrs, ep.LocalAddr())
	}
	return addrs
}

// UDP returns the UDP transport, or nil if not enabled.
func (m *Manager) UDP() *UDP {
	return m.udp
}

// TCP returns the TCP transport, or nil if not enabled.
func (m *Manager) TCP() *TCP {
	return m.tcp
}
