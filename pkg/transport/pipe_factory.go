package transport

import (
	"net"
	"sync"
)

// PipeFactory creates transports that use a Pipe for communication.
// Use this for in-memory testing without real network I/O.
//
// By default, messages are automatically delivered in a background goroutine.
// Use Pipe().SetAutoProcess(false) for manual control over message delivery.
type PipeFactory struct {
	mu          sync.Mutex
	peerFactory *PipeFactory
	pipe        *Pipe
	localID     int // 0 or 1
	udpConn     *PipePacketConn
	tcpListener *PipeTCPListener
}

// NewPipeFactoryPair creates a pair of PipeFactory instances
// connected to each other via a Pipe with auto-processing enabled.
//
// Example:
//
//	f0, f1 := transport.NewPipeFactoryPair()
//	// Use f0 for device, f1 for controller
//	// Messages flow automatically - no manual pumping needed!
func NewPipeFactoryPair() (*PipeFactory, *PipeFactory) {
	return NewPipeFactoryPairWithConfig(DefaultPipeConfig())
}

// NewPipeFactoryPairWithConfig creates a pair of PipeFactory instances
// with the given configuration.
//
// For manual message control (deterministic testing):
//
//	f0, f1 := transport.NewPipeFactoryPairWithConfig(transport.PipeConfig{
//	    AutoProcess: false,
//	})
//	// ... do work ...
//	f0.Pipe().Process() // manually deliver messages
func NewPipeFactoryPairWithConfig(config PipeConfig) (*PipeFactory, *PipeFactory) {
	pipe := NewPipeWithConfig(config)
	return newPipeFactoryPairFromPipe(pipe)
}

// newPipeFactoryPairFromPipe creates factory pair from an existing pipe.
func newPipeFactoryPairFromPipe(pipe *Pipe) (*PipeFactory, *PipeFactory) {
	f0 := &PipeFactory{
		pipe:    pipe,
		localID: 0,
	}
	f1 := &PipeFactory{
		pipe:    pipe,
		localID: 1,
	}
	f0.peerFactory = f1
	f1.peerFactory = f0
	return f0, f1
}

// Pipe returns the underlying pipe for configuration and manual message control.
//
// To disable auto-processing for deterministic tests:
//
//	f.Pipe().SetAutoProcess(false)
//
// To configure network conditions:
//
//	f.Pipe().SetCondition(transport.NetworkCondition{
//	    DropRate: 0.1, // 10% packet loss
//	})
func (f *PipeFactory) Pipe() *Pipe {
	return f.pipe
}

// LocalAddr returns the local address for this side of the pipe.
func (f *PipeFactory) LocalAddr() net.Addr {
	return PipeAddr{ID: f.localID, Port: DefaultPort}
}

// PeerAddr returns the peer address for this side of the pipe.
func (f *PipeFactory) PeerAddr() net.Addr {
	peerID := 1 - f.localID
	return PipeAddr{ID: peerID, Port: DefaultPort}
}

// CreateUDPConn creates a UDP-like connection using the pipe.
func (f *PipeFactory) CreateUDPConn(port int) (net.PacketConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.udpConn != nil {
		return f.udpConn, nil
	}

	// Get the appropriate connection from the pipe
	var conn net.Conn
	if f.localID == 0 {
		conn = f.pipe.Conn0()
	} else {
		conn = f.pipe.Conn1()
	}

	// Determine peer address
	peerID := 1 - f.localID
	peerAddr := PipeAddr{ID: peerID, Port: port}

	f.udpConn = &PipePacketConn{
		conn:     conn,
		localID:  f.localID,
		port:     port,
		peerAddr: peerAddr,
		pipe:     f.pipe,
	}

	return f.udpConn, nil
}

// CreateTCPListener creates a TCP listener using a pipe.
// The listener will accept exactly one connection (the pipe's endpoint).
// This is suitable for point-to-point testing scenarios.
func (f *PipeFactory) CreateTCPListener(port int) (net.Listener, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tcpListener != nil {
		return f.tcpListener, nil
	}

	// Get the appropriate connection from the pipe
	var conn net.Conn
	if f.localID == 0 {
		conn = f.pipe.Conn0()
	} else {
		conn = f.pipe.Conn1()
	}

	// Determine peer address
	peerID := 1 - f.localID

	f.tcpListener = &PipeTCPListener{
		localAddr:  PipeAddr{ID: f.localID, Port: port},
		remoteAddr: PipeAddr{ID: peerID, Port: port},
		conn:       conn,
		acceptCh:   make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
	}

	return f.tcpListener, nil
}

// SetCondition configures network condition simulation for this factory's pipe.
func (f *PipeFactory) SetCondition(cond NetworkCondition) {
	f.pipe.SetCondition(cond)
}

// GetTCPClientConn returns a TCP client connection for connecting to the peer's listener.
// This is the counterpart to CreateTCPListener - use it on the "client" side of the pipe.
//
// Example:
//
//	f0, f1 := NewPipeFactoryPair()
//	listener, _ := f0.CreateTCPListener(5540)  // Server side
//	clientConn := f1.GetTCPClientConn(5540)    // Client side
//	serverConn, _ := listener.Accept()
//	// Now clientConn and serverConn are connected via the pipe
func (f *PipeFactory) GetTCPClientConn(port int) net.Conn {
	// Get the appropriate connection from the pipe
	var conn net.Conn
	if f.localID == 0 {
		conn = f.pipe.Conn0()
	} else {
		conn = f.pipe.Conn1()
	}

	// Determine peer address
	peerID := 1 - f.localID

	return &PipeTCPConn{
		conn:       conn,
		localAddr:  PipeAddr{ID: f.localID, Port: port},
		remoteAddr: PipeAddr{ID: peerID, Port: port},
	}
}

// Verify PipeFactory implements Factory.
var _ Factory = (*PipeFactory)(nil)
