package transport

import (
	"net"
	"sync"
)

// PipeManagerConfig configures a PipeManagerPair.
type PipeManagerConfig struct {
	// UDP enables UDP transport (default: true if both UDP and TCP are false).
	UDP bool

	// TCP enables TCP transport (default: true if both UDP and TCP are false).
	TCP bool

	// Handlers are the message handlers for each manager.
	// Handlers[0] is for Manager(0), Handlers[1] is for Manager(1).
	Handlers [2]MessageHandler

	// PipeConfig configures the underlying pipe (optional).
	PipeConfig PipeConfig
}

// PipeAddresses contains the addresses needed to reach a manager over the pipe.
type PipeAddresses struct {
	// UDP is the UDP peer address, or invalid if UDP is not enabled.
	UDP PeerAddress

	// TCP is the TCP peer address, or invalid if TCP is not enabled.
	TCP PeerAddress
}

// PipeManagerPair provides two connected Manager instances for testing.
// Messages sent from one manager arrive at the other via in-memory pipes.
//
// Example:
//
//	pair := transport.NewPipeManagerPair(transport.PipeManagerConfig{
//	    UDP: true,
//	    TCP: true,
//	    Handlers: [2]transport.MessageHandler{handler0, handler1},
//	})
//	defer pair.Close()
//
//	// Send from manager 0 to manager 1
//	pair.Manager(0).Send(data, pair.PeerAddresses(1).UDP)
//
//	// Send from manager 1 to manager 0 over TCP
//	pair.Manager(1).Send(data, pair.PeerAddresses(0).TCP)
type PipeManagerPair struct {
	managers [2]*Manager
	pipe     *Pipe       // for UDP and auto-processing
	tcpPipe  *Pipe       // separate pipe for TCP (stream-based)
	port     int
	udp      bool
	tcp      bool
}

// NewPipeManagerPair creates a pair of connected Manager instances for testing.
// Both managers are started automatically and ready to use.
func NewPipeManagerPair(config PipeManagerConfig) (*PipeManagerPair, error) {
	// Apply defaults
	if !config.UDP && !config.TCP {
		config.UDP = true
		config.TCP = true
	}
	if config.PipeConfig.ProcessInterval == 0 {
		config.PipeConfig = DefaultPipeConfig()
	}

	port := DefaultPort

	pair := &PipeManagerPair{
		port: port,
		udp:  config.UDP,
		tcp:  config.TCP,
	}

	// Create UDP pipe if enabled
	var udpConns [2]net.PacketConn
	if config.UDP {
		pair.pipe = NewPipeWithConfig(config.PipeConfig)
		f0, f1 := newPipeFactoryPairFromPipe(pair.pipe)
		var err error
		udpConns[0], err = f0.CreateUDPConn(port)
		if err != nil {
			pair.pipe.Close()
			return nil, err
		}
		udpConns[1], err = f1.CreateUDPConn(port)
		if err != nil {
			pair.pipe.Close()
			return nil, err
		}
	}

	// Create TCP pipe if enabled (separate pipe for stream semantics)
	// TCP uses a single bidirectional pipe:
	// - mgr0 uses conn0: writes to queue0→1, reads from queue1→0
	// - mgr1 uses conn1: writes to queue1→0, reads from queue0→1
	var tcpListeners [2]net.Listener
	var tcpClientConns [2]net.Conn
	if config.TCP {
		pair.tcpPipe = NewPipeWithConfig(config.PipeConfig)

		// Create dummy listeners to prevent Manager from creating real TCP listeners.
		// We use AddConnection instead for the actual pipe communication.
		tcpListeners[0] = newDummyTCPListener(PipeAddr{ID: 0, Port: port})
		tcpListeners[1] = newDummyTCPListener(PipeAddr{ID: 1, Port: port})

		// Create the actual TCP connections using the pipe.
		// Each manager gets its own side of the pipe:
		// - tcpClientConns[0] wraps conn0, RemoteAddr=pipe:1 (to send TO mgr1)
		// - tcpClientConns[1] wraps conn1, RemoteAddr=pipe:0 (to send TO mgr0)
		tcpClientConns[0] = &PipeTCPConn{
			conn:       pair.tcpPipe.Conn0(),
			localAddr:  PipeAddr{ID: 0, Port: port},
			remoteAddr: PipeAddr{ID: 1, Port: port},
		}
		tcpClientConns[1] = &PipeTCPConn{
			conn:       pair.tcpPipe.Conn1(),
			localAddr:  PipeAddr{ID: 1, Port: port},
			remoteAddr: PipeAddr{ID: 0, Port: port},
		}
	}

	// Create managers
	for i := 0; i < 2; i++ {
		mgr, err := NewManager(ManagerConfig{
			Port:           port,
			UDPEnabled:     config.UDP,
			TCPEnabled:     config.TCP,
			MessageHandler: config.Handlers[i],
			UDPConn:        udpConns[i],
			TCPListener:    tcpListeners[i],
		})
		if err != nil {
			pair.Close()
			return nil, err
		}
		pair.managers[i] = mgr

		// Add TCP pipe connection for communication.
		// This starts a read loop on the connection, enabling bidirectional communication.
		if config.TCP && mgr.TCP() != nil {
			mgr.TCP().AddConnection(tcpClientConns[i])
		}

		// Start the manager
		if err := mgr.Start(); err != nil {
			pair.Close()
			return nil, err
		}
	}

	return pair, nil
}

// dummyTCPListener is a no-op TCP listener that prevents Manager from creating
// real TCP listeners. Accept blocks forever until Close is called.
type dummyTCPListener struct {
	addr    net.Addr
	closeCh chan struct{}
	closed  bool
	mu      sync.Mutex
}

func newDummyTCPListener(addr net.Addr) *dummyTCPListener {
	return &dummyTCPListener{
		addr:    addr,
		closeCh: make(chan struct{}),
	}
}

func (l *dummyTCPListener) Accept() (net.Conn, error) {
	<-l.closeCh
	return nil, net.ErrClosed
}

func (l *dummyTCPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.closeCh)
	}
	return nil
}

func (l *dummyTCPListener) Addr() net.Addr {
	return l.addr
}

// Manager returns the manager at the given index (0 or 1).
func (p *PipeManagerPair) Manager(id int) *Manager {
	if id < 0 || id > 1 {
		return nil
	}
	return p.managers[id]
}

// PeerAddresses returns the addresses needed to send messages TO the manager at the given index.
// Use these addresses when sending from the other manager.
//
// Example:
//
//	// Send from manager 0 to manager 1
//	pair.Manager(0).Send(data, pair.PeerAddresses(1).UDP)
func (p *PipeManagerPair) PeerAddresses(id int) PipeAddresses {
	if id < 0 || id > 1 {
		return PipeAddresses{}
	}

	addrs := PipeAddresses{}

	if p.udp {
		addrs.UDP = NewUDPPeerAddress(PipeAddr{ID: id, Port: p.port})
	}

	if p.tcp {
		addrs.TCP = NewTCPPeerAddress(PipeAddr{ID: id, Port: p.port})
	}

	return addrs
}

// Pipe returns the underlying UDP pipe for configuration (e.g., network conditions).
// Returns nil if UDP is not enabled.
func (p *PipeManagerPair) Pipe() *Pipe {
	return p.pipe
}

// TCPPipe returns the underlying TCP pipe for configuration.
// Returns nil if TCP is not enabled.
func (p *PipeManagerPair) TCPPipe() *Pipe {
	return p.tcpPipe
}

// Close stops both managers and closes all pipes.
func (p *PipeManagerPair) Close() error {
	for i := 0; i < 2; i++ {
		if p.managers[i] != nil {
			// Ignore errors - manager may already be stopped
			p.managers[i].Stop()
		}
	}

	// Close pipes - ignore "already closed" errors since managers may have
	// closed the underlying connections during Stop()
	if p.pipe != nil {
		p.pipe.Close()
	}

	if p.tcpPipe != nil {
		p.tcpPipe.Close()
	}

	return nil
}
