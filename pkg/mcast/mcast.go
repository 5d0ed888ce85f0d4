// Package mcast implements the multicast UDP transport used for mDNS-based
// discovery of Matter devices. It joins the IPv4 and IPv6 mDNS multicast
// groups on one or more interfaces and delivers datagrams to a configured
// handler, mirroring the read-loop/close-channel shape used by the unicast
// transport in pkg/transport.
package mcast

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// DefaultPort is the mDNS UDP port (RFC 6762).
const DefaultPort = 5353

// DefaultGroupV4 is the IPv4 mDNS multicast group.
var DefaultGroupV4 = net.IPv4(224, 0, 0, 251)

// DefaultGroupV6 is the IPv6 mDNS multicast group (link-local scope).
var DefaultGroupV6 = net.ParseIP("ff02::fb")

// MaxMessageSize is the maximum mDNS message size this transport will send
// or accept without truncation handling at the caller's DNS-codec layer.
const MaxMessageSize = 1500

// recvQueueSize bounds the number of pending inbound packets; once full,
// the oldest queued packet is dropped and DroppedCount is incremented.
const recvQueueSize = 64

// Packet is an inbound multicast or unicast datagram delivered to Handler.
type Packet struct {
	Data      []byte
	SrcAddr   *net.UDPAddr
	Interface string
}

// Handler processes a received packet. Called on the transport's dispatch
// goroutine; handlers must not block for long.
type Handler func(Packet)

// Config configures a Transport.
type Config struct {
	// Port is the UDP port to bind. Defaults to DefaultPort.
	Port int

	// Interfaces restricts group membership to the named interfaces. If
	// empty, all multicast-capable interfaces are used.
	Interfaces []string

	// EnableIPv4 additionally joins the IPv4 mDNS group. IPv6 is always
	// enabled.
	EnableIPv4 bool

	// Handler receives every inbound packet. Required.
	Handler Handler

	// LoggerFactory creates loggers for operational events. Optional.
	LoggerFactory logging.LoggerFactory
}

// Transport is a joined-group UDP multicast endpoint for mDNS traffic.
type Transport struct {
	port int

	conn4 *net.UDPConn
	pc4   *ipv4.PacketConn
	conn6 *net.UDPConn
	pc6   *ipv6.PacketConn

	ifaces []net.Interface

	handler Handler
	log     logging.LeveledLogger

	closeCh chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	dropped atomic.Uint64
}

// New creates a Transport bound to the configured port and joins the
// configured multicast groups on the configured interfaces. The IPv6 group
// is always joined; the IPv4 group is joined only if EnableIPv4 is set.
func New(cfg Config) (*Transport, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	ifaces, err := resolveInterfaces(cfg.Interfaces)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		port:    port,
		ifaces:  ifaces,
		handler: cfg.Handler,
		closeCh: make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		t.log = cfg.LoggerFactory.NewLogger("mcast")
	}

	conn6, err := net.ListenUDP("udp6", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("mcast: listen udp6: %w", err)
	}
	t.conn6 = conn6
	t.pc6 = ipv6.NewPacketConn(conn6)
	if err := t.pc6.SetControlMessage(ipv6.FlagInterface, true); err != nil && t.log != nil {
		t.log.Warnf("mcast: enable ipv6 interface control messages: %v", err)
	}
	joined := 0
	for _, ifi := range ifaces {
		if err := t.pc6.JoinGroup(&ifi, &net.UDPAddr{IP: DefaultGroupV6}); err == nil {
			joined++
		} else if t.log != nil {
			t.log.Warnf("mcast: join ipv6 group on %s: %v", ifi.Name, err)
		}
	}
	if joined == 0 {
		conn6.Close()
		return nil, ErrNoUsableInterface
	}

	if cfg.EnableIPv4 {
		conn4, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
		if err != nil {
			conn6.Close()
			return nil, fmt.Errorf("mcast: listen udp4: %w", err)
		}
		t.conn4 = conn4
		t.pc4 = ipv4.NewPacketConn(conn4)
		if err := t.pc4.SetControlMessage(ipv4.FlagInterface, true); err != nil && t.log != nil {
			t.log.Warnf("mcast: enable ipv4 interface control messages: %v", err)
		}
		for _, ifi := range ifaces {
			if err := t.pc4.JoinGroup(&ifi, &net.UDPAddr{IP: DefaultGroupV4}); err != nil && t.log != nil {
				t.log.Warnf("mcast: join ipv4 group on %s: %v", ifi.Name, err)
			}
		}
	}

	return t, nil
}

// ifaceName resolves an interface index recovered from a control message to
// its name, returning "" if the index is unset or unresolvable.
func ifaceName(ifIndex int) string {
	if ifIndex <= 0 {
		return ""
	}
	ifi, err := net.InterfaceByIndex(ifIndex)
	if err != nil {
		return ""
	}
	return ifi.Name
}

func resolveInterfaces(names []string) ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("mcast: enumerate interfaces: %w", err)
	}
	var want map[string]bool
	if len(names) > 0 {
		want = make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
	}
	var out []net.Interface
	for _, ifi := range all {
		if ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if want != nil && !want[ifi.Name] {
			continue
		}
		out = append(out, ifi)
	}
	return out, nil
}

// Start begins the receive loops. Safe to call once.
func (t *Transport) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.readLoop6()
	if t.conn4 != nil {
		t.wg.Add(1)
		go t.readLoop4()
	}
	return nil
}

// Stop leaves all joined groups, closes sockets, and waits for the read
// loops to exit.
func (t *Transport) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	close(t.closeCh)

	for _, ifi := range t.ifaces {
		t.pc6.LeaveGroup(&ifi, &net.UDPAddr{IP: DefaultGroupV6})
		if t.pc4 != nil {
			t.pc4.LeaveGroup(&ifi, &net.UDPAddr{IP: DefaultGroupV4})
		}
	}

	t.conn6.SetReadDeadline(time.Now())
	t.conn6.Close()
	if t.conn4 != nil {
		t.conn4.SetReadDeadline(time.Now())
		t.conn4.Close()
	}
	t.wg.Wait()
	return nil
}

// Send writes data to unicastTarget if set, otherwise multicasts it on every
// joined interface for the address family implied by the group.
func (t *Transport) Send(data []byte, unicastTarget *net.UDPAddr) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrClosed
	}
	t.mu.RUnlock()

	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	if unicastTarget != nil {
		conn := t.conn6
		if unicastTarget.IP.To4() != nil && t.conn4 != nil {
			conn = t.conn4
		}
		_, err := conn.WriteToUDP(data, unicastTarget)
		return err
	}

	var firstErr error
	for _, ifi := range t.ifaces {
		if err := t.pc6.SetMulticastInterface(&ifi); err != nil {
			continue
		}
		if _, err := t.conn6.WriteToUDP(data, &net.UDPAddr{IP: DefaultGroupV6, Port: t.port, Zone: ifi.Name}); err != nil && firstErr == nil {
			firstErr = err
		}
		if t.conn4 != nil {
			if err := t.pc4.SetMulticastInterface(&ifi); err == nil {
				t.conn4.WriteToUDP(data, &net.UDPAddr{IP: DefaultGroupV4, Port: t.port})
			}
		}
	}
	return firstErr
}

// DroppedCount returns the number of inbound packets dropped due to a full
// receive queue since the transport started.
func (t *Transport) DroppedCount() uint64 {
	return t.dropped.Load()
}

func (t *Transport) readLoop6() {
	defer t.wg.Done()
	buf := make([]byte, MaxMessageSize)
	t.readLoop(func() (Packet, error) {
		n, cm, src, err := t.pc6.ReadFrom(buf)
		if err != nil {
			return Packet{}, err
		}
		pkt := Packet{SrcAddr: udpAddr(src)}
		if cm != nil {
			pkt.Interface = ifaceName(cm.IfIndex)
		}
		pkt.Data = append(pkt.Data, buf[:n]...)
		return pkt, nil
	})
}

func (t *Transport) readLoop4() {
	defer t.wg.Done()
	buf := make([]byte, MaxMessageSize)
	t.readLoop(func() (Packet, error) {
		n, cm, src, err := t.pc4.ReadFrom(buf)
		if err != nil {
			return Packet{}, err
		}
		pkt := Packet{SrcAddr: udpAddr(src)}
		if cm != nil {
			pkt.Interface = ifaceName(cm.IfIndex)
		}
		pkt.Data = append(pkt.Data, buf[:n]...)
		return pkt, nil
	})
}

// udpAddr narrows a net.Addr returned by a PacketConn.ReadFrom to the
// *net.UDPAddr the rest of the package deals in; both pc4 and pc6 wrap a
// *net.UDPConn, so this never fails in practice.
func udpAddr(addr net.Addr) *net.UDPAddr {
	a, _ := addr.(*net.UDPAddr)
	return a
}

// readLoop drains read until it reports an error, queuing each packet it
// produces for sequential delivery to the handler on a dedicated goroutine
// so a slow handler can't stall the socket read.
func (t *Transport) readLoop(read func() (Packet, error)) {
	queue := make(chan Packet, recvQueueSize)
	var qwg sync.WaitGroup
	qwg.Add(1)
	go func() {
		defer qwg.Done()
		for p := range queue {
			t.handler(p)
		}
	}()

	for {
		select {
		case <-t.closeCh:
			close(queue)
			qwg.Wait()
			return
		default:
		}

		pkt, err := read()
		if err != nil {
			select {
			case <-t.closeCh:
				close(queue)
				qwg.Wait()
				return
			default:
				if t.log != nil {
					t.log.Warnf("mcast: read error: %v", err)
				}
				continue
			}
		}
		if len(pkt.Data) == 0 {
			continue
		}

		select {
		case queue <- pkt:
		default:
			select {
			case <-queue:
				t.dropped.Add(1)
			default:
			}
			select {
			case queue <- pkt:
			default:
				t.dropped.Add(1)
			}
		}
	}
}
