package transport

import (
	"fmt"
	"net"
)

// PeerAddress identifies a remote endpoint by its network address and the
// transport it is reachable over.
type PeerAddress struct {
	Addr          net.Addr
	TransportType TransportType
}

func (p PeerAddress) String() string {
	addr := "<nil>"
	if p.Addr != nil {
		addr = p.Addr.String()
	}
	return fmt.Sprintf("%s:%s", p.TransportType, addr)
}

// IsValid reports whether the address has a recognized transport type and
// a non-nil underlying net.Addr.
func (p PeerAddress) IsValid() bool {
	return p.TransportType.IsValid() && p.Addr != nil
}

func newPeerAddress(addr net.Addr, tt TransportType) PeerAddress {
	return PeerAddress{Addr: addr, TransportType: tt}
}

// NewUDPPeerAddress wraps addr as a UDP peer.
func NewUDPPeerAddress(addr net.Addr) PeerAddress {
	return newPeerAddress(addr, TransportTypeUDP)
}

// NewTCPPeerAddress wraps addr as a TCP peer.
func NewTCPPeerAddress(addr net.Addr) PeerAddress {
	return newPeerAddress(addr, TransportTypeTCP)
}

// UDPAddrFromString resolves addr (host:port) as a UDP PeerAddress.
func UDPAddrFromString(addr string) (PeerAddress, error) {
	resolved, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewUDPPeerAddress(resolved), nil
}

// TCPAddrFromString resolves addr (host:port) as a TCP PeerAddress.
func TCPAddrFromString(addr string) (PeerAddress, error) {
	resolved, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return PeerAddress{}, err
	}
	return NewTCPPeerAddress(resolved), nil
}
