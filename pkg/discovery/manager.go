package discovery

import (
	"net"
	"sync"

	"github.com/pion/logging"

	"github.com/quietridge/matter/pkg/clock"
	"github.com/quietridge/matter/pkg/fabric"
	"github.com/quietridge/matter/pkg/mcast"
)

// DefaultMatterPort is the default Matter operational/commissioning port,
// distinct from the mDNS transport's own fixed port 5353.
const DefaultMatterPort uint16 = 5540

// ManagerConfig holds configuration for the discovery Manager.
type ManagerConfig struct {
	// HostName is the mDNS host name this node answers A/AAAA queries for.
	// If empty, a random one is generated.
	HostName string

	// Port is the Matter operational/commissioning port to advertise.
	// Defaults to DefaultMatterPort.
	Port uint16

	// Interfaces restricts which network interfaces the underlying
	// multicast transport joins. If nil, all multicast-capable interfaces
	// are used.
	Interfaces []string

	// Addresses supplies this node's own addresses for building A/AAAA
	// records. Required.
	Addresses AddressSource

	// LoggerFactory creates loggers for the transport, scanner, and responder.
	LoggerFactory logging.LoggerFactory

	// Transport is injected directly in tests; production callers leave
	// this nil and let NewManager construct a real *mcast.Transport.
	Transport *mcast.Transport
}

// Manager wires the mDNS Scanner and Responder to a shared multicast
// transport, giving a single handle that both advertises this node's own
// services and discovers peers.
type Manager struct {
	scanner   *Scanner
	responder *Responder
	transport *mcast.Transport
	port      uint16

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a Manager and starts its underlying transport, scanner,
// and responder.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMatterPort
	}
	if cfg.Addresses == nil {
		return nil, ErrNoAddresses
	}

	m := &Manager{port: cfg.Port}
	ownsTransport := cfg.Transport == nil

	transport := cfg.Transport
	if transport == nil {
		var err error
		transport, err = mcast.New(mcast.Config{
			Interfaces:    cfg.Interfaces,
			EnableIPv4:    true,
			Handler:       m.handlePacket,
			LoggerFactory: cfg.LoggerFactory,
		})
		if err != nil {
			return nil, err
		}
	}
	m.transport = transport

	scanner, err := NewScanner(ScannerConfig{
		Sender:        transport,
		Clock:         clock.New(),
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		if ownsTransport {
			transport.Stop()
		}
		return nil, err
	}
	m.scanner = scanner

	responder, err := NewResponder(ResponderConfig{
		HostName:      cfg.HostName,
		Addresses:     cfg.Addresses,
		Sender:        transport,
		Clock:         clock.New(),
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		if ownsTransport {
			transport.Stop()
		}
		return nil, err
	}
	m.responder = responder

	if ownsTransport {
		if err := transport.Start(); err != nil {
			return nil, err
		}
	}
	scanner.Start()

	return m, nil
}

// handlePacket fans one inbound datagram out to both the scanner (which
// cares about responses) and the responder (which cares about queries);
// each ignores messages not addressed to its half of the protocol.
func (m *Manager) handlePacket(pkt mcast.Packet) {
	m.scanner.HandlePacket(pkt.Data, pkt.SrcAddr, pkt.Interface)
	m.responder.HandlePacket(pkt.Data, pkt.SrcAddr, pkt.Interface)
}

// Close stops the scanner, expires this node's announcements, and closes
// the underlying transport.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	m.mu.Unlock()

	m.scanner.Close()
	m.responder.Close()
	return m.transport.Stop()
}

// ---- Advertising ----

// StartCommissionable begins advertising this node as commissionable on the
// Manager's configured port.
func (m *Manager) StartCommissionable(txt CommissionableTXT) error {
	return m.responder.StartCommissionable(m.port, txt)
}

// StartOperational begins advertising this node as an operational device
// on a specific fabric/node identity, on the Manager's configured port.
func (m *Manager) StartOperational(compressedFabricID [8]byte, nodeID fabric.NodeID, txt OperationalTXT) error {
	return m.responder.StartOperational(m.port, compressedFabricID, nodeID, txt)
}

// StartCommissioner begins advertising this node as a commissioner on the
// Manager's configured port.
func (m *Manager) StartCommissioner(txt CommissionerTXT) error {
	return m.responder.StartCommissioner(m.port, txt)
}

// StopAdvertising stops advertising a specific service type, sending a
// goodbye for its records.
func (m *Manager) StopAdvertising(serviceType ServiceType) error {
	return m.responder.Stop(serviceType)
}

// StopAllAdvertising expires every currently advertised service.
func (m *Manager) StopAllAdvertising() {
	m.responder.ExpireAnnouncements()
}

// ---- Discovery ----

// FindOperationalDevice resolves a specific commissioned node's address.
func (m *Manager) FindOperationalDevice(f *fabric.FabricInfo, nodeID fabric.NodeID) (*OperationalDeviceRecord, error) {
	return m.scanner.FindOperationalDevice(f, nodeID, 0)
}

// FindCommissionableDevices resolves the first commissionable device
// matching ident.
func (m *Manager) FindCommissionableDevices(ident CommissionableIdentifier) (*CommissionableDeviceRecord, error) {
	return m.scanner.FindCommissionableDevices(ident, 0)
}

// FindCommissionableDevicesContinuously keeps discovering matches for ident
// until timeout elapses, invoking cb for each distinct device.
func (m *Manager) FindCommissionableDevicesContinuously(ident CommissionableIdentifier, cb func(*CommissionableDeviceRecord)) error {
	return m.scanner.FindCommissionableDevicesContinuously(ident, cb, 0)
}

// InterfaceAddressSource builds an AddressSource from the host's own live
// network interfaces, suitable for production use where addresses are not
// otherwise known ahead of time.
func InterfaceAddressSource() (AddressSource, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := StaticAddressSource{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		var ips []net.IP
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok {
				ips = append(ips, ipNet.IP)
			}
		}
		if len(ips) > 0 {
			out[iface.Name] = ips
		}
	}
	return out, nil
}
