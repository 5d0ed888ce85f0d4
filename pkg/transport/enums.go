package transport

// TransportType is the underlying protocol carrying a Matter message.
type TransportType int

const (
	TransportTypeUnknown TransportType = iota
	TransportTypeUDP
	TransportTypeTCP
)

var transportTypeNames = [...]string{"Unknown", "UDP", "TCP"}

func (t TransportType) String() string {
	if t >= TransportTypeUnknown && int(t) < len(transportTypeNames) {
		return transportTypeNames[t]
	}
	return "Unknown"
}

// IsValid reports whether t is UDP or TCP.
func (t TransportType) IsValid() bool {
	return t == TransportTypeUDP || t == TransportTypeTCP
}
