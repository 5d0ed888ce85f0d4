package session

import "time"

// MRP timing defaults and limits from Spec Section 4.12.8, applied when a
// peer advertises no SessionParameters of its own.
const (
	DefaultIdleInterval    = 500 * time.Millisecond
	DefaultActiveInterval  = 300 * time.Millisecond
	DefaultActiveThreshold = 4000 * time.Millisecond

	MaxIdleInterval    = time.Hour
	MaxActiveInterval  = time.Hour
	MaxActiveThreshold = 65535 * time.Millisecond
)

// Params are the negotiated MRP timing parameters for a session: the
// retry intervals used while the peer is idle versus recently active, and
// how long since last receipt before it's considered to have gone idle.
// See Spec Section 4.13.1.
type Params struct {
	IdleInterval    time.Duration
	ActiveInterval  time.Duration
	ActiveThreshold time.Duration
}

// DefaultParams returns the spec's default MRP parameters.
func DefaultParams() Params {
	return Params{
		IdleInterval:    DefaultIdleInterval,
		ActiveInterval:  DefaultActiveInterval,
		ActiveThreshold: DefaultActiveThreshold,
	}
}

// paramLimit pairs a Params field's value with the ceiling it must not
// exceed, for shared range checking in Validate.
type paramLimit struct {
	value time.Duration
	max   time.Duration
}

// Validate reports whether every field is positive and within its Spec
// 4.12.8 ceiling.
func (p Params) Validate() bool {
	for _, l := range []paramLimit{
		{p.IdleInterval, MaxIdleInterval},
		{p.ActiveInterval, MaxActiveInterval},
		{p.ActiveThreshold, MaxActiveThreshold},
	} {
		if l.value <= 0 || l.value > l.max {
			return false
		}
	}
	return true
}

// WithDefaults returns a copy of p with any zero-valued field replaced by
// its spec default.
func (p Params) WithDefaults() Params {
	if p.IdleInterval == 0 {
		p.IdleInterval = DefaultIdleInterval
	}
	if p.ActiveInterval == 0 {
		p.ActiveInterval = DefaultActiveInterval
	}
	if p.ActiveThreshold == 0 {
		p.ActiveThreshold = DefaultActiveThreshold
	}
	return p
}
