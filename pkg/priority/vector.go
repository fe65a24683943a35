// Package priority implements the spanning-tree priority-vector algebra
// of IEEE 802.1Q-2018 section 13.6: the six-tuple comparison used by Port
// Information and Port Role Selection to decide which of two pieces of
// spanning-tree information is better.
package priority

import "time"

// BridgeID is a 16-bit priority (already including the MSTID-derived
// system ID extension for MSTI vectors) plus a 48-bit MAC address.
type BridgeID struct {
	Priority uint16
	Address  [6]byte
}

// Less reports whether b is numerically smaller than other, comparing
// priority first and then address, both unsigned.
func (b BridgeID) Less(other BridgeID) bool {
	if b.Priority != other.Priority {
		return b.Priority < other.Priority
	}
	for i := range b.Address {
		if b.Address[i] != other.Address[i] {
			return b.Address[i] < other.Address[i]
		}
	}
	return false
}

// Equal reports whether b and other identify the same bridge.
func (b BridgeID) Equal(other BridgeID) bool {
	return b.Priority == other.Priority && b.Address == other.Address
}

// PortID is a 4-bit priority and a 12-bit port number, packed the way
// 802.1Q packs them on the wire (high nibble priority, low 12 bits number).
type PortID uint16

// MakePortID packs a priority (top 4 bits) and port number (bottom 12
// bits) into a wire-format PortID.
func MakePortID(priority uint8, number uint16) PortID {
	return PortID(uint16(priority&0xF0)<<8 | (number & 0x0FFF))
}

// Priority returns the 4-bit port priority field.
func (p PortID) Priority() uint8 { return uint8(p >> 8 & 0xF0) }

// Number returns the 12-bit port number field.
func (p PortID) Number() uint16 { return uint16(p) & 0x0FFF }

func (p PortID) Less(other PortID) bool { return p < other }

// Vector is the six-tuple spanning-tree priority vector of 802.1Q
// section 13.6.3: (RootID, ExternalRootPathCost, RegionalRootID,
// InternalRootPathCost, DesignatedBridgeID, DesignatedPortID).
//
// Comparison is strict lexicographic over these six fields in order;
// "superior" means strictly less.
type Vector struct {
	RootID                BridgeID
	ExternalRootPathCost  uint32
	RegionalRootID        BridgeID
	InternalRootPathCost  uint32
	DesignatedBridgeID    BridgeID
	DesignatedPortID      PortID
}

// Times accompanies a Vector: the message ages and timer parameters
// carried alongside a priority vector in a BPDU (802.1Q section 13.6.4).
type Times struct {
	MessageAge    time.Duration
	MaxAge        time.Duration
	HelloTime     time.Duration
	ForwardDelay  time.Duration
	RemainingHops uint8
}

// Compare returns -1, 0 or 1 as a is lexicographically less than, equal
// to, or greater than b, comparing exactly the six fields of the vector
// (times are not part of the comparison: 802.1Q section 13.6.3 note 1).
func Compare(a, b Vector) int {
	if c := compareBridgeID(a.RootID, b.RootID); c != 0 {
		return c
	}
	if c := compareUint32(a.ExternalRootPathCost, b.ExternalRootPathCost); c != 0 {
		return c
	}
	if c := compareBridgeID(a.RegionalRootID, b.RegionalRootID); c != 0 {
		return c
	}
	if c := compareUint32(a.InternalRootPathCost, b.InternalRootPathCost); c != 0 {
		return c
	}
	if c := compareBridgeID(a.DesignatedBridgeID, b.DesignatedBridgeID); c != 0 {
		return c
	}
	if a.DesignatedPortID != b.DesignatedPortID {
		if a.DesignatedPortID < b.DesignatedPortID {
			return -1
		}
		return 1
	}
	return 0
}

// Superior reports whether a is strictly better than b.
func Superior(a, b Vector) bool { return Compare(a, b) < 0 }

// SuperiorOrEqual reports whether a is at least as good as b.
func SuperiorOrEqual(a, b Vector) bool { return Compare(a, b) <= 0 }

// Equal reports whether every field of a and b matches.
func Equal(a, b Vector) bool { return Compare(a, b) == 0 }

// SameDesignated reports whether a and b agree on (RegionalRoot,
// DesignatedBridge, DesignatedPort) — the fields 802.1Q section 13.26.4
// calls "same designated information", used to classify a repeated
// Designated advertisement instead of a fresh superior one.
func SameDesignated(a, b Vector) bool {
	return a.RegionalRootID.Equal(b.RegionalRootID) &&
		a.DesignatedBridgeID.Equal(b.DesignatedBridgeID) &&
		a.DesignatedPortID == b.DesignatedPortID
}

// TimesEqual reports whether two Times are identical in every field
// that participates in the "repeated designated information" test
// (802.1Q section 13.26.4 also compares the accompanying timer values).
func TimesEqual(a, b Times) bool {
	return a.MessageAge == b.MessageAge &&
		a.MaxAge == b.MaxAge &&
		a.HelloTime == b.HelloTime &&
		a.ForwardDelay == b.ForwardDelay &&
		a.RemainingHops == b.RemainingHops
}

func compareBridgeID(a, b BridgeID) int {
	if a.Equal(b) {
		return 0
	}
	if a.Less(b) {
		return -1
	}
	return 1
}

func compareUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
