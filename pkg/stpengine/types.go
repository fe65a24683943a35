// Package stpengine is THE CORE of spantree: the per-port, per-tree
// state machines of IEEE 802.1Q-2018 section 13, driven by received
// BPDUs, timer ticks and host configuration changes, that compute the
// active spanning-tree topology for a bridge.
//
// The package is strictly single-threaded and cooperative: every
// public entry point runs the scheduler to quiescence before
// returning, and host callbacks invoked from inside a state machine's
// entry action MUST NOT call back into the engine.
package stpengine

import "github.com/thelastdreamer/spantree/pkg/bpdu"

// Role is the spanning-tree role assigned to a port on a given tree
// (802.1Q section 13.24).
type Role uint8

const (
	RoleDisabled Role = iota
	RoleRoot
	RoleDesignated
	RoleAlternate
	RoleBackup
	RoleMaster
)

func (r Role) String() string {
	switch r {
	case RoleDisabled:
		return "Disabled"
	case RoleRoot:
		return "Root"
	case RoleDesignated:
		return "Designated"
	case RoleAlternate:
		return "Alternate"
	case RoleBackup:
		return "Backup"
	case RoleMaster:
		return "Master"
	default:
		return "Unknown"
	}
}

// PortState is the forwarding state produced by Port State Transition.
type PortState uint8

const (
	StateDiscarding PortState = iota
	StateLearning
	StateForwarding
)

func (s PortState) String() string {
	switch s {
	case StateDiscarding:
		return "Discarding"
	case StateLearning:
		return "Learning"
	case StateForwarding:
		return "Forwarding"
	default:
		return "Unknown"
	}
}

// InfoIs classifies the provenance of a PortTree's stored priority
// vector.
type InfoIs uint8

const (
	InfoDisabled InfoIs = iota
	InfoMine
	InfoAged
	InfoReceived
)

func (i InfoIs) String() string {
	switch i {
	case InfoDisabled:
		return "Disabled"
	case InfoMine:
		return "Mine"
	case InfoAged:
		return "Aged"
	case InfoReceived:
		return "Received"
	default:
		return "Unknown"
	}
}

// AdminPointToPoint is the tri-state administrative point-to-point MAC
// setting.
type AdminPointToPoint uint8

const (
	AdminP2PAuto AdminPointToPoint = iota
	AdminP2PForceTrue
	AdminP2PForceFalse
)

// FlushType distinguishes the reason a filtering database flush is
// requested, passed through to the flushFdb callback unchanged.
type FlushType uint8

const (
	FlushImmediate FlushType = iota
	FlushOnTopologyChange
)

// Version is the spanning-tree protocol generation a bridge or BPDU
// speaks; it reuses bpdu.ProtocolVersion's numbering directly since
// the wire value and the engine's notion of "version" are the same
// concept (802.1Q section 13.6.2).
type Version = bpdu.ProtocolVersion

const (
	VersionSTP  = bpdu.VersionSTP
	VersionRSTP = bpdu.VersionRSTP
	VersionMSTP = bpdu.VersionMSTP
)

// DefaultPathCost returns the 802.1D/802.1Q recommended default
// external port path cost for a link of the given speed, used to seed
// Port.externalPathCost when the host does not override it.
func DefaultPathCost(speedMbps uint32) uint32 {
	switch {
	case speedMbps == 0:
		return 200000000
	case speedMbps < 100:
		return 2000000
	case speedMbps < 1000:
		return 200000
	case speedMbps < 10000:
		return 20000
	case speedMbps < 100000:
		return 2000
	case speedMbps < 1000000:
		return 200
	default:
		return 20
	}
}

const (
	// DefaultMigrateTime is the fixed MigrateTime of 802.1Q section
	// 13.23: 3 seconds, administratively fixed in most implementations.
	DefaultMigrateTime = 3

	// DefaultTxHoldCount caps a port's txCount, the count of BPDUs it
	// has sent, which Port Timers decrements by one each tick
	// (802.1Q section 13.37.3).
	DefaultTxHoldCount = 6

	// DefaultHelloTime, DefaultMaxAge and DefaultForwardDelay are the
	// 802.1D/802.1Q recommended defaults, all in whole seconds.
	DefaultHelloTime    = 2
	DefaultMaxAge       = 20
	DefaultForwardDelay = 15
)
