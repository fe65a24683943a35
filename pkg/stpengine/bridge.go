package stpengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/thelastdreamer/spantree/pkg/bpdu"
	"github.com/thelastdreamer/spantree/pkg/priority"
)

// Bridge is one spanning-tree participant: a fixed set of ports and
// trees created once by NewBridge and never resized.
type Bridge struct {
	mu sync.Mutex

	address        [6]byte
	forceVersion   Version
	version        Version
	migrateTime    uint16
	txHoldCount    int

	mstConfigName     [32]byte
	mstConfigRevision uint16
	vidToMSTID        bpdu.VIDToMSTIDTable

	begin bool

	ports []Port
	trees []Tree

	callbacks Callbacks
	inCallback bool // true while a host callback runs; no entry point reads it

	bridgePriority []uint16 // per-tree configured bridge priority, index == tree index
}

// Port is one physical interface.
type Port struct {
	index int

	portEnabled bool
	adminEdge   bool
	autoEdge    bool
	operEdge    bool

	adminP2P AdminPointToPoint
	operP2P  bool

	mcheck   bool
	sendRSTP bool
	sendMSTP bool
	rcvdSTP  bool
	rcvdRSTP bool

	mDelayWhile    uint16
	edgeDelayWhile uint16

	txCount   int
	helloWhen uint16

	externalPathCost uint32

	rcvdBpdu    bool
	rcvdFrame   *bpdu.DecodedBPDU // "latest wins" staging slot, overwritten until Port Receive consumes it

	migrationState      migrationState
	receiveState        receiveState
	bridgeDetectionState bridgeDetectionState
	transmitState       transmitState
	l2GatewayState      l2GatewayState

	trees []PortTree // one per tree, parallel to Bridge.trees
}

// PortTree is the per-port-per-tree record.
type PortTree struct {
	port *Port
	tree *Tree

	role         Role
	selectedRole Role
	state        PortState
	infoIs       InfoIs

	proposed, proposing bool
	agreed, agree       bool
	sync_, synced       bool
	forward, forwarding bool
	learn, learning     bool
	reRoot              bool
	reselect, selected  bool
	updtInfo            bool
	fdbFlush            bool
	disputed            bool

	fdWhile, rrWhile, rbWhile, tcWhile uint16

	rcvdMsg bool
	msgRole               bpdu.WireRole
	msgProposal           bool
	msgAgreement          bool
	rcvdTc, tcAck, tcProp, newInfo bool

	portPriorityVector priority.Vector
	portTimes          priority.Times
	msgPriorityVector  priority.Vector
	msgTimes           priority.Times

	portID       priority.PortID
	portPathCost uint32
	portPriority uint8

	informationState    informationState
	roleTransitionState roleTransitionState
	stateTransitionState stateTransitionState
	topologyChangeState topologyChangeState
}

// Tree is one spanning-tree instance: the CIST (index 0) or an MSTI
// (index 1..N).
type Tree struct {
	index int
	mstid uint16 // 0 for the CIST

	rootPriorityVector priority.Vector
	rootTimes          priority.Times
	rootPortIndex      int // -1 when this bridge is root for the tree

	topologyChange     bool
	topologyChangeCount uint32

	roleSelectionState roleSelectionState
}

// NewBridge is the single public constructor: it allocates the fixed
// port/tree arenas, sets BEGIN, and runs one settled scheduler pass
// before returning, clearing BEGIN as it goes.
func NewBridge(portCount, mstiCount int, callbacks Callbacks, address [6]byte, forceVersion Version) (*Bridge, error) {
	if portCount <= 0 {
		return nil, fmt.Errorf("stpengine: portCount must be positive, got %d", portCount)
	}
	if mstiCount < 0 {
		return nil, fmt.Errorf("stpengine: mstiCount must not be negative, got %d", mstiCount)
	}
	if err := validateCallbacks(callbacks); err != nil {
		return nil, err
	}

	treeCount := mstiCount + 1
	b := &Bridge{
		address:        address,
		forceVersion:   forceVersion,
		version:        forceVersion,
		migrateTime:    DefaultMigrateTime,
		txHoldCount:    DefaultTxHoldCount,
		begin:          true,
		callbacks:      callbacks,
		bridgePriority: make([]uint16, treeCount),
	}

	b.ports = make([]Port, portCount)
	b.trees = make([]Tree, treeCount)

	for t := 0; t < treeCount; t++ {
		b.trees[t] = Tree{index: t, rootPortIndex: -1}
		if t > 0 {
			b.trees[t].mstid = uint16(t)
		}
		b.bridgePriority[t] = 0x8000
	}

	for p := 0; p < portCount; p++ {
		b.ports[p] = Port{
			index:            p,
			externalPathCost: DefaultPathCost(0),
			trees:            make([]PortTree, treeCount),
		}
		for t := 0; t < treeCount; t++ {
			b.ports[p].trees[t] = PortTree{
				port:         &b.ports[p],
				tree:         &b.trees[t],
				role:         RoleDisabled,
				selectedRole: RoleDisabled,
				portPathCost: DefaultPathCost(0),
				portPriority: 0x80,
			}
		}
	}
	for p := range b.ports {
		for t := range b.ports[p].trees {
			b.recomputePortID(p, t)
		}
	}

	b.runStateMachines(time.Time{})
	return b, nil
}

// Close releases no resources of its own (the arenas are ordinary Go
// slices collected by the garbage collector); it exists to document
// to make host code that expects an explicit teardown call happy.
func (b *Bridge) Close() error { return nil }

func (b *Bridge) port(index int) (*Port, error) {
	if index < 0 || index >= len(b.ports) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrPortOutOfRange, index, len(b.ports))
	}
	return &b.ports[index], nil
}

func (b *Bridge) tree(index int) (*Tree, error) {
	if index < 0 || index >= len(b.trees) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrTreeOutOfRange, index, len(b.trees))
	}
	return &b.trees[index], nil
}

func (b *Bridge) portTree(portIndex, treeIndex int) (*PortTree, error) {
	p, err := b.port(portIndex)
	if err != nil {
		return nil, err
	}
	if treeIndex < 0 || treeIndex >= len(p.trees) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrTreeOutOfRange, treeIndex, len(p.trees))
	}
	return &p.trees[treeIndex], nil
}

// bridgeIdentifier returns this bridge's BridgeID for tree t: the
// administratively set priority with the tree's MSTID folded into the
// low 12 bits as the system ID extension (the "Priority:16 including
// sysIdExt" field of 802.1Q section 13.24), and the bridge's fixed
// address.
func (b *Bridge) bridgeIdentifier(t int) priority.BridgeID {
	prio := (b.bridgePriority[t] &^ 0x0FFF) | (b.trees[t].mstid & 0x0FFF)
	return priority.BridgeID{Priority: prio, Address: b.address}
}

func (b *Bridge) recomputePortID(portIndex, treeIndex int) {
	pt := &b.ports[portIndex].trees[treeIndex]
	pt.portID = priority.MakePortID(pt.portPriority, uint16(portIndex))
}

func (b *Bridge) treeCount() int { return len(b.trees) }
func (b *Bridge) portCount() int { return len(b.ports) }

// rstpVersion reports whether the bridge's negotiated protocol
// version is RSTP or MSTP (802.1Q's "rstpVersion(bridge)" predicate,
// used throughout section 13 to gate RSTP-only behavior).
func (b *Bridge) rstpVersion() bool {
	return b.version == VersionRSTP || b.version == VersionMSTP
}

func (b *Bridge) mstpVersion() bool { return b.version == VersionMSTP }
