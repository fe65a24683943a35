package stpengine

import "time"

// topologyChangeState is the Topology Change machine's state set
// (802.1Q section 13.25).
type topologyChangeState uint8

const (
	tcNone topologyChangeState = iota
	tcInactive
	tcLearningState
	tcDetected
	tcActive
	tcNotifiedTcn
	tcNotifiedTc
	tcPropagating
	tcAcknowledged
)

// tcWhileArmValue is max(HelloTime+1, 2) with the engine's fixed
// default HelloTime.
const tcWhileArmValue = DefaultHelloTime + 1

func (b *Bridge) stepTopologyChange(portIndex, treeIndex int, ts time.Time) bool {
	pt := &b.ports[portIndex].trees[treeIndex]
	next := b.topologyChangeCheckConditions(pt)
	if next == tcNone {
		return false
	}
	pt.topologyChangeState = next
	b.topologyChangeInit(pt, next, ts)
	return true
}

func (b *Bridge) topologyChangeCheckConditions(pt *PortTree) topologyChangeState {
	if b.begin {
		if pt.topologyChangeState != tcInactive {
			return tcInactive
		}
		return tcNone
	}

	switch pt.topologyChangeState {
	case tcInactive:
		if pt.rcvdTc {
			if pt.tree.index == 0 && pt.role == RoleDesignated {
				return tcNotifiedTcn
			}
			return tcNotifiedTc
		}
		if pt.learning && !pt.forwarding {
			return tcLearningState
		}

	case tcLearningState:
		if pt.forwarding {
			return tcDetected
		}
		if !pt.learning {
			return tcInactive
		}

	case tcDetected:
		return tcActive

	case tcActive:
		if pt.rcvdTc {
			return tcNotifiedTc
		}
		if pt.tcWhile == 0 {
			return tcInactive
		}

	case tcNotifiedTcn, tcNotifiedTc:
		return tcPropagating

	case tcPropagating:
		return tcAcknowledged

	case tcAcknowledged:
		if pt.tcWhile == 0 {
			return tcInactive
		}

	default:
		return tcInactive
	}
	return tcNone
}

func (b *Bridge) topologyChangeInit(pt *PortTree, state topologyChangeState, ts time.Time) {
	portIndex, treeIndex := pt.port.index, pt.tree.index

	switch state {
	case tcInactive:
		pt.tcWhile = 0
		pt.rcvdTc = false
		pt.tcAck = false
		pt.tcProp = false

	case tcDetected:
		b.armTcWhile(pt, ts)

	case tcActive:
		tree := &b.trees[treeIndex]
		tree.topologyChange = true
		tree.topologyChangeCount++
		b.callInCallback(func() {
			b.callbacks.OnTopologyChange(b, treeIndex, ts)
		})

	case tcNotifiedTcn:
		pt.rcvdTc = false

	case tcNotifiedTc:
		pt.rcvdTc = false
		b.callInCallback(func() {
			b.callbacks.OnNotifiedTopologyChange(b, portIndex, treeIndex, ts)
		})

	case tcPropagating:
		b.armTcWhile(pt, ts)
		pt.tcProp = true

	case tcAcknowledged:
		pt.tcProp = false
		pt.tcAck = false
	}
}

// armTcWhile implements the entry action shared by
// DETECTED and PROPAGATING: arm every other port of the tree with
// tcWhile and flush this port's filtering database entries for the
// tree.
func (b *Bridge) armTcWhile(pt *PortTree, ts time.Time) {
	treeIndex := pt.tree.index
	for i := range b.ports {
		if i == pt.port.index {
			continue
		}
		other := &b.ports[i].trees[treeIndex]
		other.tcWhile = tcWhileArmValue
	}
	portIndex := pt.port.index
	b.callInCallback(func() {
		b.callbacks.FlushFdb(b, portIndex, treeIndex, FlushOnTopologyChange)
	})
}
