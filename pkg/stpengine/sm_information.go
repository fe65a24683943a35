package stpengine

import (
	"time"

	"github.com/thelastdreamer/spantree/pkg/bpdu"
	"github.com/thelastdreamer/spantree/pkg/priority"
)

// informationState is the Port Information machine's state set
// (802.1Q section 13.26): classifies how a
// received message relates to the information already stored for
// (port, tree) and decides whether it replaces it.
type informationState uint8

const (
	informationNone informationState = iota
	informationDisabled
	informationAged
	informationUpdate
	informationCurrent
	informationReceive
	informationSuperiorDesignated
	informationRepeatedDesignated
	informationInferiorDesignated
	informationNotDesignated
	informationOther
)

// stepPortInformation runs every port's Port Information machine for
// tree t, returning whether any transitioned.
func (b *Bridge) stepPortInformation(t int, ts time.Time) bool {
	progress := false
	for i := range b.ports {
		pt := &b.ports[i].trees[t]
		next := b.informationCheckConditions(pt)
		if next == informationNone {
			continue
		}
		pt.informationState = next
		b.informationInit(pt, next, ts)
		progress = true
	}
	return progress
}

func (b *Bridge) informationCheckConditions(pt *PortTree) informationState {
	if b.begin {
		if pt.informationState == informationDisabled {
			return informationNone
		}
		return informationDisabled
	}

	switch pt.informationState {
	case informationDisabled:
		if pt.port.portEnabled {
			return informationAged
		}

	case informationAged:
		if pt.selected && pt.updtInfo {
			return informationUpdate
		}

	case informationUpdate:
		return informationCurrent

	case informationCurrent:
		if !pt.port.portEnabled {
			return informationDisabled
		}
		if pt.selected && pt.updtInfo {
			return informationUpdate
		}
		if pt.rcvdMsg {
			return informationReceive
		}

	case informationReceive:
		return b.classifyReceivedMessage(pt)

	case informationSuperiorDesignated, informationRepeatedDesignated,
		informationInferiorDesignated, informationNotDesignated, informationOther:
		return informationCurrent

	default:
		return informationDisabled
	}
	return informationNone
}

// classifyReceivedMessage applies 802.1Q section 13.26.4's
// classification: lexicographic vector comparison plus equality of
// times, gated on whether the sender claims the Designated role.
func (b *Bridge) classifyReceivedMessage(pt *PortTree) informationState {
	if pt.msgRole != bpdu.WireRoleDesignated {
		if pt.infoIs == InfoReceived {
			return informationNotDesignated
		}
		return informationOther
	}

	if priority.Superior(pt.msgPriorityVector, pt.portPriorityVector) {
		return informationSuperiorDesignated
	}
	if priority.SameDesignated(pt.msgPriorityVector, pt.portPriorityVector) &&
		priority.TimesEqual(pt.msgTimes, pt.portTimes) {
		return informationRepeatedDesignated
	}
	return informationInferiorDesignated
}

func (b *Bridge) informationInit(pt *PortTree, state informationState, ts time.Time) {
	switch state {
	case informationDisabled:
		pt.infoIs = InfoDisabled
		pt.reselect = true
		pt.selected = false
		pt.updtInfo = false

	case informationAged:
		pt.infoIs = InfoAged
		pt.reselect = true
		pt.selected = false

	case informationUpdate:
		if pt.selectedRole == RoleDesignated {
			pt.portPriorityVector = b.designatedVector(pt)
			pt.portTimes = b.bridgeHelloTimes(pt.tree.index)
			pt.infoIs = InfoMine
			pt.newInfo = true
		}
		if pt.role != pt.selectedRole {
			pt.role = pt.selectedRole
			port, tree := pt.port.index, pt.tree.index
			role := pt.role
			b.callInCallback(func() {
				b.callbacks.OnPortRoleChanged(b, port, tree, role, ts)
			})
		} else {
			pt.role = pt.selectedRole
		}
		pt.updtInfo = false

	case informationSuperiorDesignated:
		pt.portPriorityVector = pt.msgPriorityVector
		pt.portTimes = pt.msgTimes
		pt.infoIs = InfoReceived
		pt.rcvdMsg = false
		if pt.msgProposal {
			pt.proposed = true
		}
		// Force role re-selection across the whole tree, not just this
		// port — a superior designated advertisement
		// can demote any other port of this tree.
		for i := range b.ports {
			other := &b.ports[i].trees[pt.tree.index]
			other.reselect = true
			other.selected = false
		}

	case informationRepeatedDesignated:
		pt.portPriorityVector = pt.msgPriorityVector
		pt.portTimes = pt.msgTimes
		pt.infoIs = InfoReceived
		pt.rcvdMsg = false
		if pt.msgProposal {
			pt.proposed = true
		}

	case informationInferiorDesignated, informationNotDesignated, informationOther:
		pt.rcvdMsg = false
	}
}

// designatedVector returns the priority vector this bridge would
// advertise out pt's port if it is (or becomes) Designated for its
// tree: the tree's current root vector with the designated fields
// substituted for this bridge and port.
func (b *Bridge) designatedVector(pt *PortTree) priority.Vector {
	t := pt.tree.index
	root := b.trees[t].rootPriorityVector
	return priority.Vector{
		RootID:               root.RootID,
		ExternalRootPathCost: root.ExternalRootPathCost,
		RegionalRootID:       root.RegionalRootID,
		InternalRootPathCost: root.InternalRootPathCost,
		DesignatedBridgeID:   b.bridgeIdentifier(t),
		DesignatedPortID:     pt.portID,
	}
}

// bridgeHelloTimes returns the Times this bridge stamps on information
// it originates for tree t, derived from its own configured timer
// parameters rather than a received BPDU.
func (b *Bridge) bridgeHelloTimes(t int) priority.Times {
	return priority.Times{
		MessageAge:    0,
		MaxAge:        time.Duration(DefaultMaxAge) * time.Second,
		HelloTime:     time.Duration(DefaultHelloTime) * time.Second,
		ForwardDelay:  time.Duration(DefaultForwardDelay) * time.Second,
		RemainingHops: 20,
	}
}
