package stpengine

import "time"

// roleTransitionState is the Port Role Transitions machine's state
// set (802.1Q section 13.34-13.38). The standard
// defines a separate sub-machine per role (Disabled, Root, Designated,
// Alternate/Backup, Master); this engine folds Root and Master into
// one state since both simply forward toward this tree's root and
// both use the same rapid-transition/forward-delay logic, and folds
// Alternate and Backup into one discarding-forever state, per
// DESIGN.md's list of deliberate simplifications.
type roleTransitionState uint8

const (
	rtsNone roleTransitionState = iota
	rtsDisabled
	rtsRoot
	rtsDesignated
	rtsAlternateBackup
)

func (b *Bridge) stepRoleTransitions(portIndex, treeIndex int, ts time.Time) bool {
	pt := &b.ports[portIndex].trees[treeIndex]

	prevState := pt.roleTransitionState
	prevForward, prevLearn := pt.forward, pt.learn
	prevSync, prevSynced := pt.sync_, pt.synced
	prevAgree, prevAgreed := pt.agree, pt.agreed
	prevProposing, prevProposed := pt.proposing, pt.proposed
	prevReRoot := pt.reRoot
	prevRole := pt.role

	// Adopt the role Port Role Selection chose once no designated-info
	// update is pending (that path is handled by Port Information's
	// UPDATE state).
	if pt.selected && !pt.updtInfo && pt.role != pt.selectedRole {
		pt.role = pt.selectedRole
		port, tree, role := pt.port.index, pt.tree.index, pt.role
		b.callInCallback(func() {
			b.callbacks.OnPortRoleChanged(b, port, tree, role, ts)
		})
	}

	next := b.nextRoleTransitionState(pt)
	if next != prevState {
		pt.roleTransitionState = next
		b.roleTransitionInit(pt, next)
	} else {
		b.roleTransitionTick(pt)
	}

	return pt.roleTransitionState != prevState || pt.role != prevRole ||
		pt.forward != prevForward || pt.learn != prevLearn ||
		pt.sync_ != prevSync || pt.synced != prevSynced ||
		pt.agree != prevAgree || pt.agreed != prevAgreed ||
		pt.proposing != prevProposing || pt.proposed != prevProposed ||
		pt.reRoot != prevReRoot
}

func (b *Bridge) nextRoleTransitionState(pt *PortTree) roleTransitionState {
	if b.begin {
		return rtsDisabled
	}
	switch pt.role {
	case RoleDisabled:
		return rtsDisabled
	case RoleRoot, RoleMaster:
		return rtsRoot
	case RoleDesignated:
		return rtsDesignated
	default: // RoleAlternate, RoleBackup
		return rtsAlternateBackup
	}
}

func (b *Bridge) roleTransitionInit(pt *PortTree, state roleTransitionState) {
	switch state {
	case rtsDisabled:
		pt.forward, pt.learn = false, false
		pt.sync_, pt.synced = false, true
		pt.proposing, pt.proposed = false, false
		pt.agree, pt.agreed = false, false
		pt.reRoot = false
		pt.fdWhile, pt.rrWhile, pt.rbWhile = 0, 0, 0

	case rtsRoot:
		pt.sync_ = false
		pt.proposing = false
		pt.reRoot = false
		if pt.port.operEdge {
			pt.synced, pt.agree = true, true
			pt.learn, pt.forward = true, true
			pt.fdWhile, pt.rrWhile = 0, 0
		} else {
			pt.synced = false
			pt.agree = pt.msgAgreement
			pt.learn, pt.forward = false, false
			pt.fdWhile = DefaultForwardDelay
			pt.rrWhile = DefaultForwardDelay
		}

	case rtsDesignated:
		pt.reRoot = false
		if pt.port.operEdge {
			pt.sync_, pt.synced = false, true
			pt.proposing, pt.proposed = false, false
			pt.agree, pt.agreed = true, true
			pt.learn, pt.forward = true, true
			pt.fdWhile = 0
		} else {
			pt.sync_, pt.synced = true, false
			pt.proposing, pt.proposed = true, false
			pt.agree, pt.agreed = false, false
			pt.learn, pt.forward = false, false
			pt.fdWhile = DefaultForwardDelay
		}

	case rtsAlternateBackup:
		pt.forward, pt.learn = false, false
		pt.sync_, pt.synced = false, true
		pt.proposing, pt.proposed = false, false
		pt.agree, pt.agreed = false, false
		pt.reRoot = false
		pt.rbWhile = DefaultForwardDelay
		pt.fdWhile, pt.rrWhile = 0, 0
	}
}

// roleTransitionTick advances a port already settled into its role
// state: the rapid-transition agreement path and the forward-delay
// timeout path both land here, re-entered every pass until nothing
// further changes.
func (b *Bridge) roleTransitionTick(pt *PortTree) {
	switch pt.roleTransitionState {
	case rtsRoot:
		if pt.msgAgreement {
			pt.agree = true
		}
		if pt.agree && !pt.synced {
			pt.synced = true
			pt.fdWhile, pt.rrWhile = 0, 0
		}
		if pt.fdWhile == 0 && !pt.forward {
			pt.learn, pt.forward = true, true
		}

	case rtsDesignated:
		if pt.msgAgreement {
			pt.agreed = true
		}
		if pt.agreed && pt.sync_ {
			pt.sync_, pt.synced = false, true
			pt.proposing = false
			pt.fdWhile = 0
		}
		if pt.fdWhile == 0 && !pt.forward {
			pt.learn, pt.forward = true, true
		}
	}
}
