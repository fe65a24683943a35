package stpengine

import (
	"time"

	"github.com/thelastdreamer/spantree/pkg/priority"
)

// roleSelectionState is the Port Role Selection machine's state set.
// Unlike most of the engine's machines this one is per-tree, not
// per-port, and its whole job happens in a single entry action; the
// two states exist only to fit the CheckConditions/InitState shape
// the rest of the engine uses.
type roleSelectionState uint8

const (
	roleSelectionIdle roleSelectionState = iota
	roleSelectionRecompute
)

// stepRoleSelection recomputes tree t's roles whenever any of its
// ports has reselect set.
func (b *Bridge) stepRoleSelection(t int, ts time.Time) bool {
	tree := &b.trees[t]

	anyReselect := false
	for p := range b.ports {
		if b.ports[p].trees[t].reselect {
			anyReselect = true
			break
		}
	}
	if !anyReselect {
		tree.roleSelectionState = roleSelectionIdle
		return false
	}

	tree.roleSelectionState = roleSelectionRecompute
	b.updtRolesTree(t)
	return true
}

// updtRolesTree is 802.1Q section 13.27's role selection algorithm,
// condensed to a two-pass form: first
// the bridge's own vector for the tree (and its root port), then every
// port's role relative to that vector.
func (b *Bridge) updtRolesTree(t int) {
	tree := &b.trees[t]

	best := priority.Vector{
		RootID:             b.bridgeIdentifier(t),
		RegionalRootID:     b.bridgeIdentifier(t),
		DesignatedBridgeID: b.bridgeIdentifier(t),
	}
	bestPort := -1

	for p := range b.ports {
		pt := &b.ports[p].trees[t]
		if pt.infoIs != InfoReceived {
			continue
		}
		cand := pt.portPriorityVector
		if t == 0 {
			cand.ExternalRootPathCost += pt.portPathCost
		} else {
			cand.InternalRootPathCost += pt.portPathCost
		}

		switch {
		case bestPort < 0 || priority.Superior(cand, best):
			best = cand
			bestPort = p
		case priority.Equal(cand, best) && pt.portID < b.ports[bestPort].trees[t].portID:
			bestPort = p
		}
	}

	tree.rootPriorityVector = best
	tree.rootPortIndex = bestPort
	if bestPort >= 0 {
		tree.rootTimes = b.ports[bestPort].trees[t].portTimes
	} else {
		tree.rootTimes = b.bridgeHelloTimes(t)
	}

	for p := range b.ports {
		pt := &b.ports[p].trees[t]
		designated := b.designatedVector(pt)

		switch {
		case pt.infoIs == InfoDisabled:
			pt.selectedRole = RoleDisabled

		case p == bestPort:
			pt.selectedRole = RoleRoot

		case pt.infoIs == InfoReceived && priority.Superior(pt.portPriorityVector, designated):
			// A received advertisement on this port beats what this
			// bridge would itself advertise: someone else already
			// covers this link better.
			if pt.portPriorityVector.DesignatedBridgeID.Equal(b.bridgeIdentifier(t)) {
				pt.selectedRole = RoleBackup
			} else {
				pt.selectedRole = RoleAlternate
			}

		default:
			pt.selectedRole = RoleDesignated
			if !priority.Equal(pt.portPriorityVector, designated) {
				pt.updtInfo = true
			}
		}

		// MSTI Master role (802.1Q section 13.27, note 3): an MSTI port
		// whose CIST counterpart is the CIST root port carries the
		// region's only path to the true root, so every MSTI treats it
		// as Master unless the MSTI vector alone makes it Designated
		// (or the port is Disabled).
		if t != 0 && b.ports[p].trees[0].role == RoleRoot && pt.selectedRole != RoleDesignated && pt.selectedRole != RoleDisabled {
			pt.selectedRole = RoleMaster
		}

		pt.reselect = false
		pt.selected = true
	}
}
