package stpengine

import "time"

// stateTransitionState is the Port State Transition machine's state
// set (802.1Q section 13.33).
type stateTransitionState uint8

const (
	stsNone stateTransitionState = iota
	stsDiscarding
	stsLearning
	stsForwarding
)

func (b *Bridge) stepPortStateTransition(portIndex, treeIndex int, ts time.Time) bool {
	pt := &b.ports[portIndex].trees[treeIndex]
	next := b.stateTransitionCheckConditions(pt)
	if next == stsNone {
		return false
	}
	pt.stateTransitionState = next
	b.stateTransitionInit(pt, next, ts)
	return true
}

func (b *Bridge) stateTransitionCheckConditions(pt *PortTree) stateTransitionState {
	if b.begin {
		if pt.stateTransitionState != stsDiscarding {
			return stsDiscarding
		}
		return stsNone
	}

	switch pt.stateTransitionState {
	case stsDiscarding:
		if pt.learn {
			return stsLearning
		}
	case stsLearning:
		if pt.forward {
			return stsForwarding
		}
		if !pt.learn {
			return stsDiscarding
		}
	case stsForwarding:
		if !pt.forward {
			return stsDiscarding
		}
	default:
		return stsDiscarding
	}
	return stsNone
}

func (b *Bridge) stateTransitionInit(pt *PortTree, state stateTransitionState, ts time.Time) {
	portIndex, treeIndex := pt.port.index, pt.tree.index

	switch state {
	case stsDiscarding:
		pt.state = StateDiscarding
		pt.learning, pt.forwarding = false, false
		b.callInCallback(func() {
			b.callbacks.EnableLearning(b, portIndex, treeIndex, false, ts)
			b.callbacks.EnableForwarding(b, portIndex, treeIndex, false, ts)
		})

	case stsLearning:
		pt.state = StateLearning
		pt.learning = true
		b.callInCallback(func() {
			b.callbacks.EnableLearning(b, portIndex, treeIndex, true, ts)
		})

	case stsForwarding:
		pt.state = StateForwarding
		pt.forwarding = true
		b.callInCallback(func() {
			b.callbacks.EnableForwarding(b, portIndex, treeIndex, true, ts)
		})
	}
}
