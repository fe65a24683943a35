package stpengine

import "time"

// runStateMachines is the scheduler loop: it repeatedly scans every
// (machine, port, tree) tuple in a fixed order, running each machine's
// CheckConditions and, on a transition, its InitState, until a full
// pass makes no transition at all — the "settled" condition. BEGIN is
// cleared after the first settled pass.
//
// The scan order below is load-bearing: observable callback ordering
// depends on it.
func (b *Bridge) runStateMachines(ts time.Time) {
	for {
		progress := false

		// Per-port machines, port-major order.
		for i := range b.ports {
			p := &b.ports[i]

			if b.stepBridgeDetection(p, ts) {
				progress = true
			}
			if b.stepPortProtocolMigration(p, ts) {
				progress = true
			}
			if b.stepPortReceive(p, ts) {
				progress = true
			}
			if b.stepL2Gateway(p, ts) {
				progress = true
			}
		}

		// Per-port-per-tree machines, tree-major then port-minor, as
		// mstp-lib iterates: information/role-selection settle a tree
		// before role transitions/state transitions/topology change
		// act on the resulting roles.
		for t := range b.trees {
			if b.stepPortInformation(t, ts) {
				progress = true
			}
			if b.stepRoleSelection(t, ts) {
				progress = true
			}
			for p := range b.ports {
				if b.stepRoleTransitions(p, t, ts) {
					progress = true
				}
				if b.stepPortStateTransition(p, t, ts) {
					progress = true
				}
				if b.stepTopologyChange(p, t, ts) {
					progress = true
				}
			}
		}

		// Per-port machines that react to the state above.
		for i := range b.ports {
			p := &b.ports[i]
			if b.stepPortTransmit(p, ts) {
				progress = true
			}
		}

		if !progress {
			if b.begin {
				b.begin = false
			}
			return
		}
	}
}

// RunStateMachines exposes the scheduler for hosts that mutate input
// variables through means other than the named public entry points.
// Every other public method already drives the
// scheduler to quiescence itself; this is rarely needed directly.
func (b *Bridge) RunStateMachines(timestamp time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runStateMachines(timestamp)
}
