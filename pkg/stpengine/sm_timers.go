package stpengine

import "time"

// OnOneSecondTick is the Port Timers machine (802.1Q section 13.25,
// 802.1Q section 13.39): it decrements every nonzero hold-down timer
// by one tick and then drives the scheduler to quiescence. Hosts are
// expected to call this roughly once per second; the engine does not
// run its own clock.
func (b *Bridge) OnOneSecondTick(ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.ports {
		p := &b.ports[i]
		decrement(&p.helloWhen)
		decrement(&p.mDelayWhile)
		decrement(&p.edgeDelayWhile)
		if p.txCount > 0 {
			p.txCount--
		}
		for j := range p.trees {
			pt := &p.trees[j]
			decrement(&pt.fdWhile)
			decrement(&pt.rrWhile)
			decrement(&pt.rbWhile)
			decrement(&pt.tcWhile)
		}
	}

	b.runStateMachines(ts)
}

func decrement(v *uint16) {
	if *v > 0 {
		*v--
	}
}
