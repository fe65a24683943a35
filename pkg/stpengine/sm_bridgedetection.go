package stpengine

import "time"

// bridgeDetectionState is the Bridge Detection machine's state set
// (802.1Q section 13.25): decides whether a
// port is an "edge port" that may skip the forwarding delay.
type bridgeDetectionState uint8

const (
	bridgeDetectionNone bridgeDetectionState = iota
	bridgeDetectionEdge
	bridgeDetectionNotEdge
)

func (b *Bridge) stepBridgeDetection(p *Port, ts time.Time) bool {
	next := b.bridgeDetectionCheckConditions(p)
	if next == bridgeDetectionNone {
		return false
	}
	p.bridgeDetectionState = next
	b.bridgeDetectionInit(p)
	return true
}

func (b *Bridge) bridgeDetectionCheckConditions(p *Port) bridgeDetectionState {
	if b.begin {
		if p.bridgeDetectionState == bridgeDetectionNotEdge {
			return bridgeDetectionNone
		}
		return bridgeDetectionNotEdge
	}

	isEdgeCandidate := p.adminEdge || (p.autoEdge && p.operP2P && p.edgeDelayWhile == 0)

	switch p.bridgeDetectionState {
	case bridgeDetectionNotEdge:
		if isEdgeCandidate {
			return bridgeDetectionEdge
		}
	case bridgeDetectionEdge:
		if !p.adminEdge && (!p.autoEdge || !p.operP2P) {
			return bridgeDetectionNotEdge
		}
	default:
		return bridgeDetectionNotEdge
	}
	return bridgeDetectionNone
}

func (b *Bridge) bridgeDetectionInit(p *Port) {
	switch p.bridgeDetectionState {
	case bridgeDetectionEdge:
		p.operEdge = true
	case bridgeDetectionNotEdge:
		p.operEdge = false
		if p.autoEdge {
			p.edgeDelayWhile = b.migrateTime
		}
	}
}
