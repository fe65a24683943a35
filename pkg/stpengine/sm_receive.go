package stpengine

import (
	"time"

	"github.com/thelastdreamer/spantree/pkg/bpdu"
	"github.com/thelastdreamer/spantree/pkg/priority"
)

// receiveState is the Port Receive machine's state set (802.1Q
// section 13.26).
type receiveState uint8

const (
	receiveNone receiveState = iota
	receiveDiscard
	receiveReceive
)

func (b *Bridge) stepPortReceive(p *Port, ts time.Time) bool {
	next := b.portReceiveCheckConditions(p)
	if next == receiveNone {
		return false
	}
	p.receiveState = next
	b.portReceiveInit(p, next, ts)
	return true
}

func (b *Bridge) portReceiveCheckConditions(p *Port) receiveState {
	if b.begin {
		if p.receiveState != receiveDiscard {
			return receiveDiscard
		}
		return receiveNone
	}

	switch p.receiveState {
	case receiveDiscard:
		if p.rcvdBpdu && p.portEnabled {
			return receiveReceive
		}
	case receiveReceive:
		if p.rcvdBpdu && p.portEnabled {
			// A fresh BPDU arrived (or is still pending): re-enter to
			// process it. "Latest wins" — rcvdFrame already holds only
			// the most recently staged decode.
			return receiveReceive
		}
		if !p.portEnabled {
			return receiveDiscard
		}
	default:
		return receiveDiscard
	}
	return receiveNone
}

func (b *Bridge) portReceiveInit(p *Port, state receiveState, ts time.Time) {
	switch state {
	case receiveDiscard:
		p.rcvdBpdu = false
		p.rcvdFrame = nil
		for i := range p.trees {
			p.trees[i].rcvdMsg = false
		}

	case receiveReceive:
		p.edgeDelayWhile = 0
		frame := p.rcvdFrame
		p.rcvdBpdu = false
		p.rcvdFrame = nil
		if frame == nil {
			return
		}

		switch frame.Version {
		case bpdu.VersionSTP:
			p.rcvdSTP, p.rcvdRSTP = true, false
		case bpdu.VersionRSTP:
			p.rcvdSTP, p.rcvdRSTP = false, true
		case bpdu.VersionMSTP:
			p.rcvdSTP, p.rcvdRSTP = false, true
		}

		b.decodeMessage(p, frame)
	}
}

// decodeMessage fills each affected PortTree's message priority vector
// and times from a just-received BPDU: decodes the message priority
// vector and times into the per-tree records, and sets rcvdMsg[tree]
// for every tree present in the BPDU.
func (b *Bridge) decodeMessage(p *Port, frame *bpdu.DecodedBPDU) {
	switch {
	case frame.TCN != nil:
		// A TCN carries no priority vector; Topology Change consumes
		// rcvdTc directly.
		pt := &p.trees[0]
		pt.rcvdTc = true
		pt.rcvdMsg = false

	case frame.Config != nil:
		b.decodeCISTVector(p, frame.Config, false)

	case frame.RST != nil:
		b.decodeCISTVector(p, &frame.RST.Config, false)

	case frame.MST != nil:
		b.decodeMSTMessage(p, frame.MST)
	}
}

func (b *Bridge) decodeCISTVector(p *Port, c *bpdu.Config, internalRegion bool) {
	pt := &p.trees[0]
	pt.msgPriorityVector = priority.Vector{
		RootID:               c.RootID,
		ExternalRootPathCost: c.RootPathCost,
		RegionalRootID:       c.RootID,
		InternalRootPathCost: 0,
		DesignatedBridgeID:   c.BridgeID,
		DesignatedPortID:     c.PortID,
	}
	pt.msgTimes = decodeTimes(c, 20)
	pt.rcvdMsg = true
	pt.msgRole = c.Role()
	pt.msgProposal = c.Flags&bpdu.FlagProposal != 0
	pt.msgAgreement = c.Flags&bpdu.FlagAgreement != 0
	if c.Flags&bpdu.FlagTopologyChange != 0 {
		pt.rcvdTc = true
	}
	if c.Flags&bpdu.FlagTopologyChangeAck != 0 {
		pt.tcAck = true
	}
}

func (b *Bridge) decodeMSTMessage(p *Port, m *bpdu.MST) {
	ours := bpdu.MSTConfigID{
		Name:          b.mstConfigName,
		RevisionLevel: b.mstConfigRevision,
		Digest:        b.vidToMSTID.ComputeDigest(),
	}

	if !m.ConfigID.MatchesRegion(ours) {
		// Region mismatch: treat as RSTP, CIST-only.
		b.decodeCISTVector(p, &m.Config, false)
		return
	}

	pt := &p.trees[0]
	pt.msgPriorityVector = priority.Vector{
		RootID:               m.Config.RootID,
		ExternalRootPathCost: m.Config.RootPathCost,
		RegionalRootID:       m.Config.BridgeID,
		InternalRootPathCost: m.CISTInternalRootCost,
		DesignatedBridgeID:   m.CISTBridgeID,
		DesignatedPortID:     m.Config.PortID,
	}
	pt.msgTimes = decodeTimes(&m.Config, m.CISTRemainingHops)
	pt.rcvdMsg = true
	pt.msgRole = m.Config.Role()
	pt.msgProposal = m.Config.Flags&bpdu.FlagProposal != 0
	pt.msgAgreement = m.Config.Flags&bpdu.FlagAgreement != 0
	if m.Config.Flags&bpdu.FlagTopologyChange != 0 {
		pt.rcvdTc = true
	}
	if m.Config.Flags&bpdu.FlagTopologyChangeAck != 0 {
		pt.tcAck = true
	}

	portNumber := m.Config.PortID.Number()
	for _, msti := range m.MSTIs {
		treeIdx := -1
		for i := range b.trees {
			if b.trees[i].mstid == msti.MSTID {
				treeIdx = i
				break
			}
		}
		if treeIdx < 0 || treeIdx >= len(p.trees) {
			continue // MSTID this bridge does not carry; ignore (802.1Q section 13.7)
		}
		mpt := &p.trees[treeIdx]
		designatedBridge := priority.BridgeID{
			Priority: uint16(msti.BridgePriority)<<8 | (msti.MSTID & 0x0FFF),
			Address:  m.CISTBridgeID.Address,
		}
		designatedPort := priority.MakePortID(msti.PortPriority, portNumber)
		mpt.msgPriorityVector = priority.Vector{
			RootID:               msti.RegionalRootID,
			ExternalRootPathCost: 0,
			RegionalRootID:       msti.RegionalRootID,
			InternalRootPathCost: msti.InternalRootCost,
			DesignatedBridgeID:   designatedBridge,
			DesignatedPortID:     designatedPort,
		}
		mpt.msgTimes = priority.Times{RemainingHops: msti.RemainingHops}
		mpt.rcvdMsg = true
		mpt.msgRole = msti.Role()
		mpt.msgProposal = msti.Flags&bpdu.FlagProposal != 0
		mpt.msgAgreement = msti.Flags&bpdu.FlagAgreement != 0
		if msti.Flags&bpdu.FlagTopologyChange != 0 {
			mpt.rcvdTc = true
		}
	}
}

func decodeTimes(c *bpdu.Config, remainingHops uint8) priority.Times {
	const unit = time.Second / 256
	return priority.Times{
		MessageAge:    time.Duration(c.MessageAge) * unit,
		MaxAge:        time.Duration(c.MaxAge) * unit,
		HelloTime:     time.Duration(c.HelloTime) * unit,
		ForwardDelay:  time.Duration(c.ForwardDelay) * unit,
		RemainingHops: remainingHops,
	}
}
