package stpengine

import (
	"time"

	"github.com/thelastdreamer/spantree/pkg/bpdu"
)

// transmitState is the Port Transmit machine's state set (802.1Q
// section 13.40).
type transmitState uint8

const (
	transmitIdle transmitState = iota
	transmitSent
)

func (b *Bridge) stepPortTransmit(p *Port, ts time.Time) bool {
	if b.begin {
		if p.transmitState != transmitIdle {
			p.transmitState = transmitIdle
			return true
		}
		return false
	}

	anyNewInfo := false
	for i := range p.trees {
		if p.trees[i].newInfo {
			anyNewInfo = true
			break
		}
	}

	ready := anyNewInfo && p.helloWhen == 0 && p.txCount < b.txHoldCount
	if !ready {
		if p.transmitState != transmitIdle {
			p.transmitState = transmitIdle
			return true
		}
		return false
	}

	if b.transmitBpdu(p, ts) {
		p.transmitState = transmitSent
		return true
	}
	return false
}

// transmitBpdu builds and hands off one BPDU for p: the BPDU type is
// the highest the port is configured to send and the peer has been
// observed to understand. It returns false without consuming
// newInfo/txCount/helloWhen when the host has no buffer available
// this tick, so the transmission is retried next tick.
func (b *Bridge) transmitBpdu(p *Port, ts time.Time) bool {
	p.sendMSTP = b.mstpVersion() && p.sendRSTP

	var payload []byte
	switch {
	case p.sendMSTP:
		mst, err := b.buildMST(p)
		if err != nil {
			return false
		}
		buf, err := bpdu.EncodeMST(mst)
		if err != nil {
			return false
		}
		payload = buf

	case p.sendRSTP:
		payload = bpdu.EncodeRST(bpdu.RST{Config: b.buildConfig(p, &p.trees[0])})

	default:
		payload = bpdu.EncodeConfig(b.buildConfig(p, &p.trees[0]))
	}

	var out TransmitBuffer
	portIndex := p.index
	b.callInCallback(func() {
		out = b.callbacks.TransmitGetBuffer(b, portIndex, len(payload), ts)
	})
	if out == nil {
		return false
	}
	copy(out, payload)
	b.callInCallback(func() {
		b.callbacks.TransmitReleaseBuffer(b, out)
	})

	p.txCount++
	p.helloWhen = DefaultHelloTime
	for i := range p.trees {
		p.trees[i].newInfo = false
	}
	return true
}

func (b *Bridge) buildConfig(p *Port, pt *PortTree) bpdu.Config {
	c := bpdu.Config{
		RootID:       pt.portPriorityVector.RootID,
		RootPathCost: pt.portPriorityVector.ExternalRootPathCost,
		BridgeID:     pt.portPriorityVector.DesignatedBridgeID,
		PortID:       pt.portID,
		MessageAge:   durationToWireUnits(pt.portTimes.MessageAge),
		MaxAge:       durationToWireUnits(pt.portTimes.MaxAge),
		HelloTime:    durationToWireUnits(time.Duration(DefaultHelloTime) * time.Second),
		ForwardDelay: durationToWireUnits(pt.portTimes.ForwardDelay),
	}
	c.SetRole(roleToWireRole(pt.role))

	if b.trees[pt.tree.index].topologyChange {
		c.Flags |= bpdu.FlagTopologyChange
	}
	if pt.tcAck {
		c.Flags |= bpdu.FlagTopologyChangeAck
	}
	if pt.proposing {
		c.Flags |= bpdu.FlagProposal
	}
	if pt.agree {
		c.Flags |= bpdu.FlagAgreement
	}
	if pt.learning {
		c.Flags |= bpdu.FlagLearning
	}
	if pt.forwarding {
		c.Flags |= bpdu.FlagForwarding
	}
	return c
}

func (b *Bridge) buildMST(p *Port) (bpdu.MST, error) {
	cistPt := &p.trees[0]
	m := bpdu.MST{
		Config: b.buildConfig(p, cistPt),
		ConfigID: bpdu.MSTConfigID{
			Name:          b.mstConfigName,
			RevisionLevel: b.mstConfigRevision,
			Digest:        b.vidToMSTID.ComputeDigest(),
		},
		CISTInternalRootCost: cistPt.portPriorityVector.InternalRootPathCost,
		CISTBridgeID:         cistPt.portPriorityVector.DesignatedBridgeID,
		CISTRemainingHops:    cistPt.portTimes.RemainingHops,
	}

	for t := 1; t < len(p.trees); t++ {
		pt := &p.trees[t]
		msti := bpdu.MSTIConfigMessage{
			MSTID:            b.trees[t].mstid,
			RegionalRootID:   pt.portPriorityVector.RegionalRootID,
			InternalRootCost: pt.portPriorityVector.InternalRootPathCost,
			BridgePriority:   uint8(pt.portPriorityVector.DesignatedBridgeID.Priority >> 8),
			PortPriority:     pt.portID.Priority(),
			RemainingHops:    pt.portTimes.RemainingHops,
		}
		msti.Flags = msti.Flags &^ bpdu.FlagRoleMask
		msti.Flags |= byte(roleToWireRole(pt.role)) << bpdu.FlagRoleShift
		if b.trees[t].topologyChange {
			msti.Flags |= bpdu.FlagTopologyChange
		}
		if pt.proposing {
			msti.Flags |= bpdu.FlagProposal
		}
		if pt.agree {
			msti.Flags |= bpdu.FlagAgreement
		}
		m.MSTIs = append(m.MSTIs, msti)
	}
	return m, nil
}

func roleToWireRole(r Role) bpdu.WireRole {
	switch r {
	case RoleRoot, RoleMaster:
		return bpdu.WireRoleRootOrMaster
	case RoleDesignated:
		return bpdu.WireRoleDesignated
	case RoleAlternate, RoleBackup:
		return bpdu.WireRoleAlternateBackup
	default:
		return bpdu.WireRoleUnknown
	}
}

func durationToWireUnits(d time.Duration) uint16 {
	const unit = time.Second / 256
	return uint16(d / unit)
}
