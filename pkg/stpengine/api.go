package stpengine

import (
	"time"

	"github.com/thelastdreamer/spantree/pkg/bpdu"
	"github.com/thelastdreamer/spantree/pkg/priority"
)

// OnPortEnabled and OnPortDisabled report a link coming up or going
// down. detectedPointToPoint feeds operP2P when
// the port's AdminPointToPointMAC is Auto.
func (b *Bridge) OnPortEnabled(portIndex int, speedMbps uint32, detectedPointToPoint bool, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIndex)
	if err != nil {
		return err
	}
	p.portEnabled = true
	p.externalPathCost = DefaultPathCost(speedMbps)
	switch p.adminP2P {
	case AdminP2PForceTrue:
		p.operP2P = true
	case AdminP2PForceFalse:
		p.operP2P = false
	default:
		p.operP2P = detectedPointToPoint
	}
	for t := range p.trees {
		p.trees[t].portPathCost = p.externalPathCost
	}
	b.runStateMachines(ts)
	return nil
}

func (b *Bridge) OnPortDisabled(portIndex int, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIndex)
	if err != nil {
		return err
	}
	p.portEnabled = false
	p.operP2P = false
	b.runStateMachines(ts)
	return nil
}

// OnBpduReceived decodes buf and stages it for Port Receive: a
// malformed BPDU is silently discarded after a debugStrOut diagnostic.
func (b *Bridge) OnBpduReceived(portIndex int, buf []byte, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIndex)
	if err != nil {
		return err
	}

	decoded, decodeErr := bpdu.Decode(buf)
	if decodeErr != nil {
		b.callInCallback(func() {
			b.callbacks.DebugStrOut(b, portIndex, -1, "malformed bpdu: "+decodeErr.Error(), false)
		})
		return nil
	}

	p.rcvdFrame = decoded
	p.rcvdBpdu = true
	b.runStateMachines(ts)
	return nil
}

// SetBridgePriority sets the configured bridge priority for tree;
// the low 12 bits (the MSTID system ID
// extension) are overwritten by the tree's MSTID regardless of what
// is passed here.
func (b *Bridge) SetBridgePriority(treeIndex int, prio uint16, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if treeIndex < 0 || treeIndex >= len(b.trees) {
		return ErrTreeOutOfRange
	}
	b.bridgePriority[treeIndex] = prio
	for p := range b.ports {
		b.ports[p].trees[treeIndex].reselect = true
		b.ports[p].trees[treeIndex].selected = false
	}
	b.runStateMachines(ts)
	return nil
}

func (b *Bridge) SetPortPriority(portIndex, treeIndex int, prio uint8, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pt, err := b.portTree(portIndex, treeIndex)
	if err != nil {
		return err
	}
	pt.portPriority = prio & 0xF0
	b.recomputePortID(portIndex, treeIndex)
	pt.reselect = true
	pt.selected = false
	b.runStateMachines(ts)
	return nil
}

func (b *Bridge) SetPortAdminPathCost(portIndex, treeIndex int, cost uint32, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pt, err := b.portTree(portIndex, treeIndex)
	if err != nil {
		return err
	}
	pt.portPathCost = cost
	pt.reselect = true
	pt.selected = false
	b.runStateMachines(ts)
	return nil
}

func (b *Bridge) SetPortAdminEdge(portIndex int, adminEdge bool, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIndex)
	if err != nil {
		return err
	}
	p.adminEdge = adminEdge
	b.runStateMachines(ts)
	return nil
}

func (b *Bridge) SetPortAutoEdge(portIndex int, autoEdge bool, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIndex)
	if err != nil {
		return err
	}
	p.autoEdge = autoEdge
	b.runStateMachines(ts)
	return nil
}

// SetMstConfigName and SetMstConfigRevision set the two human-chosen
// fields of the MST Configuration Identifier (802.1Q section 13.7);
// the third field, the digest, is always
// recomputed from the VID-to-MSTID table and is never set directly.
func (b *Bridge) SetMstConfigName(name string, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var buf [32]byte
	copy(buf[:], name)
	b.mstConfigName = buf
	b.runStateMachines(ts)
	return nil
}

func (b *Bridge) SetMstConfigRevision(revision uint16, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mstConfigRevision = revision
	b.runStateMachines(ts)
	return nil
}

// SetVlanToMstid assigns VLAN vid to spanning-tree instance mstid (0
// is the CIST). mstid must already have a corresponding tree.
func (b *Bridge) SetVlanToMstid(vid uint16, mstid uint16, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if vid == 0 || vid > 4094 {
		return ErrTreeOutOfRange
	}
	found := mstid == 0
	for _, t := range b.trees {
		if t.mstid == mstid {
			found = true
			break
		}
	}
	if !found {
		return ErrTreeOutOfRange
	}
	b.vidToMSTID[vid] = mstid
	b.runStateMachines(ts)
	return nil
}

func (b *Bridge) SetForceProtocolVersion(version Version, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forceVersion = version
	b.version = version
	b.runStateMachines(ts)
}

// SetMcheck forces port out of STP-compatibility mode back to RSTP.
func (b *Bridge) SetMcheck(portIndex int, ts time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.port(portIndex)
	if err != nil {
		return err
	}
	if b.rstpVersion() {
		p.mcheck = true
	}
	b.runStateMachines(ts)
	return nil
}

// EnableStp and DisableStp reassert or clear BEGIN across the whole
// bridge: DisableStp parks every
// port in the Disabled role; EnableStp reruns the settle pass that
// NewBridge itself performs.
func (b *Bridge) EnableStp(ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.begin = true
	b.runStateMachines(ts)
}

func (b *Bridge) DisableStp(ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.ports {
		b.ports[i].portEnabled = false
	}
	b.begin = true
	b.runStateMachines(ts)
}

// --- Getters for every reportable variable ---

func (b *Bridge) PortRole(portIndex, treeIndex int) (Role, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pt, err := b.portTree(portIndex, treeIndex)
	if err != nil {
		return RoleDisabled, err
	}
	return pt.role, nil
}

func (b *Bridge) PortState(portIndex, treeIndex int) (PortState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pt, err := b.portTree(portIndex, treeIndex)
	if err != nil {
		return StateDiscarding, err
	}
	return pt.state, nil
}

func (b *Bridge) PortPriorityVector(portIndex, treeIndex int) (priority.Vector, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pt, err := b.portTree(portIndex, treeIndex)
	if err != nil {
		return priority.Vector{}, err
	}
	return pt.portPriorityVector, nil
}

func (b *Bridge) PortTimes(portIndex, treeIndex int) (priority.Times, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pt, err := b.portTree(portIndex, treeIndex)
	if err != nil {
		return priority.Times{}, err
	}
	return pt.portTimes, nil
}

func (b *Bridge) TreeRootVector(treeIndex int) (priority.Vector, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.tree(treeIndex)
	if err != nil {
		return priority.Vector{}, err
	}
	return t.rootPriorityVector, nil
}

func (b *Bridge) TreeRootPort(treeIndex int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.tree(treeIndex)
	if err != nil {
		return -1, err
	}
	return t.rootPortIndex, nil
}

func (b *Bridge) TreeTopologyChange(treeIndex int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.tree(treeIndex)
	if err != nil {
		return false, err
	}
	return t.topologyChange, nil
}

func (b *Bridge) TreeTopologyChangeCount(treeIndex int) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.tree(treeIndex)
	if err != nil {
		return 0, err
	}
	return t.topologyChangeCount, nil
}

func (b *Bridge) PortOperEdge(portIndex int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.port(portIndex)
	if err != nil {
		return false, err
	}
	return p.operEdge, nil
}

func (b *Bridge) PortOperPointToPoint(portIndex int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.port(portIndex)
	if err != nil {
		return false, err
	}
	return p.operP2P, nil
}

func (b *Bridge) Version() Version {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}
