package stpengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCallbacks is a minimal host stand-in: it hands out real []byte
// buffers for transmission, records the last one released (from any
// port), and otherwise just counts callback invocations.
type fakeCallbacks struct {
	txBuf         map[int][]byte
	roleChanges   []roleChangeEvent
	topoChanges   int
	notifiedTopos int
}

type roleChangeEvent struct {
	port, tree int
	role       Role
}

func newFakeCallbacks() *fakeCallbacks {
	return &fakeCallbacks{txBuf: make(map[int][]byte)}
}

func (f *fakeCallbacks) EnableBpduTrapping(bridge *Bridge, enable bool, timestamp time.Time) {}
func (f *fakeCallbacks) EnableLearning(bridge *Bridge, port, tree int, enable bool, timestamp time.Time) {
}
func (f *fakeCallbacks) EnableForwarding(bridge *Bridge, port, tree int, enable bool, timestamp time.Time) {
}

func (f *fakeCallbacks) TransmitGetBuffer(bridge *Bridge, port int, bpduSize int, timestamp time.Time) TransmitBuffer {
	return make(TransmitBuffer, bpduSize)
}

func (f *fakeCallbacks) TransmitReleaseBuffer(bridge *Bridge, buffer TransmitBuffer) {
	// The test harness looks this up by port via takeTx; stash under -1
	// and let the caller supply the right port index since the
	// callback signature doesn't carry it.
	f.txBuf[-1] = append([]byte{}, buffer...)
}

func (f *fakeCallbacks) FlushFdb(bridge *Bridge, port, tree int, flushType FlushType) {}
func (f *fakeCallbacks) DebugStrOut(bridge *Bridge, port, tree int, str string, flush bool) {}

func (f *fakeCallbacks) OnTopologyChange(bridge *Bridge, tree int, timestamp time.Time) {
	f.topoChanges++
}

func (f *fakeCallbacks) OnNotifiedTopologyChange(bridge *Bridge, port, tree int, timestamp time.Time) {
	f.notifiedTopos++
}

func (f *fakeCallbacks) OnPortRoleChanged(bridge *Bridge, port, tree int, newRole Role, timestamp time.Time) {
	f.roleChanges = append(f.roleChanges, roleChangeEvent{port, tree, newRole})
}

func (f *fakeCallbacks) AllocAndZeroMemory(size int) []byte { return make([]byte, size) }
func (f *fakeCallbacks) FreeMemory(buf []byte)              {}

func (f *fakeCallbacks) takeTx() []byte {
	buf := f.txBuf[-1]
	delete(f.txBuf, -1)
	return buf
}

func macOf(last byte) [6]byte { return [6]byte{0, 0, 0, 0, 0, last} }

func TestNewBridgeSinglePortBecomesDesignated(t *testing.T) {
	b, err := NewBridge(1, 0, newFakeCallbacks(), macOf(1), VersionRSTP)
	require.NoError(t, err)

	require.NoError(t, b.OnPortEnabled(0, 1000, true, time.Time{}))

	role, err := b.PortRole(0, 0)
	require.NoError(t, err)
	require.Equal(t, RoleDesignated, role)
}

func TestEdgePortForwardsImmediately(t *testing.T) {
	b, err := NewBridge(1, 0, newFakeCallbacks(), macOf(2), VersionRSTP)
	require.NoError(t, err)

	require.NoError(t, b.SetPortAdminEdge(0, true, time.Time{}))
	require.NoError(t, b.OnPortEnabled(0, 1000, true, time.Time{}))

	state, err := b.PortState(0, 0)
	require.NoError(t, err)
	require.Equal(t, StateForwarding, state)
}

func TestNonEdgePortWaitsForForwardDelay(t *testing.T) {
	b, err := NewBridge(1, 0, newFakeCallbacks(), macOf(3), VersionRSTP)
	require.NoError(t, err)
	require.NoError(t, b.OnPortEnabled(0, 1000, false, time.Time{}))

	state, _ := b.PortState(0, 0)
	require.Equal(t, StateDiscarding, state)

	for i := 0; i < DefaultForwardDelay+1; i++ {
		b.OnOneSecondTick(time.Time{})
	}

	state, _ = b.PortState(0, 0)
	require.Equal(t, StateForwarding, state)
}

// TestTwoBridgeConvergence wires two single-port bridges back to back
// through a hand-driven relay and checks that the lower bridge ID wins
// the root role while the other bridge's port becomes the Root port.
func TestTwoBridgeConvergence(t *testing.T) {
	cbA := newFakeCallbacks()
	cbB := newFakeCallbacks()

	a, err := NewBridge(1, 0, cbA, macOf(1), VersionRSTP) // lower MAC: wins root
	require.NoError(t, err)
	b, err := NewBridge(1, 0, cbB, macOf(2), VersionRSTP)
	require.NoError(t, err)

	require.NoError(t, a.OnPortEnabled(0, 1000, true, time.Time{}))
	require.NoError(t, b.OnPortEnabled(0, 1000, true, time.Time{}))

	// Exchange whatever each side has queued, several rounds, until
	// both sides stop producing new frames.
	for round := 0; round < 10; round++ {
		a.OnOneSecondTick(time.Time{})
		b.OnOneSecondTick(time.Time{})

		fromA := cbA.takeTx()
		fromB := cbB.takeTx()

		settled := true
		if fromA != nil {
			require.NoError(t, b.OnBpduReceived(0, fromA, time.Time{}))
			settled = false
		}
		if fromB != nil {
			require.NoError(t, a.OnBpduReceived(0, fromB, time.Time{}))
			settled = false
		}
		if settled {
			break
		}
	}

	roleA, err := a.PortRole(0, 0)
	require.NoError(t, err)
	roleB, err := b.PortRole(0, 0)
	require.NoError(t, err)

	require.Equal(t, RoleDesignated, roleA)
	require.Equal(t, RoleRoot, roleB)

	rootA, _ := a.TreeRootVector(0)
	rootB, _ := b.TreeRootVector(0)
	require.Equal(t, rootA.RootID, rootB.RootID)
	require.Equal(t, a.bridgeIdentifier(0), rootA.RootID)
}

func TestOnBpduReceivedDiscardsMalformedInput(t *testing.T) {
	b, err := NewBridge(1, 0, newFakeCallbacks(), macOf(4), VersionRSTP)
	require.NoError(t, err)
	require.NoError(t, b.OnPortEnabled(0, 1000, true, time.Time{}))

	require.NoError(t, b.OnBpduReceived(0, []byte{1, 2}, time.Time{}))
}

func TestSetBridgePriorityTriggersReselection(t *testing.T) {
	b, err := NewBridge(1, 0, newFakeCallbacks(), macOf(5), VersionRSTP)
	require.NoError(t, err)
	require.NoError(t, b.OnPortEnabled(0, 1000, true, time.Time{}))

	require.NoError(t, b.SetBridgePriority(0, 0x1000, time.Time{}))

	role, err := b.PortRole(0, 0)
	require.NoError(t, err)
	require.Equal(t, RoleDesignated, role)
}
