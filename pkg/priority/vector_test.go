package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bid(prio uint16, last byte) BridgeID {
	return BridgeID{Priority: prio, Address: [6]byte{0, 0, 0, 0, 0, last}}
}

func TestBridgeIDLess(t *testing.T) {
	require.True(t, bid(0x8000, 1).Less(bid(0x9000, 1)))
	require.False(t, bid(0x9000, 1).Less(bid(0x8000, 1)))
	require.True(t, bid(0x8000, 1).Less(bid(0x8000, 2)))
	require.False(t, bid(0x8000, 1).Less(bid(0x8000, 1)))
}

func TestPortIDPacking(t *testing.T) {
	id := MakePortID(0x80, 0x005)
	assert.Equal(t, uint8(0x80), id.Priority())
	assert.Equal(t, uint16(0x005), id.Number())
}

func TestCompareLexicographic(t *testing.T) {
	base := Vector{
		RootID:               bid(0x8000, 1),
		ExternalRootPathCost: 100,
		RegionalRootID:       bid(0x8000, 1),
		InternalRootPathCost: 0,
		DesignatedBridgeID:   bid(0x8000, 1),
		DesignatedPortID:     MakePortID(0x80, 1),
	}

	t.Run("equal vectors compare equal", func(t *testing.T) {
		assert.Equal(t, 0, Compare(base, base))
		assert.True(t, Equal(base, base))
		assert.True(t, SuperiorOrEqual(base, base))
		assert.False(t, Superior(base, base))
	})

	t.Run("lower root id wins regardless of later fields", func(t *testing.T) {
		better := base
		better.RootID = bid(0x7000, 1)
		better.ExternalRootPathCost = 999999 // would lose on this field alone
		assert.True(t, Superior(better, base))
	})

	t.Run("root path cost breaks ties on root id", func(t *testing.T) {
		cheaper := base
		cheaper.ExternalRootPathCost = 50
		assert.True(t, Superior(cheaper, base))
	})

	t.Run("designated port id is the final tiebreak", func(t *testing.T) {
		lowerPort := base
		lowerPort.DesignatedPortID = MakePortID(0x80, 0)
		assert.True(t, Superior(lowerPort, base))
	})
}

func TestSameDesignatedIgnoresRootAndCost(t *testing.T) {
	a := Vector{
		RegionalRootID:     bid(0x8000, 1),
		DesignatedBridgeID: bid(0x8000, 2),
		DesignatedPortID:   MakePortID(0x80, 3),
	}
	b := a
	b.RootID = bid(0x1234, 9)
	b.ExternalRootPathCost = 12345
	assert.True(t, SameDesignated(a, b))

	c := a
	c.DesignatedPortID = MakePortID(0x80, 4)
	assert.False(t, SameDesignated(a, c))
}

func TestTimesEqual(t *testing.T) {
	a := Times{MessageAge: time.Second, MaxAge: 20 * time.Second, HelloTime: 2 * time.Second, ForwardDelay: 15 * time.Second, RemainingHops: 19}
	b := a
	assert.True(t, TimesEqual(a, b))
	b.RemainingHops = 18
	assert.False(t, TimesEqual(a, b))
}
