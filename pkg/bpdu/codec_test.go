package bpdu

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thelastdreamer/spantree/pkg/priority"
)

func sampleConfig() Config {
	return Config{
		Flags:        FlagTopologyChange,
		RootID:       priority.BridgeID{Priority: 0x8000, Address: [6]byte{1, 2, 3, 4, 5, 6}},
		RootPathCost: 4,
		BridgeID:     priority.BridgeID{Priority: 0x9000, Address: [6]byte{6, 5, 4, 3, 2, 1}},
		PortID:       priority.MakePortID(0x80, 3),
		MessageAge:   256,
		MaxAge:       20 * 256,
		HelloTime:    2 * 256,
		ForwardDelay: 15 * 256,
	}
}

func TestTCNRoundTrip(t *testing.T) {
	buf := EncodeTCN(TCN{ProtocolVersion: VersionSTP})
	require.Len(t, buf, LenTCN)

	d, err := Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, d.TCN)
	require.Equal(t, VersionSTP, d.Version)
	require.Equal(t, TypeTCN, d.Type)
}

func TestConfigRoundTrip(t *testing.T) {
	c := sampleConfig()
	buf := EncodeConfig(c)
	require.Len(t, buf, LenConfig)

	d, err := Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, d.Config)
	require.Equal(t, c, *d.Config)
}

func TestRSTRoundTrip(t *testing.T) {
	r := RST{Config: sampleConfig()}
	buf := EncodeRST(r)
	require.Len(t, buf, LenRST)

	d, err := Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, d.RST)
	require.Equal(t, r, *d.RST)
}

func TestMSTRoundTrip(t *testing.T) {
	m := MST{
		Config: sampleConfig(),
		ConfigID: MSTConfigID{
			FormatSelector: 0,
			RevisionLevel:  1,
			Digest:         [16]byte{1, 2, 3},
		},
		CISTInternalRootCost: 7,
		CISTBridgeID:         priority.BridgeID{Priority: 0x9000, Address: [6]byte{6, 5, 4, 3, 2, 1}},
		CISTRemainingHops:    19,
		MSTIs: []MSTIConfigMessage{
			{
				MSTID:            5,
				Flags:            FlagProposal,
				RegionalRootID:   priority.BridgeID{Priority: 0x8005, Address: [6]byte{9, 9, 9, 9, 9, 9}},
				InternalRootCost: 10,
				BridgePriority:   0x80,
				PortPriority:     0x80,
				RemainingHops:    18,
			},
			{
				MSTID:            9,
				Flags:            0,
				RegionalRootID:   priority.BridgeID{Priority: 0x9009, Address: [6]byte{8, 8, 8, 8, 8, 8}},
				InternalRootCost: 20,
				BridgePriority:   0x90,
				PortPriority:     0x90,
				RemainingHops:    17,
			},
		},
	}
	copy(m.ConfigID.Name[:], []byte("region-one"))

	buf, err := EncodeMST(m)
	require.NoError(t, err)
	require.Len(t, buf, LenMSTFixed+2*LenMSTIRecord)

	d, err := Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, d.MST)
	require.Equal(t, m, *d.MST)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{0, 0, 1})
	require.ErrorIs(t, err, ErrTooShort)

	_, err = Decode([]byte{0xFF, 0xFF, 0, 0})
	require.ErrorIs(t, err, ErrBadProtocolIdentifier)

	_, err = Decode([]byte{0, 0, 9, 0})
	require.ErrorIs(t, err, ErrUnknownVersion)

	_, err = Decode([]byte{0, 0, 0, 0x55})
	require.ErrorIs(t, err, ErrUnknownType)

	// Declares RST but supplies fewer than 36 bytes.
	cfg := EncodeConfig(sampleConfig())
	rstTooShort := append(append([]byte{}, cfg...))
	rstTooShort[2] = byte(VersionRSTP)
	rstTooShort[3] = byte(TypeRST)
	_, err = Decode(rstTooShort)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestComputeDigestDeterministicAndSensitive(t *testing.T) {
	var a, b VIDToMSTIDTable
	a[10] = 3
	b[10] = 3
	require.Equal(t, a.ComputeDigest(), b.ComputeDigest())

	b[10] = 4
	require.NotEqual(t, a.ComputeDigest(), b.ComputeDigest())
}

func TestMSTConfigIDMatchesRegion(t *testing.T) {
	var table VIDToMSTIDTable
	table[1] = 1
	digest := table.ComputeDigest()

	a := MSTConfigID{FormatSelector: 0, RevisionLevel: 2, Digest: digest}
	copy(a.Name[:], []byte("region"))
	bCopy := a
	require.True(t, a.MatchesRegion(bCopy))

	bCopy.RevisionLevel = 3
	require.False(t, a.MatchesRegion(bCopy))
}
