package bpdu

import (
	"encoding/binary"
	"fmt"

	"github.com/thelastdreamer/spantree/pkg/priority"
)

// Fixed wire lengths for each BPDU variant.
const (
	LenTCN        = 4
	LenConfig     = 35
	LenRST        = 36
	LenMSTFixed   = 102
	LenMSTIRecord = 16
)

// DecodedBPDU is the result of Decode: exactly one of the embedded
// pointers is non-nil, selected by Version/Type.
type DecodedBPDU struct {
	Version ProtocolVersion
	Type    Type

	TCN    *TCN
	Config *Config
	RST    *RST
	MST    *MST
}

// Decode parses a raw BPDU payload (the bytes following the LLC header
// on the wire — not the Ethernet/LLC envelope itself, which is the
// host network adapter's concern).
//
// Any malformed input yields one of the Err* sentinels. The engine's
// OnBpduReceived discards such a BPDU after a debugStrOut diagnostic;
// no malformed-BPDU counter is kept.
func Decode(buf []byte) (*DecodedBPDU, error) {
	if len(buf) < LenTCN {
		return nil, ErrTooShort
	}
	if binary.BigEndian.Uint16(buf[0:2]) != ProtocolIdentifier {
		return nil, ErrBadProtocolIdentifier
	}
	version := ProtocolVersion(buf[2])
	typ := Type(buf[3])

	switch typ {
	case TypeTCN:
		return &DecodedBPDU{Version: version, Type: typ, TCN: &TCN{ProtocolVersion: version}}, nil

	case TypeConfig:
		if version != VersionSTP {
			// A version-0 BPDU type byte with a non-zero version is
			// malformed; real STP always pairs TypeConfig with VersionSTP.
			return nil, ErrUnknownVersion
		}
		if len(buf) < LenConfig {
			return nil, ErrTruncated
		}
		cfg := decodeConfig(buf)
		return &DecodedBPDU{Version: version, Type: typ, Config: &cfg}, nil

	case TypeRST:
		switch version {
		case VersionRSTP:
			if len(buf) < LenRST {
				return nil, ErrTruncated
			}
			cfg := decodeConfig(buf)
			return &DecodedBPDU{Version: version, Type: typ, RST: &RST{Config: cfg}}, nil

		case VersionMSTP:
			mst, err := decodeMST(buf)
			if err != nil {
				return nil, err
			}
			return &DecodedBPDU{Version: version, Type: typ, MST: mst}, nil

		default:
			return nil, ErrUnknownVersion
		}

	default:
		return nil, ErrUnknownType
	}
}

func decodeConfig(buf []byte) Config {
	return Config{
		Flags:        buf[4],
		RootID:       decodeBridgeID(buf[5:13]),
		RootPathCost: binary.BigEndian.Uint32(buf[13:17]),
		BridgeID:     decodeBridgeID(buf[17:25]),
		PortID:       priority.PortID(binary.BigEndian.Uint16(buf[25:27])),
		MessageAge:   binary.BigEndian.Uint16(buf[27:29]),
		MaxAge:       binary.BigEndian.Uint16(buf[29:31]),
		HelloTime:    binary.BigEndian.Uint16(buf[31:33]),
		ForwardDelay: binary.BigEndian.Uint16(buf[33:35]),
	}
}

func decodeMST(buf []byte) (*MST, error) {
	if len(buf) < LenMSTFixed {
		return nil, ErrTruncated
	}
	cfg := decodeConfig(buf[:LenConfig])
	v3Len := binary.BigEndian.Uint16(buf[36:38])

	mstiBytesLen := int(v3Len) - (LenMSTFixed - 38)
	if mstiBytesLen < 0 || mstiBytesLen%LenMSTIRecord != 0 {
		return nil, ErrBadMSTILength
	}
	if len(buf) < LenMSTFixed+mstiBytesLen {
		return nil, ErrTruncated
	}

	m := &MST{
		Config: cfg,
		ConfigID: MSTConfigID{
			FormatSelector: buf[38],
			RevisionLevel:  binary.BigEndian.Uint16(buf[71:73]),
		},
		CISTInternalRootCost: binary.BigEndian.Uint32(buf[89:93]),
		CISTBridgeID:         decodeBridgeID(buf[93:101]),
		CISTRemainingHops:    buf[101],
	}
	copy(m.ConfigID.Name[:], buf[39:71])
	copy(m.ConfigID.Digest[:], buf[73:89])

	n := mstiBytesLen / LenMSTIRecord
	if n > 0 {
		m.MSTIs = make([]MSTIConfigMessage, n)
		for i := 0; i < n; i++ {
			rec := buf[LenMSTFixed+i*LenMSTIRecord : LenMSTFixed+(i+1)*LenMSTIRecord]
			root := decodeBridgeID(rec[1:9])
			m.MSTIs[i] = MSTIConfigMessage{
				MSTID:            root.Priority & 0x0FFF,
				Flags:            rec[0],
				RegionalRootID:   root,
				InternalRootCost: binary.BigEndian.Uint32(rec[9:13]),
				BridgePriority:   rec[13],
				PortPriority:     rec[14],
				RemainingHops:    rec[15],
			}
		}
	}
	return m, nil
}

func decodeBridgeID(b []byte) priority.BridgeID {
	var id priority.BridgeID
	id.Priority = binary.BigEndian.Uint16(b[0:2])
	copy(id.Address[:], b[2:8])
	return id
}

func encodeBridgeID(buf []byte, id priority.BridgeID) {
	binary.BigEndian.PutUint16(buf[0:2], id.Priority)
	copy(buf[2:8], id.Address[:])
}

// EncodeTCN produces the 4-byte TCN BPDU.
func EncodeTCN(t TCN) []byte {
	buf := make([]byte, LenTCN)
	binary.BigEndian.PutUint16(buf[0:2], ProtocolIdentifier)
	buf[2] = byte(t.ProtocolVersion)
	buf[3] = byte(TypeTCN)
	return buf
}

// EncodeConfig produces the 35-byte classic Configuration BPDU.
func EncodeConfig(c Config) []byte {
	buf := make([]byte, LenConfig)
	encodeConfigInto(buf, VersionSTP, TypeConfig, c)
	return buf
}

// EncodeRST produces the 36-byte RST BPDU.
func EncodeRST(r RST) []byte {
	buf := make([]byte, LenRST)
	encodeConfigInto(buf[:LenConfig], VersionRSTP, TypeRST, r.Config)
	buf[35] = 0 // Version 1 Length, always zero
	return buf
}

func encodeConfigInto(buf []byte, version ProtocolVersion, typ Type, c Config) {
	binary.BigEndian.PutUint16(buf[0:2], ProtocolIdentifier)
	buf[2] = byte(version)
	buf[3] = byte(typ)
	buf[4] = c.Flags
	encodeBridgeID(buf[5:13], c.RootID)
	binary.BigEndian.PutUint32(buf[13:17], c.RootPathCost)
	encodeBridgeID(buf[17:25], c.BridgeID)
	binary.BigEndian.PutUint16(buf[25:27], uint16(c.PortID))
	binary.BigEndian.PutUint16(buf[27:29], c.MessageAge)
	binary.BigEndian.PutUint16(buf[29:31], c.MaxAge)
	binary.BigEndian.PutUint16(buf[31:33], c.HelloTime)
	binary.BigEndian.PutUint16(buf[33:35], c.ForwardDelay)
}

// EncodeMST produces the full MST BPDU: the 102-byte fixed section
// followed by one 16-byte record per entry in m.MSTIs.
func EncodeMST(m MST) ([]byte, error) {
	if len(m.MSTIs) > 64 {
		return nil, fmt.Errorf("bpdu: too many MSTI records (%d) to fit one BPDU", len(m.MSTIs))
	}
	total := LenMSTFixed + len(m.MSTIs)*LenMSTIRecord
	buf := make([]byte, total)

	encodeConfigInto(buf[:LenConfig], VersionMSTP, TypeRST, m.Config)
	buf[35] = 0 // Version 1 Length
	binary.BigEndian.PutUint16(buf[36:38], uint16(total-38))

	buf[38] = m.ConfigID.FormatSelector
	copy(buf[39:71], m.ConfigID.Name[:])
	binary.BigEndian.PutUint16(buf[71:73], m.ConfigID.RevisionLevel)
	copy(buf[73:89], m.ConfigID.Digest[:])

	binary.BigEndian.PutUint32(buf[89:93], m.CISTInternalRootCost)
	encodeBridgeID(buf[93:101], m.CISTBridgeID)
	buf[101] = m.CISTRemainingHops

	for i, msti := range m.MSTIs {
		rec := buf[LenMSTFixed+i*LenMSTIRecord : LenMSTFixed+(i+1)*LenMSTIRecord]
		rec[0] = msti.Flags
		root := msti.RegionalRootID
		root.Priority = (root.Priority &^ 0x0FFF) | (msti.MSTID & 0x0FFF)
		encodeBridgeID(rec[1:9], root)
		binary.BigEndian.PutUint32(rec[9:13], msti.InternalRootCost)
		rec[13] = msti.BridgePriority
		rec[14] = msti.PortPriority
		rec[15] = msti.RemainingHops
	}
	return buf, nil
}
