// Package bpdu implements the wire encoding and decoding of Bridge
// Protocol Data Units as specified by IEEE 802.1Q-2018 section 14:
// the Topology Change Notification (TCN), Configuration, Rapid Spanning
// Tree (RST) and Multiple Spanning Tree (MST) BPDU formats, plus the MST
// Configuration Identifier digest of section 13.7.
//
// All multi-byte integer fields are big-endian, as mandated by the
// standard; this package never touches host byte order.
package bpdu

import "github.com/thelastdreamer/spantree/pkg/priority"

// ProtocolIdentifier is the fixed 2-byte value that opens every BPDU.
const ProtocolIdentifier uint16 = 0x0000

// ProtocolVersion identifies which generation of the protocol a BPDU
// speaks, carried in the single Protocol Version Identifier byte.
type ProtocolVersion uint8

const (
	VersionSTP  ProtocolVersion = 0
	VersionRSTP ProtocolVersion = 2
	VersionMSTP ProtocolVersion = 3
)

// Type is the BPDU Type field.
type Type uint8

const (
	TypeConfig Type = 0x00
	TypeTCN    Type = 0x80
	TypeRST    Type = 0x02 // also used for MST BPDUs (version 3)
)

// Flag bits shared by the Configuration/RST/MST Flags octet and the
// per-MSTI Flags octet (802.1Q section 14.3-14.6).
const (
	FlagTopologyChange    uint8 = 1 << 0
	FlagProposal          uint8 = 1 << 1
	FlagRoleMask          uint8 = 0x0C
	FlagRoleShift               = 2
	FlagLearning          uint8 = 1 << 4
	FlagForwarding        uint8 = 1 << 5
	FlagAgreement         uint8 = 1 << 6
	FlagTopologyChangeAck uint8 = 1 << 7
)

// WireRole is the 2-bit port role carried in a BPDU's Flags octet; it
// is a transport encoding distinct from, but mapped onto, the engine's
// Role enumeration (Root and Master both encode as WireRoleRootOrMaster
// on the wire — 802.1Q section 14.3 note 2).
type WireRole uint8

const (
	WireRoleUnknown         WireRole = 0
	WireRoleAlternateBackup WireRole = 1
	WireRoleRootOrMaster    WireRole = 2
	WireRoleDesignated      WireRole = 3
)

// TCN is the 4-byte Topology Change Notification BPDU.
type TCN struct {
	ProtocolVersion ProtocolVersion
}

// Config is the 35-byte classic Configuration BPDU (802.1D / 802.1Q
// figure 13-5), also the prefix shared by RST and MST BPDUs.
type Config struct {
	Flags                uint8
	RootID               priority.BridgeID
	RootPathCost         uint32
	BridgeID             priority.BridgeID
	PortID               priority.PortID
	MessageAge           uint16 // 1/256 second units, as on the wire
	MaxAge               uint16
	HelloTime            uint16
	ForwardDelay         uint16
}

// RST is the 36-byte Rapid Spanning Tree BPDU: a Config BPDU plus the
// single Version 1 Length octet, which RSTP always sends as zero.
type RST struct {
	Config
}

// MSTIConfigMessage is one 16-byte per-instance record inside an MST
// BPDU (802.1Q section 14.6).
type MSTIConfigMessage struct {
	MSTID              uint16 // 12-bit MSTID (carried in the low 12 bits of RegionalRootID's priority on the wire)
	Flags              uint8
	RegionalRootID     priority.BridgeID // address field doubles as this MSTI's regional root address
	InternalRootCost   uint32
	BridgePriority     uint8 // top nibble of the MSTI bridge ID priority byte
	PortPriority       uint8
	RemainingHops      uint8
}

// MSTConfigID is the 51-byte MST Configuration Identifier (802.1Q
// section 13.7): the name/revision/digest triple that defines an MST
// region. Two bridges are in the same region iff all three match.
type MSTConfigID struct {
	FormatSelector uint8
	Name           [32]byte
	RevisionLevel  uint16
	Digest         [16]byte
}

// MST is the >=102 byte Multiple Spanning Tree BPDU: an RST BPDU with
// the CIST Flags/vector reinterpreted, plus the region identity, the
// CIST's internal parameters, and zero or more MSTI records.
type MST struct {
	Config                        // CIST flags + external vector + times
	ConfigID               MSTConfigID
	CISTInternalRootCost   uint32
	CISTBridgeID           priority.BridgeID
	CISTRemainingHops      uint8
	MSTIs                  []MSTIConfigMessage
}

// RoleToWire maps a wire role plus the "is this the Root/Master field"
// context into the 2-bit WireRole encoding used by Flags.
func RoleToWire(isRootOrMaster, isDesignated, isAlternateOrBackup bool) WireRole {
	switch {
	case isDesignated:
		return WireRoleDesignated
	case isRootOrMaster:
		return WireRoleRootOrMaster
	case isAlternateOrBackup:
		return WireRoleAlternateBackup
	default:
		return WireRoleUnknown
	}
}

func packRole(flags uint8, role WireRole) uint8 {
	return (flags &^ FlagRoleMask) | (uint8(role)<<FlagRoleShift)&FlagRoleMask
}

func unpackRole(flags uint8) WireRole {
	return WireRole((flags & FlagRoleMask) >> FlagRoleShift)
}

// Role returns the port role carried in this Config's Flags octet.
func (c Config) Role() WireRole { return unpackRole(c.Flags) }

// SetRole packs role into the Flags octet, preserving the other bits.
func (c *Config) SetRole(role WireRole) { c.Flags = packRole(c.Flags, role) }

// Role returns the port role carried in this MSTI record's Flags octet.
func (m MSTIConfigMessage) Role() WireRole { return unpackRole(m.Flags) }
