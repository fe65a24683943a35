package bpdu

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/binary"
)

// mstConfigDigestKey is the fixed 16-byte key IEEE 802.1Q-2018 section
// 13.7 mandates for the HMAC-MD5 computed over the VID-to-MSTID table.
// It is a constant of the standard, not a secret: every conformant
// implementation uses exactly this key so that two bridges configured
// with the same name/revision/VID-to-MSTID table compute the same
// digest and thus recognize each other as being in the same region.
var mstConfigDigestKey = [16]byte{
	0x13, 0xAC, 0x06, 0xA6, 0x2E, 0x47, 0xFD, 0x51,
	0xF9, 0x5D, 0x2B, 0xA2, 0x43, 0xCD, 0x03, 0x46,
}

// VIDToMSTIDTable is the 4096-entry mapping from VLAN ID to MSTID that
// feeds the MST Configuration Digest. Index 0 and
// indices above 4094 are reserved by 802.1Q and always map to MSTID 0
// (the CIST); ComputeDigest includes them as zero regardless of what
// the caller stores there, matching the standard's fixed-size table.
type VIDToMSTIDTable [4096]uint16

// ComputeDigest computes the 16-byte MST Configuration Digest over t,
// exactly as 802.1Q section 13.7 specifies: a keyed HMAC-MD5 over the
// 4096 entries, each written as a big-endian uint16.
func (t *VIDToMSTIDTable) ComputeDigest() [16]byte {
	mac := hmac.New(md5.New, mstConfigDigestKey[:])
	var entry [2]byte
	for vid, mstid := range t {
		if vid == 0 || vid > 4094 {
			mstid = 0
		}
		binary.BigEndian.PutUint16(entry[:], mstid)
		mac.Write(entry[:])
	}
	var out [16]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// MatchesRegion reports whether id identifies the same MST region as
// ours: identical configuration name, revision and digest (802.1Q
// section 13.7). A mismatch here means the neighbor is treated as
// plain RSTP: CIST-only, no MSTI records trusted.
func (id MSTConfigID) MatchesRegion(ours MSTConfigID) bool {
	return id.FormatSelector == ours.FormatSelector &&
		id.Name == ours.Name &&
		id.RevisionLevel == ours.RevisionLevel &&
		id.Digest == ours.Digest
}
