package bpdu

import "fmt"

// Sentinel errors returned by Decode. A malformed BPDU is never fatal
// to the caller: the engine's OnBpduReceived discards it after a
// debugStrOut diagnostic and keeps no count of such BPDUs.
var (
	// ErrTooShort is returned when the buffer is shorter than the
	// minimum 4-byte TCN BPDU.
	ErrTooShort = fmt.Errorf("bpdu: buffer shorter than minimum BPDU length")

	// ErrBadProtocolIdentifier is returned when the 2-byte protocol
	// identifier is not the fixed 0x0000 value.
	ErrBadProtocolIdentifier = fmt.Errorf("bpdu: unexpected protocol identifier")

	// ErrUnknownVersion is returned for a Protocol Version Identifier
	// this package does not know how to interpret.
	ErrUnknownVersion = fmt.Errorf("bpdu: unrecognized protocol version")

	// ErrUnknownType is returned for a BPDU Type byte outside
	// {Config, TCN, RST/MST}.
	ErrUnknownType = fmt.Errorf("bpdu: unrecognized bpdu type")

	// ErrTruncated is returned when the declared BPDU type implies a
	// longer buffer than what was supplied.
	ErrTruncated = fmt.Errorf("bpdu: buffer truncated for declared type/version")

	// ErrBadMSTILength is returned when the MST Version 3 Length does
	// not correspond to a whole number of 16-byte MSTI records.
	ErrBadMSTILength = fmt.Errorf("bpdu: MSTI section length not a multiple of 16")
)
