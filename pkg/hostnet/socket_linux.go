//go:build linux

// Package hostnet is the reference host's BPDU transport: one
// AF_PACKET raw socket per bridge port, filtered in-kernel to the
// 802.1D/Q Bridge Group Address so the host never pays user-space
// copy cost for unrelated traffic, with gopacket doing the
// Ethernet+LLC envelope work around the BPDU payload the engine
// actually cares about.
package hostnet

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// BridgeGroupAddress is the destination MAC BPDUs are always sent to
// (802.1D section 7.12.3 / 802.1Q section 8.13.9).
var BridgeGroupAddress = net.HardwareAddr{0x01, 0x80, 0xC2, 0x00, 0x00, 0x00}

// llcHeaderLen is the 3-byte 802.2 LLC header (DSAP, SSAP, Control)
// STP BPDUs are carried in, with no SNAP extension.
const llcHeaderLen = 3

const (
	dsapSTP    = 0x42
	ssapSTP    = 0x42
	controlUI  = 0x03 // unnumbered information
)

// Socket is one AF_PACKET raw socket bound to a single interface,
// filtering received frames to BPDUs destined for the Bridge Group
// Address.
type Socket struct {
	fd      int
	ifIndex int
	ifName  string
	hwAddr  net.HardwareAddr
	closed  bool
}

// NewSocket opens a raw socket on ifaceName, binds it to that
// interface and attaches a classic BPF program that accepts only
// frames addressed to the Bridge Group Address.
func NewSocket(ifaceName string) (*Socket, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, &SocketError{Op: "lookup", Interface: ifaceName, Err: ErrInterfaceNotFound}
	}
	if len(iface.HardwareAddr) != 6 {
		return nil, &SocketError{Op: "lookup", Interface: ifaceName, Err: ErrNotEthernet}
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, &SocketError{Op: "socket", Interface: ifaceName, Err: err}
	}

	if err := attachBpduFilter(fd); err != nil {
		unix.Close(fd)
		return nil, &SocketError{Op: "attach-filter", Interface: ifaceName, Err: err}
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, &SocketError{Op: "bind", Interface: ifaceName, Err: err}
	}

	return &Socket{
		fd:      fd,
		ifIndex: iface.Index,
		ifName:  ifaceName,
		hwAddr:  iface.HardwareAddr,
	}, nil
}

// attachBpduFilter installs a classic BPF program equivalent to
// "ether dst 01:80:c2:00:00:00", evaluated entirely in the kernel.
func attachBpduFilter(fd int) error {
	dst := BridgeGroupAddress
	high := binary.BigEndian.Uint32(dst[0:4])
	low := binary.BigEndian.Uint16(dst[4:6])

	raw, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 0, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: high, SkipTrue: 3},
		bpf.LoadAbsolute{Off: 4, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(low), SkipTrue: 1},
		bpf.RetConstant{Val: 0xFFFF},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return fmt.Errorf("assembling bpf filter: %w", err)
	}

	sockFilter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		sockFilter[i] = unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(sockFilter)),
		Filter: &sockFilter[0],
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog)
}

// HardwareAddr returns the interface's MAC address. stpd does not use
// it: the bridge address always comes from the bridge_address setting.
func (s *Socket) HardwareAddr() net.HardwareAddr { return s.hwAddr }

// Interface returns the bound interface name.
func (s *Socket) Interface() string { return s.ifName }

// ReadBPDU blocks for one frame, strips the Ethernet+LLC envelope via
// gopacket, and returns the BPDU payload plus the sender's address.
// Non-BPDU LLC frames (wrong DSAP/SSAP) are reported as
// ErrFrameTooShort's sibling check, not silently dropped, so a
// misbehaving peer surfaces in the host's logs rather than the
// engine's "discard and count" path alone.
func (s *Socket) ReadBPDU(buf []byte) (payload []byte, src net.HardwareAddr, err error) {
	if s.closed {
		return nil, nil, ErrSocketClosed
	}
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return nil, nil, &SocketError{Op: "recvfrom", Interface: s.ifName, Err: err}
	}
	frame := gopacket.NewPacket(buf[:n], layers.LayerTypeEthernet, gopacket.NoCopy)
	eth, ok := frame.LinkLayer().(*layers.Ethernet)
	if !ok {
		return nil, nil, &SocketError{Op: "parse", Interface: s.ifName, Err: ErrFrameTooShort}
	}

	rest := eth.Payload
	if len(rest) < llcHeaderLen {
		return nil, nil, &SocketError{Op: "parse", Interface: s.ifName, Err: ErrFrameTooShort}
	}
	if rest[0] != dsapSTP || rest[1] != ssapSTP {
		return nil, nil, &SocketError{Op: "parse", Interface: s.ifName, Err: fmt.Errorf("non-STP LLC frame dsap=%#x ssap=%#x", rest[0], rest[1])}
	}
	return rest[llcHeaderLen:], eth.SrcMAC, nil
}

// WriteBPDU wraps payload in an Ethernet+LLC envelope addressed to
// the Bridge Group Address and writes it out.
func (s *Socket) WriteBPDU(payload []byte) error {
	if s.closed {
		return ErrSocketClosed
	}
	eth := layers.Ethernet{
		SrcMAC:       s.hwAddr,
		DstMAC:       BridgeGroupAddress,
		EthernetType: layers.EthernetType(len(payload) + llcHeaderLen),
		Length:       uint16(len(payload) + llcHeaderLen),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: false}
	llc := append([]byte{dsapSTP, ssapSTP, controlUI}, payload...)
	if err := gopacket.SerializeLayers(buf, opts, &eth, gopacket.Payload(llc)); err != nil {
		return &SocketError{Op: "serialize", Interface: s.ifName, Err: err}
	}

	sa := &unix.SockaddrLinklayer{Ifindex: s.ifIndex}
	return sendtoRetry(s.fd, buf.Bytes(), sa)
}

func sendtoRetry(fd int, b []byte, sa unix.Sockaddr) error {
	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = unix.Sendto(fd, b, 0, sa); err == nil {
			return nil
		}
		if err != unix.EINTR {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return err
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}

func htons(v uint16) uint16 {
	return (v<<8)&0xff00 | (v>>8)&0x00ff
}
