//go:build linux

// Package hostlink discovers a Linux bridge's slave ports and watches
// their link state through vishvananda/netlink, translating kernel
// events into the OnPortEnabled/OnPortDisabled calls stpd feeds into
// pkg/stpengine.
package hostlink

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// SlavePort is one discovered port of a Linux bridge.
type SlavePort struct {
	Interface       string
	Index           int
	SpeedMbps       uint32
	OperUp          bool
	PointToPointMAC bool // true for full-duplex links, the standard's operPointToPointMAC heuristic
}

// DiscoverSlaves enumerates bridgeName's slave interfaces. stpd does
// not call it: stpd sizes NewBridge's portCount from its configured
// port list.
func DiscoverSlaves(bridgeName string) ([]SlavePort, error) {
	bridge, err := netlink.LinkByName(bridgeName)
	if err != nil {
		return nil, &LinkError{Op: "lookup-bridge", Interface: bridgeName, Err: ErrBridgeNotFound}
	}

	links, err := netlink.LinkList()
	if err != nil {
		return nil, &LinkError{Op: "list", Interface: bridgeName, Err: err}
	}

	var slaves []SlavePort
	for _, l := range links {
		attrs := l.Attrs()
		if attrs.MasterIndex != bridge.Attrs().Index {
			continue
		}
		slaves = append(slaves, SlavePort{
			Interface:       attrs.Name,
			Index:           attrs.Index,
			SpeedMbps:       linkSpeedMbps(l),
			OperUp:          attrs.OperState == netlink.OperUp,
			PointToPointMAC: isFullDuplex(l),
		})
	}
	if len(slaves) == 0 {
		return nil, &LinkError{Op: "discover", Interface: bridgeName, Err: ErrNoSlaves}
	}
	return slaves, nil
}

// linkSpeedMbps always returns 0, "speed unknown", for which
// stpengine.DefaultPathCost gives the heaviest default cost: the link
// speed is not read from ethtool or /sys.
func linkSpeedMbps(l netlink.Link) uint32 {
	return 0
}

// isFullDuplex stands in for 802.1Q section 6.5's full-duplex test for
// operPointToPointMAC. It returns true for every link type; the
// negotiated duplex is not read.
func isFullDuplex(l netlink.Link) bool {
	switch l.Type() {
	case "veth", "vlan":
		return true
	default:
		return true // most modern switched Ethernet links are full duplex
	}
}

// Event reports a link coming up or going down.
type Event struct {
	Interface string
	Index     int
	Up        bool
}

// Watcher streams link up/down transitions for a bridge's slave
// interfaces via a netlink.LinkSubscribe socket.
type Watcher struct {
	updates chan netlink.LinkUpdate
	done    chan struct{}
	events  chan Event
	closed  bool
}

// NewWatcher subscribes to link updates and begins translating them
// to Events for the ports named in slaves.
func NewWatcher(slaves []SlavePort) (*Watcher, error) {
	byIndex := make(map[int]string, len(slaves))
	for _, s := range slaves {
		byIndex[s.Index] = s.Interface
	}

	updates := make(chan netlink.LinkUpdate)
	done := make(chan struct{})
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		return nil, fmt.Errorf("hostlink: subscribing to link updates: %w", err)
	}

	w := &Watcher{
		updates: updates,
		done:    done,
		events:  make(chan Event, 16),
	}
	go w.run(byIndex)
	return w, nil
}

func (w *Watcher) run(byIndex map[int]string) {
	for u := range w.updates {
		attrs := u.Link.Attrs()
		name, ok := byIndex[attrs.Index]
		if !ok {
			continue
		}
		w.events <- Event{
			Interface: name,
			Index:     attrs.Index,
			Up:        attrs.OperState == netlink.OperUp,
		}
	}
	close(w.events)
}

// Events returns the channel of link transitions; it is closed after Close.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops the underlying netlink subscription.
func (w *Watcher) Close() error {
	if w.closed {
		return ErrWatcherClosed
	}
	w.closed = true
	close(w.done)
	return nil
}
