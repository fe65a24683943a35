//go:build !linux

package hostlink

import "fmt"

type SlavePort struct {
	Interface       string
	Index           int
	SpeedMbps       uint32
	OperUp          bool
	PointToPointMAC bool
}

func DiscoverSlaves(bridgeName string) ([]SlavePort, error) {
	return nil, &LinkError{Op: "discover", Interface: bridgeName, Err: fmt.Errorf("hostlink: netlink link discovery requires linux")}
}

type Event struct {
	Interface string
	Index     int
	Up        bool
}

type Watcher struct{}

func NewWatcher(slaves []SlavePort) (*Watcher, error) {
	return nil, fmt.Errorf("hostlink: link watching requires linux")
}

func (w *Watcher) Events() <-chan Event { return nil }
func (w *Watcher) Close() error         { return nil }
