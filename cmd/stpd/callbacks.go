package main

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/spantree/pkg/audit"
	"github.com/thelastdreamer/spantree/pkg/hostnet"
	"github.com/thelastdreamer/spantree/pkg/mgmtapi"
	"github.com/thelastdreamer/spantree/pkg/stpengine"
)

// hostCallbacks is stpd's implementation of stpengine.Callbacks: it
// owns the per-port raw sockets, the audit trail and the management
// API's live event feed, and never calls back into the Bridge from
// inside any of its methods.
type hostCallbacks struct {
	log *logrus.Logger

	sockets []*hostnet.Socket // index == port index, nil entries skip transmission
	store   *audit.Store
	mgmt    *mgmtapi.Server

	bufPool     sync.Pool
	pendingPort int // port passed to the most recent TransmitGetBuffer; engine calls are never concurrent
}

func newHostCallbacks(log *logrus.Logger, sockets []*hostnet.Socket, store *audit.Store, mgmt *mgmtapi.Server) *hostCallbacks {
	return &hostCallbacks{
		log:         log,
		sockets:     sockets,
		store:       store,
		mgmt:        mgmt,
		bufPool:     sync.Pool{New: func() any { return make([]byte, 0, 128) }},
		pendingPort: -1,
	}
}

func (h *hostCallbacks) EnableBpduTrapping(bridge *stpengine.Bridge, enable bool, timestamp time.Time) {
	h.log.WithField("enable", enable).Debug("bpdu trapping toggled")
}

func (h *hostCallbacks) EnableLearning(bridge *stpengine.Bridge, port, tree int, enable bool, timestamp time.Time) {
	h.log.WithFields(logrus.Fields{"port": port, "tree": tree, "enable": enable}).Debug("learning toggled")
}

func (h *hostCallbacks) EnableForwarding(bridge *stpengine.Bridge, port, tree int, enable bool, timestamp time.Time) {
	h.log.WithFields(logrus.Fields{"port": port, "tree": tree, "enable": enable}).Info("forwarding toggled")
}

// TransmitGetBuffer hands back a pooled scratch buffer sized to hold
// the encoded BPDU; the core never allocates bridge/port/tree state
// through this path, only transmit scratch.
func (h *hostCallbacks) TransmitGetBuffer(bridge *stpengine.Bridge, port int, bpduSize int, timestamp time.Time) stpengine.TransmitBuffer {
	if port < 0 || port >= len(h.sockets) || h.sockets[port] == nil {
		return nil
	}
	h.pendingPort = port
	buf := h.bufPool.Get().([]byte)
	if cap(buf) < bpduSize {
		buf = make([]byte, bpduSize)
	} else {
		buf = buf[:bpduSize]
	}
	return stpengine.TransmitBuffer(buf)
}

// TransmitReleaseBuffer hands the populated buffer to the port whose
// TransmitGetBuffer call produced it. Port Transmit always completes
// one get/release pair before moving to the next port, so pendingPort
// is never stale when this runs.
func (h *hostCallbacks) TransmitReleaseBuffer(bridge *stpengine.Bridge, buffer stpengine.TransmitBuffer) {
	defer h.bufPool.Put([]byte(buffer)[:0])

	port := h.pendingPort
	if port < 0 || port >= len(h.sockets) || h.sockets[port] == nil {
		return
	}
	if err := h.sockets[port].WriteBPDU(buffer); err != nil {
		h.log.WithError(err).WithField("port", port).Warn("failed to transmit bpdu")
	}
}

func (h *hostCallbacks) FlushFdb(bridge *stpengine.Bridge, port, tree int, flushType stpengine.FlushType) {
	h.log.WithFields(logrus.Fields{"port": port, "tree": tree}).Debug("fdb flush requested")
}

func (h *hostCallbacks) DebugStrOut(bridge *stpengine.Bridge, port, tree int, str string, flush bool) {
	h.log.WithFields(logrus.Fields{"port": port, "tree": tree}).Debug(str)
}

func (h *hostCallbacks) OnTopologyChange(bridge *stpengine.Bridge, tree int, timestamp time.Time) {
	h.log.WithField("tree", tree).Info("topology change")
	if h.store != nil {
		h.store.RecordEvent(audit.Event{
			Timestamp: timestamp,
			Kind:      audit.EventTopologyChange,
			Port:      -1,
			Tree:      tree,
			Detail:    "topology change active",
		})
	}
	if h.mgmt != nil {
		h.mgmt.BroadcastEvent("topology_change", map[string]int{"tree": tree})
	}
}

func (h *hostCallbacks) OnNotifiedTopologyChange(bridge *stpengine.Bridge, port, tree int, timestamp time.Time) {
	h.log.WithFields(logrus.Fields{"port": port, "tree": tree}).Debug("notified of topology change")
}

func (h *hostCallbacks) OnPortRoleChanged(bridge *stpengine.Bridge, port, tree int, newRole stpengine.Role, timestamp time.Time) {
	h.log.WithFields(logrus.Fields{"port": port, "tree": tree, "role": newRole.String()}).Info("port role changed")
	if h.store != nil {
		h.store.RecordEvent(audit.Event{
			Timestamp: timestamp,
			Kind:      audit.EventRoleChanged,
			Port:      port,
			Tree:      tree,
			Detail:    newRole.String(),
		})
	}
	if h.mgmt != nil {
		h.mgmt.BroadcastEvent("role_changed", map[string]any{"port": port, "tree": tree, "role": newRole.String()})
	}
}

func (h *hostCallbacks) AllocAndZeroMemory(size int) []byte { return make([]byte, size) }
func (h *hostCallbacks) FreeMemory(buf []byte)               {}
