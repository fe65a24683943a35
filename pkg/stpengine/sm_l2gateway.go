package stpengine

import "time"

// l2GatewayState is the L2 Gateway Port Receive machine's state set
// (802.1Q section 13.34). This bridge never configures a gateway port,
// so the machine is a permanent NO_GATEWAY stub.
type l2GatewayState uint8

const (
	l2GatewayNone       l2GatewayState = iota
	l2GatewayNoGateway                 // the only state this engine ever reaches
	l2GatewayReceiving
)

func (b *Bridge) stepL2Gateway(p *Port, ts time.Time) bool {
	if p.l2GatewayState == l2GatewayNoGateway {
		return false
	}
	p.l2GatewayState = l2GatewayNoGateway
	b.callInCallback(func() {
		b.callbacks.DebugStrOut(b, p.index, -1, "l2 gateway port receive: NO_GATEWAY stub, no gateway configured", false)
	})
	return true
}
