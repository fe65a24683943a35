package stpengine

import "time"

// migrationState is the Port Protocol Migration machine's state set
// (802.1Q section 13.32). Transition predicates
// and entry actions below are a direct translation of
// stp_sm_port_protocol_migration.cpp from the original mstp-lib
// (see DESIGN.md).
type migrationState uint8

const (
	migrationNone migrationState = iota
	migrationCheckingRSTP
	migrationSelectingSTP
	migrationSensing
)

func (b *Bridge) stepPortProtocolMigration(p *Port, ts time.Time) bool {
	next := b.migrationCheckConditions(p)
	if next == migrationNone {
		return false
	}
	p.migrationState = next
	b.migrationInit(p, next)
	return true
}

func (b *Bridge) migrationCheckConditions(p *Port) migrationState {
	if b.begin {
		if p.migrationState == migrationCheckingRSTP {
			return migrationNone
		}
		return migrationCheckingRSTP
	}

	switch p.migrationState {
	case migrationCheckingRSTP:
		if p.mDelayWhile == 0 {
			return migrationSensing
		}
		if p.mDelayWhile != b.migrateTime && !p.portEnabled {
			return migrationCheckingRSTP
		}

	case migrationSelectingSTP:
		if p.mDelayWhile == 0 || !p.portEnabled || p.mcheck {
			return migrationSensing
		}

	case migrationSensing:
		if p.sendRSTP && p.rcvdSTP {
			return migrationSelectingSTP
		}
		if !p.portEnabled || p.mcheck || (b.rstpVersion() && !p.sendRSTP && p.rcvdRSTP) {
			return migrationCheckingRSTP
		}

	default:
		return migrationCheckingRSTP
	}
	return migrationNone
}

func (b *Bridge) migrationInit(p *Port, state migrationState) {
	switch state {
	case migrationCheckingRSTP:
		p.mcheck = false
		p.sendRSTP = b.rstpVersion()
		p.mDelayWhile = b.migrateTime

	case migrationSelectingSTP:
		p.sendRSTP = false
		p.mDelayWhile = b.migrateTime

	case migrationSensing:
		p.rcvdRSTP = false
		p.rcvdSTP = false
	}
}
