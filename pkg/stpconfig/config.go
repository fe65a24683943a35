// Package stpconfig loads and validates the on-disk/environment
// configuration for the stpd reference host: bridge identity, port
// list, MSTI/VLAN mapping and the management API's listen settings.
//
// Loading goes through spf13/viper so operators can use YAML, JSON or
// TOML interchangeably and override any field with an STPD_-prefixed
// environment variable, the same convention the bonding daemon used
// for its own config file.
package stpconfig

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"

	"github.com/thelastdreamer/spantree/pkg/stpengine"
)

// Version resolves ForceVersion to the stpengine.Version constant
// NewBridge expects.
func (c *BridgeConfig) Version() stpengine.Version {
	switch c.ForceVersion {
	case "stp":
		return stpengine.VersionSTP
	case "rstp":
		return stpengine.VersionRSTP
	default:
		return stpengine.VersionMSTP
	}
}

// PortConfig describes one bridge port the reference host should open
// a raw socket on.
type PortConfig struct {
	Index     int    `mapstructure:"index"`
	Interface string `mapstructure:"interface"`
	EdgePort  bool   `mapstructure:"edge_port"`
	AutoEdge  bool   `mapstructure:"auto_edge"`
}

// VlanMapping assigns a VLAN ID to an MSTI (0 always means the CIST
// and never needs an entry here).
type VlanMapping struct {
	VID   uint16 `mapstructure:"vid"`
	MSTID uint16 `mapstructure:"mstid"`
}

// MgmtAPIConfig configures pkg/mgmtapi's HTTP server.
type MgmtAPIConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	TokenTTLMins int    `mapstructure:"token_ttl_minutes"`
}

// AuditConfig configures pkg/audit's SQLite-backed event log.
type AuditConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// BridgeConfig is the full parsed configuration for one stpd instance.
type BridgeConfig struct {
	BridgeAddress  string        `mapstructure:"bridge_address"`
	ForceVersion   string        `mapstructure:"force_version"` // "stp", "rstp" or "mstp"
	BridgePriority uint16        `mapstructure:"bridge_priority"`
	MstConfigName  string        `mapstructure:"mst_config_name"`
	MstRevision    uint16        `mapstructure:"mst_revision"`
	MstiCount      int           `mapstructure:"msti_count"`
	Ports          []PortConfig  `mapstructure:"ports"`
	Vlans          []VlanMapping `mapstructure:"vlans"`
	Mgmt           MgmtAPIConfig `mapstructure:"mgmt"`
	Audit          AuditConfig   `mapstructure:"audit"`
}

// Default returns the configuration a freshly installed stpd should
// run with absent any file: a single bridge, no ports, RSTP, a
// loopback-only management API with no auth configured.
func Default() *BridgeConfig {
	return &BridgeConfig{
		ForceVersion:   "rstp",
		BridgePriority: 0x8000,
		MstConfigName:  "",
		MstiCount:      0,
		Mgmt: MgmtAPIConfig{
			ListenAddr:   "127.0.0.1:8080",
			TokenTTLMins: 60,
		},
		Audit: AuditConfig{
			DatabasePath: "stpd-audit.db",
		},
	}
}

// Load reads configuration from path (any format viper recognizes by
// extension: yaml, yml, json, toml) merged over Default, with any
// field overridable by an STPD_ prefixed, underscore-for-dot
// environment variable (e.g. STPD_BRIDGE_PRIORITY).
func Load(path string) (*BridgeConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("stpd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("force_version", def.ForceVersion)
	v.SetDefault("bridge_priority", def.BridgePriority)
	v.SetDefault("mgmt.listen_addr", def.Mgmt.ListenAddr)
	v.SetDefault("mgmt.token_ttl_minutes", def.Mgmt.TokenTTLMins)
	v.SetDefault("audit.database_path", def.Audit.DatabasePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("stpconfig: reading %s: %w", path, err)
	}

	var cfg BridgeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("stpconfig: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants NewBridge itself does not
// enforce (distinct port interfaces, VLANs mapped to an MSTI that
// actually exists) so misconfiguration is reported before any raw
// socket is opened.
func (c *BridgeConfig) Validate() error {
	if len(c.Ports) == 0 {
		return fmt.Errorf("stpconfig: at least one port is required")
	}
	seenIface := make(map[string]bool, len(c.Ports))
	seenIndex := make(map[int]bool, len(c.Ports))
	for _, p := range c.Ports {
		if p.Interface == "" {
			return fmt.Errorf("stpconfig: port %d: interface name is required", p.Index)
		}
		if seenIface[p.Interface] {
			return fmt.Errorf("stpconfig: interface %s assigned to more than one port", p.Interface)
		}
		seenIface[p.Interface] = true
		if seenIndex[p.Index] {
			return fmt.Errorf("stpconfig: port index %d used more than once", p.Index)
		}
		seenIndex[p.Index] = true
	}

	switch c.ForceVersion {
	case "stp", "rstp", "mstp":
	default:
		return fmt.Errorf("stpconfig: force_version must be one of stp, rstp, mstp, got %q", c.ForceVersion)
	}

	for _, vm := range c.Vlans {
		if vm.VID == 0 || vm.VID > 4094 {
			return fmt.Errorf("stpconfig: vlan %d out of range 1-4094", vm.VID)
		}
		if vm.MSTID > uint16(c.MstiCount) {
			return fmt.Errorf("stpconfig: vlan %d maps to mstid %d but msti_count is %d", vm.VID, vm.MSTID, c.MstiCount)
		}
	}

	if c.Mgmt.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.Mgmt.ListenAddr); err != nil {
			return fmt.Errorf("stpconfig: mgmt.listen_addr: %w", err)
		}
	}
	return nil
}

// BridgeAddressBytes parses BridgeAddress (a MAC-style
// "aa:bb:cc:dd:ee:ff" string) into the 6-byte form NewBridge expects.
func (c *BridgeConfig) BridgeAddressBytes() ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(c.BridgeAddress)
	if err != nil {
		return out, fmt.Errorf("stpconfig: bridge_address: %w", err)
	}
	if len(hw) != 6 {
		return out, fmt.Errorf("stpconfig: bridge_address must be a 6-byte MAC, got %d bytes", len(hw))
	}
	copy(out[:], hw)
	return out, nil
}
