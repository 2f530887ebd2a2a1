// Package config loads the YAML configuration that drives a session's
// transport settings, a server's advertised topology, and its discovery
// announcement — the same "read a YAML file at startup into typed structs"
// shape the teacher uses for its device-identification table
// (src/deviceid.go), applied here to session/topology config instead of a
// vendor lookup table.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level on-disk configuration shape.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Topology  TopologyConfig  `yaml:"topology"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// TransportConfig configures a UDP session endpoint.
type TransportConfig struct {
	// OutstandingWindow bounds the sender's in-flight UMP Data command
	// buffer (spec: N >= 64).
	OutstandingWindow int `yaml:"outstanding_window"`
	// IdleTimeoutSeconds is how long to wait without traffic before
	// sending a liveness Ping (spec recommends 5s).
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
	// PingTimeoutSeconds is how long to wait for a Ping Reply before
	// counting the attempt as failed (spec recommends 2s).
	PingTimeoutSeconds int `yaml:"ping_timeout_seconds"`
	// PingAttempts is how many unanswered Pings close the session (spec
	// recommends 3).
	PingAttempts int `yaml:"ping_attempts"`
	// DefaultGroup is used by helpers that build MIDI1-shaped packets
	// when no group is otherwise specified.
	DefaultGroup uint8       `yaml:"default_group"`
	Auth         AuthConfig  `yaml:"auth"`
}

// AuthConfig selects and parameterizes the UDP transport's authentication
// method.
type AuthConfig struct {
	// Mode is one of "none", "shared-key", "user-pass".
	Mode      string `yaml:"mode"`
	SharedKey string `yaml:"shared_key"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// TopologyConfig is the statically configured topology a discovery server
// answers requests with.
type TopologyConfig struct {
	Name                 string                 `yaml:"name"`
	ProductInstanceID    string                 `yaml:"product_instance_id"`
	UMPVersionMajor      uint8                  `yaml:"ump_version_major"`
	UMPVersionMinor      uint8                  `yaml:"ump_version_minor"`
	SupportsMIDI1        bool                   `yaml:"supports_midi1_protocol"`
	SupportsMIDI2        bool                   `yaml:"supports_midi2_protocol"`
	SupportsJRTx         bool                   `yaml:"supports_jr_tx"`
	SupportsJRRx         bool                   `yaml:"supports_jr_rx"`
	FunctionBlocks       []FunctionBlockConfig  `yaml:"function_blocks"`
}

// FunctionBlockConfig is one configured Function Block.
type FunctionBlockConfig struct {
	ID          uint8  `yaml:"id"`
	Name        string `yaml:"name"`
	Direction   string `yaml:"direction"` // "in", "out", "bidir"
	UIHint      uint8  `yaml:"ui_hint"`
	FirstGroup  uint8  `yaml:"first_group"`
	NumGroups   uint8  `yaml:"num_groups"`
	MIDI1Mode   string `yaml:"midi1_mode"` // "none", "midi1_only", "midi1_31250bps"
	IsActive    bool   `yaml:"is_active"`
}

// DiscoveryConfig configures DNS-SD announcement of the UDP endpoint.
type DiscoveryConfig struct {
	Announce    bool   `yaml:"announce"`
	ServiceName string `yaml:"service_name"`
	Port        int    `yaml:"port"`
}

// Default returns a Config with the spec's recommended defaults.
func Default() Config {
	return Config{
		Transport: TransportConfig{
			OutstandingWindow:  64,
			IdleTimeoutSeconds: 5,
			PingTimeoutSeconds: 2,
			PingAttempts:       3,
			Auth:               AuthConfig{Mode: "none"},
		},
	}
}

// Load reads and parses a YAML config file. Keys the file does not set keep
// their Default() values; a key the file does set overrides the default,
// even when its value is zero. Unlike the teacher's deviceid.go, which
// searches a fixed list of OS-specific directories, the caller here
// supplies an explicit path: endpoint config is not a shared system
// resource the way a vendor table is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}
