// Package config loads, validates, and persists node configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TLSConfig holds paths to the PEM files needed for peer-link mTLS. When
// nil or all paths empty, the node falls back to plain WebSocket.
type TLSConfig struct {
	CACert   string `json:"caCert"`
	NodeCert string `json:"nodeCert"`
	NodeKey  string `json:"nodeKey"`
}

// SeedPeer identifies a remote node to dial on startup.
type SeedPeer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// GenesisConfig describes the chain's initial allocation. Other chain
// parameters (block time, reward, min stake, ...) are fixed per §6 and
// come from ledger.DefaultChainParams rather than being configurable.
type GenesisConfig struct {
	NetworkID string            `json:"networkId"`
	Timestamp int64             `json:"timestamp"`
	Alloc     map[string]uint64 `json:"alloc"`
}

// Config holds all node configuration, loaded from <data-dir>/config.json
// and overridable by CLI flags (see cmd/aurumnode).
type Config struct {
	NodeID      string   `json:"nodeId"`
	DataDir     string   `json:"dataDir"`
	P2PPort     int      `json:"p2pPort"`
	RPCPort     int      `json:"rpcPort"`
	APIPort     int      `json:"apiPort"`
	LogLevel    string   `json:"logLevel"`
	NoAPI       bool     `json:"noApi"`
	NoDiscovery bool     `json:"noDiscovery"`
	MaxPeers    int      `json:"maxPeers"`
	MaxBlockTxs int      `json:"maxBlockTxs"`

	// SnapshotInterval is how many appended blocks pass between full-state
	// snapshot writes (default 1: snapshot after every block).
	SnapshotInterval int64 `json:"snapshotInterval"`

	SeedPeers []SeedPeer    `json:"seedPeers,omitempty"`
	Genesis   GenesisConfig `json:"genesis"`
	TLS       *TLSConfig    `json:"tls,omitempty"`

	ValidatorAddress string `json:"validatorAddress,omitempty"`
}

// Default returns a single-node development configuration.
func Default() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		P2PPort:     30303,
		RPCPort:     8645,
		APIPort:     8080,
		LogLevel:    "info",
		MaxPeers:         50,
		MaxBlockTxs:      500,
		SnapshotInterval: 1,
		Genesis: GenesisConfig{
			NetworkID: "aurum-dev",
			Alloc:     map[string]uint64{},
		},
	}
}

// Load reads a JSON config file from path, falling back to Default if the
// file does not exist, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("nodeId must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("dataDir must not be empty")
	}
	if c.Genesis.NetworkID == "" {
		return fmt.Errorf("genesis.networkId must not be empty")
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2pPort must be 1-65535, got %d", c.P2PPort)
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpcPort must be 1-65535, got %d", c.RPCPort)
	}
	if c.P2PPort == c.RPCPort {
		return fmt.Errorf("p2pPort and rpcPort must differ (%d)", c.P2PPort)
	}
	if c.MaxPeers <= 0 {
		return fmt.Errorf("maxPeers must be positive, got %d", c.MaxPeers)
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshotInterval must be positive, got %d", c.SnapshotInterval)
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: caCert, nodeCert and nodeKey must be all set or all empty")
		}
	}
	return nil
}

// Save writes cfg to path as formatted JSON with 0600 permissions.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
