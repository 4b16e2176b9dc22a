// Package config loads node configuration from YAML with defaults-merge
// semantics: absent fields keep their defaults, an absent file yields the
// default configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig is the on-disk configuration of a mesh node
type NodeConfig struct {
	Name      string          `yaml:"name"`
	Keystore  string          `yaml:"keystore"`
	Transport TransportConfig `yaml:"transport"`

	// Interfaces declares the physical media the consumer should
	// instantiate and attach; the core never opens them itself
	Interfaces []InterfaceConfig `yaml:"interfaces"`
}

// TransportConfig tunes transport housekeeping
type TransportConfig struct {
	ReassemblyTimeout time.Duration `yaml:"reassemblyTimeout"`
	ReceiptHorizon    time.Duration `yaml:"receiptHorizon"`
	PathTTL           time.Duration `yaml:"pathTTL"`
	AnnounceRate      float64       `yaml:"announceRate"`
	AnnounceBurst     int           `yaml:"announceBurst"`
	MaxInflight       int           `yaml:"maxInflight"`
}

// InterfaceConfig names one physical medium. Driver-specific settings stay
// opaque to the core.
type InterfaceConfig struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Address string            `yaml:"address"`
	Options map[string]string `yaml:"options"`
}

// Default returns the built-in configuration
func Default() NodeConfig {
	return NodeConfig{
		Name: "node",
		Transport: TransportConfig{
			ReassemblyTimeout: 30 * time.Second,
			ReceiptHorizon:    5 * time.Minute,
			PathTTL:           10 * time.Minute,
			AnnounceRate:      1.0,
			AnnounceBurst:     5,
			MaxInflight:       256,
		},
	}
}

// LoadFromPath reads the configuration file at path, merging it over the
// defaults. A missing file returns the defaults; a present but malformed
// file is an error.
func LoadFromPath(path string) (NodeConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var parsed NodeConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	merge(&cfg, parsed)
	return cfg, nil
}

func merge(dst *NodeConfig, src NodeConfig) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Keystore != "" {
		dst.Keystore = src.Keystore
	}
	if src.Transport.ReassemblyTimeout > 0 {
		dst.Transport.ReassemblyTimeout = src.Transport.ReassemblyTimeout
	}
	if src.Transport.ReceiptHorizon > 0 {
		dst.Transport.ReceiptHorizon = src.Transport.ReceiptHorizon
	}
	if src.Transport.PathTTL > 0 {
		dst.Transport.PathTTL = src.Transport.PathTTL
	}
	if src.Transport.AnnounceRate > 0 {
		dst.Transport.AnnounceRate = src.Transport.AnnounceRate
	}
	if src.Transport.AnnounceBurst > 0 {
		dst.Transport.AnnounceBurst = src.Transport.AnnounceBurst
	}
	if src.Transport.MaxInflight > 0 {
		dst.Transport.MaxInflight = src.Transport.MaxInflight
	}
	if len(src.Interfaces) > 0 {
		dst.Interfaces = src.Interfaces
	}
}
