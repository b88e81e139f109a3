// Package config loads the client's configuration from a YAML file,
// applies defaults, and lets environment variables override individual
// fields, following the same file/env-substitution/override layering
// this codebase uses for its other YAML-backed configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config enumerates every option from spec.md §6.
type Config struct {
	Initiator string `yaml:"initiator" json:"initiator"`

	Blockchain Blockchain `yaml:"blockchain" json:"blockchain"`

	StateManager string   `yaml:"stateManager" json:"stateManager"`
	External     External `yaml:"external" json:"external"`

	Bus     Bus     `yaml:"bus" json:"bus"`
	Threads Threads `yaml:"threads" json:"threads"`

	Fleet     []string `yaml:"fleet" json:"fleet"`
	TopicRoot string   `yaml:"topicRoot" json:"topicRoot"`

	CustomFormatters map[string]string `yaml:"customFormatters" json:"customFormatters"`
}

// Blockchain carries the identity/crypto related options.
type Blockchain struct {
	Key     string `yaml:"key" json:"key"`
	Encrypt *bool  `yaml:"encrypt" json:"encrypt"`
	Secure  *bool  `yaml:"secure" json:"secure"`
}

// External carries the `external.*` cache backend options.
type External struct {
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	Password      string `yaml:"password" json:"password"`
	PubSubChannel string `yaml:"pubSubChannel" json:"pubSubChannel"`
}

// Bus carries the `bus.*` transport options.
type Bus struct {
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Clean    bool   `yaml:"clean" json:"clean"`
	ClientID string `yaml:"clientId" json:"clientId"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// Threads carries the per-stream worker pool sizes.
type Threads struct {
	Heartbeats    int `yaml:"heartbeats" json:"heartbeats"`
	Notifications int `yaml:"notifications" json:"notifications"`
	Payloads      int `yaml:"payloads" json:"payloads"`
}

// EncryptEnabled reports blockchain.encrypt, defaulting to true when
// unset, per spec.md §6.
func (c *Config) EncryptEnabled() bool {
	if c.Blockchain.Encrypt == nil {
		return true
	}
	return *c.Blockchain.Encrypt
}

// SecureEnabled reports blockchain.secure, defaulting to true when
// unset, per spec.md §6.
func (c *Config) SecureEnabled() bool {
	if c.Blockchain.Secure == nil {
		return true
	}
	return *c.Blockchain.Secure
}

const (
	StateManagerInternal = "internal"
	StateManagerExternal = "external"
)

// LoadFromFile reads cfg from a YAML (falling back to JSON) file and
// applies defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg back out, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// setDefaults fills in the options spec.md §6 declares optional.
func setDefaults(cfg *Config) {
	if cfg.StateManager == "" {
		cfg.StateManager = StateManagerInternal
	}
	if cfg.TopicRoot == "" {
		cfg.TopicRoot = "0xAI"
	}
	if len(cfg.Fleet) == 0 {
		cfg.Fleet = []string{"*"}
	}
	if cfg.Threads.Heartbeats == 0 {
		cfg.Threads.Heartbeats = 1
	}
	if cfg.Threads.Notifications == 0 {
		cfg.Threads.Notifications = 1
	}
	if cfg.Threads.Payloads == 0 {
		cfg.Threads.Payloads = 1
	}
	if cfg.External.Host == "" {
		cfg.External.Host = "localhost"
	}
	if cfg.External.Port == 0 {
		cfg.External.Port = 6379
	}
	if cfg.Bus.Prefix == "" {
		cfg.Bus.Prefix = "$initiator"
	}
}
