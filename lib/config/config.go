// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads server configuration.
//
// Configuration comes from a single YAML file named by the --config
// flag or the VELLUM_CONFIG environment variable. There is no
// automatic discovery and no fallback chain: one file, explicitly
// named, so a running server's configuration is always auditable.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied by Load when the file omits a field.
const (
	DefaultSessionTTL = 12 * time.Hour
	DefaultLogLevel   = "info"
)

// Config is the server configuration.
type Config struct {
	// DataDir is the root directory for persisted state: metadata
	// snapshots and revision logs. Required.
	DataDir string `yaml:"data_dir"`

	// SessionTTL bounds how long a login token stays valid. Expiry
	// is checked lazily at call entry, never by polling.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// AdminSecretFile names a file holding the initial admin
	// secret, consulted only when the data directory is empty (first
	// boot). Required for first boot, ignored afterwards.
	AdminSecretFile string `yaml:"admin_secret_file"`

	// LogLevel is the slog level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

// EnvConfig is the environment variable naming the config file when
// no --config flag is given.
const EnvConfig = "VELLUM_CONFIG"

// Load reads and validates the configuration file at path. An empty
// path falls back to the VELLUM_CONFIG environment variable.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return nil, fmt.Errorf("config: no file given (pass --config or set %s)", EnvConfig)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.SessionTTL < time.Minute {
		return fmt.Errorf("session_ttl %v is below the one-minute floor", c.SessionTTL)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
