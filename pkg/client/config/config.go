// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

// Package config loads the belay command line configuration from its
// YAML file and the environment. The client library itself takes
// explicit options; this package only feeds the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config represents the command line client configuration
type Config struct {
	// Server is the vault base URL.
	Server string `yaml:"server"`

	// AuthMethod selects the auth method used to log in.
	AuthMethod string `yaml:"auth_method"`

	// AuthOptions carries the method specific options (role, token
	// paths, mount path).
	AuthOptions map[string]string `yaml:"auth_options"`

	// CACert points TLS verification at a PEM bundle.
	CACert string `yaml:"ca_cert"`

	// SkipTLSVerify disables certificate verification.
	SkipTLSVerify bool `yaml:"skip_tls_verify"`

	// Token pins a static token instead of logging in.
	Token string `yaml:"token"`

	// Storage paths (auto-populated from XDG)
	DataDir   string `yaml:"-"`
	ConfigDir string `yaml:"-"`
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Populate XDG directories
	cfg.DataDir = filepath.Join(xdg.DataHome, "belay")
	cfg.ConfigDir = filepath.Join(xdg.ConfigHome, "belay")

	return &cfg, nil
}

// LoadWithDefaults loads config from the default location or returns
// defaults when no file exists
func LoadWithDefaults() (*Config, error) {
	configPath := filepath.Join(xdg.ConfigHome, "belay", "config.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = &Config{}
		} else {
			return nil, err
		}
	}

	// Default to kubernetes auth when nothing is configured
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = "kubernetes"
	}

	// Apply environment variable overrides
	cfg.ApplyEnvVars()

	// Populate XDG directories if not set
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, "belay")
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = filepath.Join(xdg.ConfigHome, "belay")
	}

	return cfg, nil
}

// ApplyEnvVars applies environment variable overrides. The standard
// VAULT_* variables are honored first so belay drops into environments
// that already export them; BELAY_* variables win over both.
func (c *Config) ApplyEnvVars() {
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		c.Server = v
	}
	if v := os.Getenv("VAULT_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("VAULT_CACERT"); v != "" {
		c.CACert = v
	}
	if v := os.Getenv("VAULT_SKIP_VERIFY"); v == "1" || v == "true" {
		c.SkipTLSVerify = true
	}

	if v := os.Getenv("BELAY_SERVER"); v != "" {
		c.Server = v
	}
	if v := os.Getenv("BELAY_AUTH_METHOD"); v != "" {
		c.AuthMethod = v
	}
	if v := os.Getenv("BELAY_AUTH_OPTIONS"); v != "" {
		// Comma-separated key=value pairs
		if c.AuthOptions == nil {
			c.AuthOptions = map[string]string{}
		}
		for _, pair := range strings.Split(v, ",") {
			key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
			if found && key != "" {
				c.AuthOptions[key] = value
			}
		}
	}
	if v := os.Getenv("BELAY_TOKEN"); v != "" {
		c.Token = v
	}
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server URL is required (set via --server flag or VAULT_ADDR env var)")
	}
	return nil
}
