// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the reservation
// server.
//
// Configuration is loaded from a single YAML file passed via the
// --config flag or the FLIGHTLINE_CONFIG environment variable. There
// are no fallbacks or automatic discovery; environment variables do
// not override file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server's master configuration.
type Config struct {
	// Listen is the TCP listen address, host:port.
	Listen string `yaml:"listen"`

	// Workers is the worker pool size: the number of connections
	// served concurrently.
	Workers int `yaml:"workers"`

	// QueueDepth bounds how many accepted connections may wait for a
	// worker before the accept loop itself stalls.
	QueueDepth int `yaml:"queue_depth"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Admin is the bootstrap admin account, created at startup if it
	// does not exist. Admin accounts are never created over the wire.
	Admin AdminConfig `yaml:"admin"`
}

// AdminConfig is the bootstrap admin account.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Default returns the built-in defaults, used as the base that the
// config file overrides.
func Default() *Config {
	return &Config{
		Listen:     ":12345",
		Workers:    50,
		QueueDepth: 100,
		LogLevel:   "info",
	}
}

// Load loads configuration from the path in the FLIGHTLINE_CONFIG
// environment variable.
func Load() (*Config, error) {
	configPath := os.Getenv("FLIGHTLINE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("FLIGHTLINE_CONFIG environment variable not set; " +
			"set it to the path of your flightline.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run
// with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive, got %d", c.QueueDepth)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return fmt.Errorf("admin username and password must be set together")
	}
	return nil
}
