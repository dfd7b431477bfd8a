// Package config collects process configuration for the hub and agent
// from defaults, an optional TOML file, and environment variables, in
// that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DefaultFile is consulted when no explicit config file is given.
const DefaultFile = "pulsehub.toml"

// Mode selects which process to run.
type Mode string

const (
	ModeServer Mode = "server"
	ModeClient Mode = "client"
)

// Config is the merged process configuration.
type Config struct {
	// Mode selects hub (server) or agent (client).
	Mode Mode

	// Port the hub listens on (server mode).
	Port int

	// ServerURL is the hub endpoint (client mode).
	ServerURL string

	// ClientName is the agent's display label.
	ClientName string

	// ClientLocation is the agent's free-text location; empty lets the
	// hub default it to the observed origin address.
	ClientLocation string

	// HeartbeatInterval between agent liveness signals.
	HeartbeatInterval time.Duration

	// StaleTimeout before the hub evicts a silent peer.
	StaleTimeout time.Duration

	// SweepInterval between hub eviction passes.
	SweepInterval time.Duration

	// NATSURL enables the presence event mirror when set.
	NATSURL string

	// LogLevel for console output.
	LogLevel string
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Mode:              ModeServer,
		Port:              8080,
		ServerURL:         "ws://localhost:8080/ws",
		ClientName:        "Anonymous",
		HeartbeatInterval: 5 * time.Second,
		StaleTimeout:      30 * time.Second,
		SweepInterval:     10 * time.Second,
		LogLevel:          "info",
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.Mode != ModeServer && c.Mode != ModeClient {
		return fmt.Errorf("%w: mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.Mode == ModeClient && c.ServerURL == "" {
		return fmt.Errorf("%w: client mode requires a server URL", ErrInvalidConfig)
	}
	if c.HeartbeatInterval <= 0 || c.StaleTimeout <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	return nil
}

// Addr returns the hub listen address for the configured port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// fileConfig is the TOML shape; pointer fields distinguish "absent"
// from zero. Intervals are milliseconds, matching the env variables.
type fileConfig struct {
	Mode              *string `toml:"mode"`
	Port              *int    `toml:"port"`
	ServerURL         *string `toml:"server_url"`
	ClientName        *string `toml:"client_name"`
	ClientLocation    *string `toml:"client_location"`
	HeartbeatInterval *int64  `toml:"heartbeat_interval_ms"`
	StaleTimeout      *int64  `toml:"stale_timeout_ms"`
	SweepInterval     *int64  `toml:"sweep_interval_ms"`
	NATSURL           *string `toml:"nats_url"`
	LogLevel          *string `toml:"log_level"`
}

// Load builds the configuration: defaults, then the TOML file (explicit
// path, or DefaultFile when present), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFile overlays a TOML file onto cfg.
func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if fc.Mode != nil {
		cfg.Mode = Mode(*fc.Mode)
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.ServerURL != nil {
		cfg.ServerURL = *fc.ServerURL
	}
	if fc.ClientName != nil {
		cfg.ClientName = *fc.ClientName
	}
	if fc.ClientLocation != nil {
		cfg.ClientLocation = *fc.ClientLocation
	}
	if fc.HeartbeatInterval != nil {
		cfg.HeartbeatInterval = time.Duration(*fc.HeartbeatInterval) * time.Millisecond
	}
	if fc.StaleTimeout != nil {
		cfg.StaleTimeout = time.Duration(*fc.StaleTimeout) * time.Millisecond
	}
	if fc.SweepInterval != nil {
		cfg.SweepInterval = time.Duration(*fc.SweepInterval) * time.Millisecond
	}
	if fc.NATSURL != nil {
		cfg.NATSURL = *fc.NATSURL
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. The lookup function
// is injectable for tests.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		cfg.Port = port
	}
	if v := getenv("SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := getenv("CLIENT_NAME"); v != "" {
		cfg.ClientName = v
	}
	if v := getenv("CLIENT_LOCATION"); v != "" {
		cfg.ClientLocation = v
	}
	if v := getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	for _, iv := range []struct {
		name string
		dst  *time.Duration
	}{
		{name: "HEARTBEAT_INTERVAL", dst: &cfg.HeartbeatInterval},
		{name: "STALE_TIMEOUT", dst: &cfg.StaleTimeout},
		{name: "SWEEP_INTERVAL", dst: &cfg.SweepInterval},
	} {
		v := getenv(iv.name)
		if v == "" {
			continue
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, iv.name, v)
		}
		*iv.dst = time.Duration(ms) * time.Millisecond
	}

	return nil
}
