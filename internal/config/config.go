// Package config loads runtime configuration for the sync engine and its CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags:
//
//	-d string   data directory holding the per-tenant databases
//	-i int      sync interval while work is pending (seconds)
//	-r int      durable retry ceiling before an op is dead-lettered
//	-t int      dead-letter retention (days)
package config

import "time"

// Config holds the runtime settings of the embedded store and sync driver.
type Config struct {
	// DataDir is where per-tenant database files live.
	DataDir string
	// SyncInterval paces sync passes while the outbox has work.
	SyncInterval time.Duration
	// IdleInterval paces sync passes once the outbox is drained.
	IdleInterval time.Duration
	// MaxTries is the durable per-op retry ceiling.
	MaxTries int
	// DeadLetterTTL bounds how long failed ops are retained.
	DeadLetterTTL time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "./data"
	c.SyncInterval = 30 * time.Second
	c.IdleInterval = 5 * time.Minute
	c.MaxTries = 5
	c.DeadLetterTTL = 30 * 24 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
