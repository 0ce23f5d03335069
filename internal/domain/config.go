// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// Config is Graft's runtime configuration, loaded from a TOML file merged
// with GRAFT_* environment variables (see internal/config).
type Config struct {
	Host     string `toml:"host" mapstructure:"host"`
	DataDir  string `toml:"dataDir" mapstructure:"dataDir"`
	LogLevel string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath  string `toml:"logPath" mapstructure:"logPath"`

	Port          int `toml:"port" mapstructure:"port"`
	LogMaxSize    int `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	// InterOpDelay is the fixed sleep the reseed executor takes between
	// matches, to smooth target-client load (spec §4.H step 8).
	InterOpDelay time.Duration `toml:"interOpDelay" mapstructure:"interOpDelay"`

	// DefaultSiteRPM seeds a newly added site's rate limit when none is given.
	DefaultSiteRPM int `toml:"defaultSiteRPM" mapstructure:"defaultSiteRPM"`
}

// DatabasePath returns the SQLite database file path for this configuration.
func (c *Config) DatabasePath() string {
	return c.DataDir + "/graft.db"
}

// DefaultConfig returns a Config populated with Graft's defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           7475,
		DataDir:        "./data",
		LogLevel:       "info",
		LogMaxSize:     50,
		LogMaxBackups:  3,
		InterOpDelay:   500 * time.Millisecond,
		DefaultSiteRPM: 10,
	}
}
