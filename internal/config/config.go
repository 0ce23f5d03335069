// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads Graft's TOML configuration file, merges it with
// GRAFT_* environment variables via viper, and watches it for changes with
// fsnotify so a running process can pick up log-level edits without a
// restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/graftnet/graft/internal/domain"
)

// Config wraps domain.Config with the viper instance and file path it was
// loaded from, so it can be reloaded and persisted back to disk.
type Config struct {
	domain.Config

	configPath string
	v          *viper.Viper

	mu             sync.RWMutex
	onChange       []func(*domain.Config)
	watcherStarted bool
}

// New loads configPath, applying defaults and GRAFT_* environment overrides.
// configPath must already exist; callers that need to scaffold a fresh
// config file should do so before calling New (see cmd/graft).
func New(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 7475)
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("defaultSiteRPM", 10)

	v.SetEnvPrefix("GRAFT")
	v.AutomaticEnv()
	_ = v.BindEnv("databasePath", "GRAFT_DATABASE_PATH")
	_ = v.BindEnv("logLevel", "GRAFT_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := &Config{configPath: configPath, v: v}
	if err := cfg.reload(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) reload() error {
	var parsed domain.Config
	if err := c.v.Unmarshal(&parsed); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	c.mu.Lock()
	c.Config = parsed
	c.mu.Unlock()
	return nil
}

// GetDatabasePath resolves the database file location: an explicit
// "databasePath" config key or GRAFT_DATABASE_PATH env var wins; otherwise
// the database sits next to the config file as graft.db.
func (c *Config) GetDatabasePath() string {
	if explicit := c.v.GetString("databasePath"); explicit != "" {
		return explicit
	}
	return filepath.Join(filepath.Dir(c.configPath), "graft.db")
}

// OnChange registers a callback invoked after the config file is reloaded
// following an on-disk edit. Callbacks run on the watcher goroutine.
func (c *Config) OnChange(fn func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Watch starts watching the config file for changes and reloads on write,
// notifying any OnChange callbacks. Safe to call once; subsequent calls
// are no-ops.
func (c *Config) Watch() error {
	c.mu.Lock()
	if c.watcherStarted {
		c.mu.Unlock()
		return nil
	}
	c.watcherStarted = true
	c.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(c.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}

	go c.watchLoop(watcher)
	return nil
}

func (c *Config) watchLoop(watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(c.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := c.v.ReadInConfig(); err != nil {
				log.Warn().Err(err).Msg("reload config after change")
				continue
			}
			if err := c.reload(); err != nil {
				log.Warn().Err(err).Msg("apply reloaded config")
				continue
			}

			c.mu.RLock()
			callbacks := append([]func(*domain.Config){}, c.onChange...)
			current := c.Config
			c.mu.RUnlock()

			for _, fn := range callbacks {
				fn(&current)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// EnsureDataDir creates the configured data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o755)
}
