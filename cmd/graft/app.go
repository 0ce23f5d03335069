// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/graftnet/graft/internal/clients"
	"github.com/graftnet/graft/internal/config"
	"github.com/graftnet/graft/internal/database"
	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/internal/reseed"
	"github.com/graftnet/graft/internal/secretbox"
	"github.com/graftnet/graft/internal/sites"
	"github.com/graftnet/graft/internal/tracker"
)

// app bundles every store and service a subcommand needs. It owns the
// database connection and must be closed by its caller.
type app struct {
	cfg *config.Config
	db  *database.DB

	clients  *models.ClientStore
	sitesTbl *models.SiteStore
	domains  *models.TrackerDomainStore
	index    *models.IndexStore
	fps      *models.FingerprintStore
	tasks    *models.TaskStore
	history  *models.HistoryStore

	crypt       *secretbox.AESEncryptor
	siteManager *sites.Manager
}

// setupLogger configures the global zerolog logger the way the teacher
// does: console-writer to stderr for a TTY, JSON otherwise, optional
// lumberjack file sink when LogPath is set.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	if cfg.LogPath != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		log.Logger = zerolog.New(zerolog.MultiLevelWriter(out, fileWriter)).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// newApp loads configuration from configDir, opens the database, decrypts
// or mints the at-rest encryption key, and wires every store.
func newApp(configDir string) (*app, error) {
	configPath := configDir + "/config.toml"
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := database.Open(cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	key, err := loadOrCreateEncryptionKey(cfg.DataDir + "/secret.key")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	crypt, err := secretbox.New(key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build encryptor: %w", err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		clients:  models.NewClientStore(db),
		sitesTbl: models.NewSiteStore(db),
		domains:  models.NewTrackerDomainStore(db),
		index:    models.NewIndexStore(db),
		fps:      models.NewFingerprintStore(db),
		tasks:    models.NewTaskStore(db),
		history:  models.NewHistoryStore(db),
		crypt:    crypt,
	}
	a.siteManager = sites.NewManager(a.sitesTbl, a.crypt)

	cfg.OnChange(a.applyConfigChange)
	if err := cfg.Watch(); err != nil {
		db.Close()
		return nil, fmt.Errorf("watch config: %w", err)
	}

	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// applyConfigChange re-applies the settings that can change without a
// restart (§6). Log level hot-reloads here; per-site rate limits live in
// the sites table and take effect through sites.Manager.Invalidate when a
// site's RPM is edited, since DefaultSiteRPM only seeds a new site's RPM
// and has no running limiter to override.
func (a *app) applyConfigChange(cfg *domain.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("logLevel", cfg.LogLevel).Msg("ignoring invalid log level from config reload")
		return
	}
	if level == zerolog.GlobalLevel() {
		return
	}
	zerolog.SetGlobalLevel(level)
	log.Info().Str("logLevel", level.String()).Msg("log level updated from config reload")
}

// identifier builds a fresh Tracker Identifier from the current database
// state — the builtin table plus every tracker_domains row, per §6
// ("loaded... at startup before any user domain").
func (a *app) identifier(ctx context.Context) (*tracker.Identifier, error) {
	domainEntries, patterns, err := tracker.LoadFromStore(ctx, a.domains, a.sitesTbl)
	if err != nil {
		return nil, err
	}
	return tracker.New(domainEntries, patterns), nil
}

// buildClient decrypts rec's stored password and constructs the matching
// clients.Client adapter (§4.D closed dispatch).
func (a *app) buildClient(rec *models.Client) (clients.Client, error) {
	password, err := a.clientPassword(rec)
	if err != nil {
		return nil, fmt.Errorf("decrypt client password: %w", err)
	}
	return clients.New(*rec, password)
}

// clientPassword decrypts c's stored password for building a clients.Client.
func (a *app) clientPassword(c *models.Client) (string, error) {
	if c.PasswordEncrypted == "" {
		return "", nil
	}
	return a.crypt.Decrypt(c.PasswordEncrypted)
}

// loadOrCreateEncryptionKey reads a 32-byte hex key from path, minting one
// on first run (§6 "encryption key... generated on first run").
func loadOrCreateEncryptionKey(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		return decodeHexKey(string(data))
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	token, err := secretbox.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return nil, err
	}
	return decodeHexKey(token)
}

func decodeHexKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return key, nil
}

// reseedRunner runs one reseed_tasks row end to end: plan, then execute,
// updating LastRunAt whether or not the run succeeded.
func (a *app) reseedRunner(ctx context.Context, task *models.ReseedTask) {
	defer func() {
		if err := a.tasks.MarkRun(ctx, task.ID, time.Now()); err != nil {
			log.Error().Err(err).Str("task", task.ID).Msg("mark reseed task run time")
		}
	}()

	result, err := a.runReseedTask(ctx, task)
	if err != nil {
		log.Error().Err(err).Str("task", task.ID).Msg("reseed task failed")
		return
	}
	log.Info().Str("task", task.ID).
		Int("success", result.Success).Int("failed", result.Failed).Int("skipped", result.Skipped).
		Msg("reseed task complete")
}

// runReseedTask plans and executes task, returning the Executor's result.
func (a *app) runReseedTask(ctx context.Context, task *models.ReseedTask) (*reseed.ExecutionResult, error) {
	identifier, err := a.identifier(ctx)
	if err != nil {
		return nil, err
	}

	sourceRec, err := a.clients.Get(ctx, task.SourceClientID)
	if err != nil {
		return nil, fmt.Errorf("load source client: %w", err)
	}
	targetRec, err := a.clients.Get(ctx, task.TargetClientID)
	if err != nil {
		return nil, fmt.Errorf("load target client: %w", err)
	}

	sourceClient, err := a.buildClient(sourceRec)
	if err != nil {
		return nil, fmt.Errorf("build source client: %w", err)
	}
	targetClient, err := a.buildClient(targetRec)
	if err != nil {
		return nil, fmt.Errorf("build target client: %w", err)
	}

	plan, err := reseed.Plan(ctx, identifier, a.index, sourceClient, targetClient, task.TargetSiteIDs)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	executor := reseed.NewExecutor(a.siteManager, a.history, targetClient, task.ID, task.AddPaused, false)
	return executor.Execute(ctx, plan)
}
