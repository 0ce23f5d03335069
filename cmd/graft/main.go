// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Command graft runs the self-hosted cross-seeding assistant: its
// scheduler drives reseed_tasks in the background, and its subcommands
// (import, reseed, sites) run one-shot maintenance operations against the
// same database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/graftnet/graft/internal/reseed"
)

// schedulerShutdownGrace bounds how long the root command waits for an
// in-flight reseed run to finish before forcing process exit.
const schedulerShutdownGrace = 30 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "graft",
		Short: "Self-hosted cross-seeding assistant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configDir)
		},
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", defaultConfigDir(), "Path to Graft's config directory")

	cmd.AddCommand(newInitCommand(&configDir))
	cmd.AddCommand(newImportCommand(&configDir))
	cmd.AddCommand(newReseedCommand(&configDir))
	cmd.AddCommand(newSitesCommand(&configDir))

	return cmd
}

// runServe is the root command's default action: open the database, start
// the scheduler, and block until a signal arrives.
func runServe(ctx context.Context, configDir string) error {
	a, err := newApp(configDir)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := reseed.NewScheduler(a.tasks, a.reseedRunner, log.Logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("configDir", configDir).Msg("starting graft")

	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down, waiting for in-flight reseed runs")
	sched.Stop(schedulerShutdownGrace)
	<-done
	return nil
}

func defaultConfigDir() string {
	if dir := os.Getenv("GRAFT_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.config/graft"
}
