// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graftnet/graft/internal/importer"
)

func newImportCommand(configDir *string) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Classify one download client's torrents into the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clientID == "" {
				return errors.New("--client is required")
			}

			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			rec, err := a.clients.Get(ctx, clientID)
			if err != nil {
				return err
			}
			c, err := a.buildClient(rec)
			if err != nil {
				return err
			}
			identifier, err := a.identifier(ctx)
			if err != nil {
				return err
			}

			counters, err := importer.New(identifier, a.index, a.fps).Import(ctx, c, clientID)
			if err != nil {
				return err
			}

			printImportSummary(cmd, counters)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "Download client id to import from")
	return cmd
}

func printImportSummary(cmd *cobra.Command, counters *importer.Counters) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintln(cmd.OutOrStdout(), "Import complete")
	cmd.Printf("  total:        %d\n", counters.Total)
	green.Fprintf(cmd.OutOrStdout(), "  imported:     %d\n", counters.Imported)
	yellow.Fprintf(cmd.OutOrStdout(), "  skipped:      %d\n", counters.Skipped)
	red.Fprintf(cmd.OutOrStdout(), "  unrecognized: %d\n", counters.Unrecognized)
}
