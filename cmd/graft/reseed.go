// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graftnet/graft/internal/reseed"
)

func newReseedCommand(configDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reseed",
		Short: "Plan or run a cross-seed reseed",
	}
	cmd.AddCommand(newReseedPlanCommand(configDir))
	cmd.AddCommand(newReseedRunCommand(configDir))
	return cmd
}

func newReseedPlanCommand(configDir *string) *cobra.Command {
	var sourceID, targetID string
	var targetSites []string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the matches a reseed would act on, without downloading anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sourceID == "" || targetID == "" || len(targetSites) == 0 {
				return errors.New("--source, --target, and at least one --site are required")
			}

			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			identifier, err := a.identifier(ctx)
			if err != nil {
				return err
			}

			sourceRec, err := a.clients.Get(ctx, sourceID)
			if err != nil {
				return err
			}
			targetRec, err := a.clients.Get(ctx, targetID)
			if err != nil {
				return err
			}
			sourceClient, err := a.buildClient(sourceRec)
			if err != nil {
				return err
			}
			targetClient, err := a.buildClient(targetRec)
			if err != nil {
				return err
			}

			result, err := reseed.Plan(ctx, identifier, a.index, sourceClient, targetClient, targetSites)
			if err != nil {
				return err
			}

			printPlanSummary(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceID, "source", "", "Source download client id")
	cmd.Flags().StringVar(&targetID, "target", "", "Target download client id")
	cmd.Flags().StringSliceVar(&targetSites, "site", nil, "Target site id (repeatable)")
	return cmd
}

func newReseedRunCommand(configDir *string) *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and execute one configured reseed task now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if taskID == "" {
				return errors.New("--task is required")
			}

			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			task, err := a.tasks.Get(ctx, taskID)
			if err != nil {
				return err
			}

			result, err := a.runReseedTask(ctx, task)
			if err != nil {
				return err
			}
			if err := a.tasks.MarkRun(ctx, task.ID, time.Now()); err != nil {
				return err
			}

			printExecutionSummary(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "reseed_tasks id to run")
	return cmd
}

func printPlanSummary(cmd *cobra.Command, result *reseed.PlanResult) {
	bold := color.New(color.Bold)
	bold.Fprintf(cmd.OutOrStdout(), "%d match(es), %d bytes total\n", len(result.Matches), result.TotalSize)
	for _, m := range result.Matches {
		cmd.Printf("  %s  %s -> %s  (%.1f confidence)  %s\n", m.SourceHash[:8], m.SourceSite, m.TargetSite, m.Confidence, m.SourceName)
	}
}

func printExecutionSummary(cmd *cobra.Command, result *reseed.ExecutionResult) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintln(cmd.OutOrStdout(), "Reseed run complete")
	cmd.Printf("  total:   %d\n", result.Total)
	green.Fprintf(cmd.OutOrStdout(), "  success: %d\n", result.Success)
	yellow.Fprintf(cmd.OutOrStdout(), "  skipped: %d\n", result.Skipped)
	red.Fprintf(cmd.OutOrStdout(), "  failed:  %d\n", result.Failed)
}
