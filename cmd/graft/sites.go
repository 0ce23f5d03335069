// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/graftnet/graft/internal/models"
)

func newSitesCommand(configDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Inspect configured sites",
	}
	cmd.AddCommand(newSitesListCommand(configDir))
	cmd.AddCommand(newSitesBindDomainCommand(configDir))
	return cmd
}

func newSitesListCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			siteList, err := a.sitesTbl.List(cmd.Context())
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			bold.Fprintf(cmd.OutOrStdout(), "%-20s %-10s %-30s %-8s\n", "ID", "TEMPLATE", "BASE URL", "RPM")
			for _, s := range siteList {
				cmd.Printf("%-20s %-10s %-30s %-8d\n", s.ID, s.Template, s.BaseURL, s.RPM)
			}
			return nil
		},
	}
}

// newSitesBindDomainCommand wires models.TrackerDomainStore.Bind, the only
// production caller: §3 requires the domain-to-site binding's last-writer-
// wins conflict to be detected and reported, not just silently applied.
func newSitesBindDomainCommand(configDir *string) *cobra.Command {
	var domainName, siteID string

	cmd := &cobra.Command{
		Use:   "bind-domain",
		Short: "Bind an announce-URL domain to a site, reporting any prior owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if domainName == "" || siteID == "" {
				return errors.New("--domain and --site are required")
			}

			a, err := newApp(*configDir)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.domains.Bind(cmd.Context(), domainName, siteID)
			if err != nil && !errors.Is(err, models.ErrDomainAlreadyBound) {
				return err
			}
			if result.Conflicted() {
				yellow := color.New(color.FgYellow)
				yellow.Fprintf(cmd.OutOrStdout(), "%s was bound to %s, now bound to %s\n", domainName, result.PreviousSiteID, siteID)
				return nil
			}

			cmd.Printf("%s bound to %s\n", domainName, siteID)
			return nil
		},
	}

	cmd.Flags().StringVar(&domainName, "domain", "", "Announce-URL host to bind")
	cmd.Flags().StringVar(&siteID, "site", "", "Site id to bind the domain to")
	return cmd
}
