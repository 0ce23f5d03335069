// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"context"
	"fmt"

	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/internal/sites"
)

// LoadFromStore builds the full domain and id-pattern tables an Identifier
// needs: the built-in table first, then every tracker_domains row (§6,
// "Loaded into the Tracker Identifier at startup before any user
// domain"), and an id pattern per site drawn from its template's entry in
// the site registry.
func LoadFromStore(ctx context.Context, domains *models.TrackerDomainStore, siteStore *models.SiteStore) ([]DomainEntry, []IDPattern, error) {
	builtinDomains, err := BuiltinDomains()
	if err != nil {
		return nil, nil, fmt.Errorf("load builtin sites: %w", err)
	}
	builtinTemplates, err := BuiltinTemplates()
	if err != nil {
		return nil, nil, fmt.Errorf("load builtin sites: %w", err)
	}

	rows, err := domains.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tracker domains: %w", err)
	}

	userSites, err := siteStore.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list sites: %w", err)
	}
	templateBySite := make(map[string]models.TemplateKind, len(userSites))
	for _, s := range userSites {
		templateBySite[s.ID] = s.Template
	}

	entries := append([]DomainEntry{}, builtinDomains...)
	for _, row := range rows {
		entries = append(entries, DomainEntry{Domain: row.Domain, SiteID: row.SiteID})
	}

	patternRegistry := sites.IDPatterns()
	seen := make(map[string]bool)
	var patterns []IDPattern

	addPattern := func(siteID string, tmpl models.TemplateKind) {
		if seen[siteID] {
			return
		}
		if pattern, ok := patternRegistry[tmpl]; ok {
			patterns = append(patterns, IDPattern{SiteID: siteID, Pattern: pattern})
			seen[siteID] = true
		}
	}

	for siteID, tmpl := range builtinTemplates {
		addPattern(siteID, tmpl)
	}
	for siteID, tmpl := range templateBySite {
		addPattern(siteID, tmpl)
	}

	return entries, patterns, nil
}
