// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	_ "embed"

	"gopkg.in/yaml.v3"

	"github.com/graftnet/graft/internal/models"
)

//go:embed builtin_sites.yaml
var builtinSitesYAML []byte

type builtinSiteEntry struct {
	Domain   string              `yaml:"domain"`
	SiteID   string              `yaml:"site_id"`
	Template models.TemplateKind `yaml:"template"`
}

type builtinSitesFile struct {
	Sites []builtinSiteEntry `yaml:"sites"`
}

// BuiltinDomains returns the (domain, site_id) bindings shipped with the
// binary (§6), loaded into the Identifier ahead of any tracker_domains row.
func BuiltinDomains() ([]DomainEntry, error) {
	var parsed builtinSitesFile
	if err := yaml.Unmarshal(builtinSitesYAML, &parsed); err != nil {
		return nil, err
	}

	domains := make([]DomainEntry, len(parsed.Sites))
	for i, s := range parsed.Sites {
		domains[i] = DomainEntry{Domain: s.Domain, SiteID: s.SiteID}
	}
	return domains, nil
}

// BuiltinTemplates returns the template kind each built-in site speaks,
// keyed by site id, so callers can seed the id-pattern table alongside
// the domain table.
func BuiltinTemplates() (map[string]models.TemplateKind, error) {
	var parsed builtinSitesFile
	if err := yaml.Unmarshal(builtinSitesYAML, &parsed); err != nil {
		return nil, err
	}

	out := make(map[string]models.TemplateKind, len(parsed.Sites))
	for _, s := range parsed.Sites {
		out[s.SiteID] = s.Template
	}
	return out, nil
}
