// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sites implements the Site Adapter & Template Registry (§4.E): a
// closed dispatch table of the three tracker template flavors Graft
// understands, each contributing a download-URL builder and the id-pattern
// the Tracker Identifier uses when a query parameter doesn't carry the id.
package sites

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/graftnet/graft/internal/models"
)

// Template is one closed-table entry: how to build a download URL for a
// torrent id and passkey, and the regexp that extracts an id back out of a
// URL built from this template.
type Template struct {
	Kind       models.TemplateKind
	DownloadURL func(base, id, passkey string) string
	IDPattern  *regexp.Regexp
}

// Registry is the fixed set of templates Graft ships with. It never
// changes at runtime — adding a template flavor is a code change, not a
// configuration one, matching §4.E's closed pattern table.
var Registry = map[models.TemplateKind]Template{
	models.TemplateNexusPHP: {
		Kind: models.TemplateNexusPHP,
		DownloadURL: func(base, id, passkey string) string {
			return fmt.Sprintf("%s/download.php?id=%s&passkey=%s", trimBase(base), url.QueryEscape(id), url.QueryEscape(passkey))
		},
		IDPattern: regexp.MustCompile(`[?&]id=(?P<id>\d+)`),
	},
	models.TemplateUnit3D: {
		Kind: models.TemplateUnit3D,
		DownloadURL: func(base, id, passkey string) string {
			return fmt.Sprintf("%s/torrents/download/%s?torrent_pass=%s", trimBase(base), url.PathEscape(id), url.QueryEscape(passkey))
		},
		IDPattern: regexp.MustCompile(`/torrents/download/(?P<id>[^/?]+)`),
	},
	models.TemplateGazelle: {
		Kind: models.TemplateGazelle,
		DownloadURL: func(base, id, passkey string) string {
			return fmt.Sprintf("%s/torrents.php?action=download&id=%s&torrent_pass=%s", trimBase(base), url.QueryEscape(id), url.QueryEscape(passkey))
		},
		IDPattern: regexp.MustCompile(`[?&]action=download[^#]*[?&]id=(?P<id>\d+)`),
	},
}

func trimBase(base string) string {
	return strings.TrimSuffix(base, "/")
}

// DownloadURL builds the download URL for a site's template, torrent id,
// and passkey. Returns an error for a template kind outside the closed set
// (a bad migration or a manually edited row).
func DownloadURL(tmpl models.TemplateKind, base, id, passkey string) (string, error) {
	t, ok := Registry[tmpl]
	if !ok {
		return "", fmt.Errorf("unknown site template %q", tmpl)
	}
	return t.DownloadURL(base, id, passkey), nil
}

// IDPatterns returns the fixed template-kind -> regexp table, keyed the
// way the Tracker Identifier wants it once paired with a site id.
func IDPatterns() map[models.TemplateKind]*regexp.Regexp {
	out := make(map[models.TemplateKind]*regexp.Regexp, len(Registry))
	for kind, t := range Registry {
		out[kind] = t.IDPattern
	}
	return out
}
