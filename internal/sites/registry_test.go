// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graftnet/graft/internal/models"
)

func TestDownloadURLNexusPHP(t *testing.T) {
	u, err := DownloadURL(models.TemplateNexusPHP, "https://nexus.example/", "42", "pk")
	require.NoError(t, err)
	assert.Equal(t, "https://nexus.example/download.php?id=42&passkey=pk", u)
}

func TestDownloadURLUnit3D(t *testing.T) {
	u, err := DownloadURL(models.TemplateUnit3D, "https://unit3d.example", "42", "pk")
	require.NoError(t, err)
	assert.Equal(t, "https://unit3d.example/torrents/download/42?torrent_pass=pk", u)
}

func TestDownloadURLGazelle(t *testing.T) {
	u, err := DownloadURL(models.TemplateGazelle, "https://gazelle.example", "42", "pk")
	require.NoError(t, err)
	assert.Equal(t, "https://gazelle.example/torrents.php?action=download&id=42&torrent_pass=pk", u)
}

func TestDownloadURLUnknownTemplate(t *testing.T) {
	_, err := DownloadURL(models.TemplateKind("unknown"), "https://x.example", "1", "pk")
	assert.Error(t, err)
}

func TestIDPatternExtractsCaptureGroup(t *testing.T) {
	for _, tt := range []struct {
		kind models.TemplateKind
		url  string
		want string
	}{
		{models.TemplateNexusPHP, "https://nexus.example/download.php?id=99&passkey=pk", "99"},
		{models.TemplateUnit3D, "https://unit3d.example/torrents/download/99?torrent_pass=pk", "99"},
		{models.TemplateGazelle, "https://gazelle.example/torrents.php?action=download&id=99&torrent_pass=pk", "99"},
	} {
		pattern := Registry[tt.kind].IDPattern
		match := pattern.FindStringSubmatch(tt.url)
		require.NotNil(t, match, "pattern should match %s", tt.url)
		assert.Equal(t, tt.want, match[pattern.SubexpIndex("id")])
	}
}
