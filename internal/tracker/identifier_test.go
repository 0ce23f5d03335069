// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracker

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyExactHostMatch(t *testing.T) {
	id := New([]DomainEntry{{Domain: "tracker.example.com", SiteID: "alpha"}}, nil)

	m, err := id.Identify("https://tracker.example.com/announce?torrent_id=42")
	require.NoError(t, err)
	assert.Equal(t, "alpha", m.SiteID)
	assert.Equal(t, "42", m.TorrentID)
}

func TestIdentifyIsCaseInsensitiveOnHost(t *testing.T) {
	id := New([]DomainEntry{{Domain: "tracker.example.com", SiteID: "alpha"}}, nil)

	m, err := id.Identify("https://TRACKER.EXAMPLE.COM/announce?id=1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", m.SiteID)
}

func TestIdentifyRegistrableDomainMatch(t *testing.T) {
	id := New([]DomainEntry{{Domain: "example.com", SiteID: "alpha"}}, nil)

	m, err := id.Identify("https://tracker.sub.example.com/announce?id=7")
	require.NoError(t, err)
	assert.Equal(t, "alpha", m.SiteID)
}

func TestIdentifyUnrecognizedHost(t *testing.T) {
	id := New([]DomainEntry{{Domain: "example.com", SiteID: "alpha"}}, nil)

	_, err := id.Identify("https://other.example.org/announce")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestIdentifyMalformedURL(t *testing.T) {
	id := New(nil, nil)

	_, err := id.Identify("://not a url")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestIdentifyQueryParamPrecedence(t *testing.T) {
	id := New([]DomainEntry{{Domain: "example.com", SiteID: "alpha"}}, nil)

	m, err := id.Identify("https://example.com/announce?tid=5&id=6&torrent_id=7")
	require.NoError(t, err)
	assert.Equal(t, "7", m.TorrentID)
}

func TestIdentifyFallsBackToTemplatePattern(t *testing.T) {
	pattern := regexp.MustCompile(`/torrents/(?P<id>\d+)/download`)
	id := New(
		[]DomainEntry{{Domain: "example.com", SiteID: "alpha"}},
		[]IDPattern{{SiteID: "alpha", Pattern: pattern}},
	)

	m, err := id.Identify("https://example.com/torrents/123/download")
	require.NoError(t, err)
	assert.Equal(t, "123", m.TorrentID)
}

func TestIdentifyFallsBackToUnknownSentinel(t *testing.T) {
	id := New([]DomainEntry{{Domain: "example.com", SiteID: "alpha"}}, nil)

	m, err := id.Identify("https://example.com/announce")
	require.NoError(t, err)
	assert.Equal(t, UnknownTorrentID, m.TorrentID)
}

func TestReloadSwapsDomainTableAtomically(t *testing.T) {
	id := New([]DomainEntry{{Domain: "old.example.com", SiteID: "alpha"}}, nil)

	_, err := id.Identify("https://new.example.com/announce")
	assert.ErrorIs(t, err, ErrUnrecognized)

	id.Reload([]DomainEntry{{Domain: "new.example.com", SiteID: "beta"}}, nil)

	m, err := id.Identify("https://new.example.com/announce")
	require.NoError(t, err)
	assert.Equal(t, "beta", m.SiteID)

	_, err = id.Identify("https://old.example.com/announce")
	assert.ErrorIs(t, err, ErrUnrecognized)
}
