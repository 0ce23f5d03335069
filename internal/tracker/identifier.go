// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tracker implements the Tracker Identifier (§4.A): resolving an
// announce URL to the site that owns it, and extracting that site's
// torrent id from the URL.
package tracker

import (
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"golang.org/x/net/publicsuffix"
)

// DomainEntry binds one host to the site that serves it.
type DomainEntry struct {
	Domain string
	SiteID string
}

// Match is the result of a successful Identify call.
type Match struct {
	SiteID    string
	TorrentID string
}

// UnknownTorrentID is recorded when a matched site's URL carries no
// extractable id — the caller still indexes the entry as a sentinel
// (§3: "still useful ... downloads will be skipped").
const UnknownTorrentID = "unknown"

var errUnrecognized = &unrecognizedError{}

type unrecognizedError struct{}

func (*unrecognizedError) Error() string { return "announce url matches no known site" }

// ErrUnrecognized is returned by Identify when no site claims the URL's
// host, by exact or registrable-domain match.
var ErrUnrecognized error = errUnrecognized

// IDPattern is a site template's compiled id-extraction regexp (§4.A step
// "torrent id extraction"). A capturing group named "id" wins; otherwise
// capture group 1 is used.
type IDPattern struct {
	SiteID  string
	Pattern *regexp.Regexp
}

// Identifier resolves announce URLs to sites. It is safe for concurrent
// use; Reload swaps the domain table atomically so a running Identify call
// never observes a half-updated table.
type Identifier struct {
	domains  atomic.Pointer[map[string]string] // lowercased host -> site id
	patterns atomic.Pointer[map[string]*regexp.Regexp]
}

// New builds an Identifier from the given domain bindings and per-site id
// patterns (from the site template registry, §4.E).
func New(domains []DomainEntry, patterns []IDPattern) *Identifier {
	id := &Identifier{}
	id.Reload(domains, patterns)
	return id
}

// Reload atomically swaps the domain table and id-pattern table, e.g.
// after a site is added, removed, or its tracker domains change.
func (id *Identifier) Reload(domains []DomainEntry, patterns []IDPattern) {
	domainMap := make(map[string]string, len(domains))
	for _, d := range domains {
		domainMap[strings.ToLower(d.Domain)] = d.SiteID
	}
	id.domains.Store(&domainMap)

	patternMap := make(map[string]*regexp.Regexp, len(patterns))
	for _, p := range patterns {
		patternMap[p.SiteID] = p.Pattern
	}
	id.patterns.Store(&patternMap)
}

// Identify resolves announceURL to a site and extracts its torrent id.
// Returns ErrUnrecognized if no site claims the URL's host.
func (id *Identifier) Identify(announceURL string) (Match, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return Match{}, ErrUnrecognized
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Match{}, ErrUnrecognized
	}

	siteID, ok := id.lookup(host)
	if !ok {
		return Match{}, ErrUnrecognized
	}

	return Match{SiteID: siteID, TorrentID: id.extractTorrentID(u, siteID)}, nil
}

func (id *Identifier) lookup(host string) (string, bool) {
	domains := *id.domains.Load()

	if siteID, ok := domains[host]; ok {
		return siteID, true
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	if siteID, ok := domains[registrable]; ok {
		return siteID, true
	}

	// Walk left-to-right label groups from longest to shortest, stopping
	// once only the public suffix + one label remain (avoid matching a
	// bare TLD) — subsumes "strip leading labels one at a time".
	suffix, _ := publicsuffix.PublicSuffix(host)
	labels := strings.Split(host, ".")
	suffixLabels := strings.Count(suffix, ".") + 1

	for i := 1; len(labels[i:]) > suffixLabels; i++ {
		candidate := strings.Join(labels[i:], ".")
		if siteID, ok := domains[candidate]; ok {
			return siteID, true
		}
	}
	return "", false
}

// extractTorrentID scans query parameters in the order §4.A specifies,
// then the site's compiled id regexp, then falls back to the "unknown"
// sentinel.
func (id *Identifier) extractTorrentID(u *url.URL, siteID string) string {
	q := u.Query()
	for _, key := range []string{"torrent_id", "id", "tid"} {
		if v := q.Get(key); v != "" {
			return v
		}
	}

	patterns := *id.patterns.Load()
	pattern, ok := patterns[siteID]
	if !ok || pattern == nil {
		return UnknownTorrentID
	}

	match := pattern.FindStringSubmatch(u.String())
	if match == nil {
		return UnknownTorrentID
	}

	for i, name := range pattern.SubexpNames() {
		if name == "id" && i < len(match) && match[i] != "" {
			return match[i]
		}
	}
	if len(match) > 1 && match[1] != "" {
		return match[1]
	}
	return UnknownTorrentID
}
