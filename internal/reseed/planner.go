// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package reseed implements the Reseed Planner (§4.G) and Executor (§4.H):
// finding cross-seed opportunities for a source client's torrents on a set
// of target sites, and driving the actual downloads.
package reseed

import (
	"context"
	"fmt"

	"github.com/graftnet/graft/internal/clients"
	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/internal/tracker"
	"github.com/graftnet/graft/pkg/hashutil"
)

// Match is one reseed opportunity: a torrent the source client already
// holds that a target site is also known to carry.
type Match struct {
	SourceHash      string
	SourceName      string
	SourceSite      string // empty when the source torrent's own site couldn't be resolved
	TargetSite      string
	TargetTorrentID string // empty when the indexed entry carries UnknownTorrentID
	TargetHash      string
	SavePath        string
	Size            int64
	Confidence      float64
}

// PlanResult is the Planner's output: every match plus the sum of their
// sizes, handed to the Executor or displayed for review.
type PlanResult struct {
	Matches   []Match
	TotalSize int64
}

// Plan runs the unchanged 6-step algorithm (§4.G). It mutates nothing —
// safe to call concurrently, and the result is a snapshot of the index and
// both clients at call time.
func Plan(
	ctx context.Context,
	identifier *tracker.Identifier,
	index *models.IndexStore,
	sourceClient clients.Client,
	targetClient clients.Client,
	targetSites []string,
) (*PlanResult, error) {
	// Step 1: list the source client's torrents.
	sourceTorrents, err := sourceClient.ListTorrents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source torrents: %w", err)
	}

	// Step 2: the set of source info-hashes, normalized lowercase, plus
	// enough bookkeeping to join matches back to their source torrent and
	// to know each source torrent's own site (for self-reseed suppression).
	torrentByHash := make(map[string]clients.TorrentView, len(sourceTorrents))
	siteByHash := make(map[string]string, len(sourceTorrents))
	hashes := make([]string, 0, len(sourceTorrents))
	sourceSitesSeen := make(map[string]bool)

	for _, t := range sourceTorrents {
		hash := hashutil.Normalize(t.InfoHash)
		if hash == "" {
			continue
		}
		torrentByHash[hash] = t
		hashes = append(hashes, hash)

		if site, ok := resolveSite(identifier, t.Trackers); ok {
			siteByHash[hash] = site
			sourceSitesSeen[site] = true
		}
	}

	if len(hashes) == 0 {
		return &PlanResult{}, nil
	}

	sourceSites := make([]string, 0, len(sourceSitesSeen))
	for site := range sourceSitesSeen {
		sourceSites = append(sourceSites, site)
	}

	// Build a fingerprint -> source hash map from the index's own record
	// of these torrents on their source sites, so a structural/full match
	// against a target can be attributed back to the source hash that
	// shares its fingerprint.
	fingerprintToHash := make(map[int64]string)
	if len(sourceSites) > 0 {
		sourceEntries, err := index.FindMatches(ctx, hashes, sourceSites)
		if err != nil {
			return nil, fmt.Errorf("resolve source fingerprints: %w", err)
		}
		for _, e := range sourceEntries {
			if e.FingerprintID.Valid {
				if _, ok := torrentByHash[hashutil.Normalize(e.InfoHash)]; ok {
					fingerprintToHash[e.FingerprintID.Int64] = hashutil.Normalize(e.InfoHash)
				}
			}
		}
	}

	// Step 3: the critical index query.
	targetEntries, err := index.FindMatches(ctx, hashes, targetSites)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}

	// Steps 4-5: group by source hash, suppress self-reseed, join with the
	// source torrent for name/save_path/size.
	var matches []Match
	for _, e := range targetEntries {
		sourceHash := resolveSourceHash(e, torrentByHash, fingerprintToHash)
		if sourceHash == "" {
			continue
		}
		if siteByHash[sourceHash] == e.SiteID {
			continue // no self-reseed
		}

		src := torrentByHash[sourceHash]
		targetTorrentID := e.TorrentID.String
		if targetTorrentID == tracker.UnknownTorrentID {
			targetTorrentID = ""
		}

		matches = append(matches, Match{
			SourceHash:      sourceHash,
			SourceName:      src.Name,
			SourceSite:      siteByHash[sourceHash],
			TargetSite:      e.SiteID,
			TargetTorrentID: targetTorrentID,
			TargetHash:      hashutil.Normalize(e.InfoHash),
			SavePath:        src.SavePath,
			Size:            src.Size,
			Confidence:      e.Confidence,
		})
	}

	// Step 6: drop matches the target client already holds.
	targetTorrents, err := targetClient.ListTorrents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list target torrents: %w", err)
	}
	targetHeld := make(map[string]bool, len(targetTorrents))
	for _, t := range targetTorrents {
		targetHeld[hashutil.Normalize(t.InfoHash)] = true
	}

	result := &PlanResult{}
	for _, m := range matches {
		if targetHeld[m.TargetHash] {
			continue
		}
		result.Matches = append(result.Matches, m)
		result.TotalSize += m.Size
	}
	return result, nil
}

// resolveSite walks a torrent's announce list in order, returning the
// first site the Tracker Identifier recognizes — the same "first match
// wins" rule the importer uses (§4.F step 2).
func resolveSite(identifier *tracker.Identifier, announces []string) (string, bool) {
	for _, announce := range announces {
		m, err := identifier.Identify(announce)
		if err == nil {
			return m.SiteID, true
		}
	}
	return "", false
}

// resolveSourceHash attributes an index entry back to the source hash
// that produced it: directly, for an exact info-hash match, or via the
// shared fingerprint, for a structural/full match.
func resolveSourceHash(e *models.IndexEntry, torrentByHash map[string]clients.TorrentView, fingerprintToHash map[int64]string) string {
	hash := hashutil.Normalize(e.InfoHash)
	if _, ok := torrentByHash[hash]; ok {
		return hash
	}
	if e.FingerprintID.Valid {
		return fingerprintToHash[e.FingerprintID.Int64]
	}
	return ""
}
