// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package importer implements the Index Importer (§4.F): given a download
// client and an origin label, enumerate its torrents and fold each one
// into the index under the site its announce list resolves to.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/sync/errgroup"

	"github.com/graftnet/graft/internal/clients"
	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/fingerprint"
	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/internal/tracker"
)

// defaultConcurrency bounds per-torrent classification fan-out, mirroring
// the teacher's tracker-fetch concurrency pattern for the same reason: a
// client with tens of thousands of torrents would otherwise serialize on
// per-row upserts.
const defaultConcurrency = 8

// listRetryAttempts and listRetryDelay bound the retry around the single
// client-listing call inside Import (§4.F);
// an Unreachable client is exactly the retryable kind in §7.
const listRetryAttempts = 3

var listRetryDelay = 250 * time.Millisecond

// Counters tallies one Import run's outcome (§4.F).
type Counters struct {
	Total        int
	Imported     int
	Skipped      int
	Unrecognized int
}

// Importer is a pure, single-pass classifier from a client's torrent list
// to index entries. It holds no state across calls.
type Importer struct {
	identifier   *tracker.Identifier
	index        *models.IndexStore
	fingerprints *models.FingerprintStore
	concurrency  int
}

func New(identifier *tracker.Identifier, index *models.IndexStore, fingerprints *models.FingerprintStore) *Importer {
	return &Importer{
		identifier:   identifier,
		index:        index,
		fingerprints: fingerprints,
		concurrency:  defaultConcurrency,
	}
}

// Import enumerates c's torrents (§4.F step 1, retried as a single call)
// and classifies each one against the Tracker Identifier (steps 2-5).
func (imp *Importer) Import(ctx context.Context, c clients.Client, origin string) (*Counters, error) {
	torrents, err := listWithRetry(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("list torrents from %s: %w", origin, err)
	}

	counters := &Counters{Total: len(torrents)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.concurrency)

	for _, t := range torrents {
		t := t
		g.Go(func() error {
			outcome, err := imp.classify(gctx, c, t, origin)
			if err != nil {
				return err
			}
			mu.Lock()
			switch outcome {
			case outcomeImported:
				counters.Imported++
			case outcomeSkipped:
				counters.Skipped++
			case outcomeUnrecognized:
				counters.Unrecognized++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return counters, fmt.Errorf("import from %s: %w", origin, err)
	}
	return counters, nil
}

type outcome int

const (
	outcomeUnrecognized outcome = iota
	outcomeSkipped
	outcomeImported
)

// classify resolves one torrent's site via its announce list (first match
// wins) and upserts an index entry, computing a fingerprint when a file
// list is available.
func (imp *Importer) classify(ctx context.Context, c clients.Client, t clients.TorrentView, origin string) (outcome, error) {
	var match *tracker.Match
	for _, announce := range t.Trackers {
		m, err := imp.identifier.Identify(announce)
		if err != nil {
			continue
		}
		match = &m
		break
	}
	if match == nil {
		return outcomeUnrecognized, nil
	}

	exists, err := imp.index.Exists(ctx, t.InfoHash, match.SiteID)
	if err != nil {
		return 0, err
	}
	if exists {
		return outcomeSkipped, nil
	}

	var fingerprintID sql.NullInt64
	if files, ok, err := c.Files(ctx, t.InfoHash); err == nil && ok && len(files) > 0 {
		fpFiles := make([]fingerprint.File, len(files))
		var largest int64
		for i, f := range files {
			fpFiles[i] = fingerprint.File{Path: f.Path, Size: f.Size}
			if f.Size > largest {
				largest = f.Size
			}
		}
		fp, err := fingerprint.ComputeFromTuple(t.Size, len(files), largest, fpFiles)
		if err != nil {
			return 0, err
		}
		id, err := imp.fingerprints.Ensure(ctx, models.Fingerprint{
			TotalSize:       fp.TotalSize,
			FileCount:       fp.FileCount,
			LargestFileSize: fp.LargestFileSize,
			FilesHash:       nullString(fp.FilesHash),
		})
		if err != nil {
			return 0, err
		}
		fingerprintID = sql.NullInt64{Int64: id, Valid: true}
	}

	entry := &models.IndexEntry{
		InfoHash:      t.InfoHash,
		SiteID:        match.SiteID,
		TorrentID:     sql.NullString{String: match.TorrentID, Valid: true},
		FingerprintID: fingerprintID,
		Name:          sql.NullString{String: t.Name, Valid: t.Name != ""},
		Size:          sql.NullInt64{Int64: t.Size, Valid: true},
		SavePath:      sql.NullString{String: t.SavePath, Valid: t.SavePath != ""},
		SourceClient:  sql.NullString{String: origin, Valid: origin != ""},
	}
	if err := imp.index.UpsertEntry(ctx, entry); err != nil {
		// The Tracker Identifier can resolve a site id from a built-in
		// domain that has no corresponding sites row yet (§3); the upsert's
		// foreign key rejects it. Treat that the same as an unrecognized
		// tracker rather than failing the whole import.
		if errors.Is(err, domain.ErrNotFound) {
			return outcomeUnrecognized, nil
		}
		return 0, err
	}
	return outcomeImported, nil
}

func listWithRetry(ctx context.Context, c clients.Client) ([]clients.TorrentView, error) {
	var torrents []clients.TorrentView
	err := retry.Do(
		func() error {
			var err error
			torrents, err = c.ListTorrents(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(listRetryAttempts),
		retry.Delay(listRetryDelay),
		retry.DelayType(retry.BackOffDelay),
	)
	return torrents, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
