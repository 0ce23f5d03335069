// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/graftnet/graft/internal/dbinterface"
	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/pkg/hashutil"
)

// IndexEntry is one (content, site) pairing known to the index. TorrentID
// is the sentinel "unknown" when the announce URL carried no extractable
// id — the entry is still useful as "this site has this content" even
// though it can't be fetched (§3).
type IndexEntry struct {
	ID            int64
	InfoHash      string
	SiteID        string
	TorrentID     sql.NullString
	FingerprintID sql.NullInt64
	Name          sql.NullString
	Size          sql.NullInt64
	SavePath      sql.NullString
	SourceClient  sql.NullString
	CreatedAt     time.Time

	// Confidence is populated only on rows returned by IndexStore.FindMatches
	// (§4.C); it is not a persisted column.
	Confidence float64
}

const UnknownTorrentID = "unknown"

type IndexStore struct {
	db dbinterface.Querier
}

func NewIndexStore(db dbinterface.Querier) *IndexStore {
	return &IndexStore{db: db}
}

// UpsertEntry inserts entry, or on (info_hash, site_id) conflict (I1)
// updates the mutable columns while preserving created_at and
// fingerprint_id, exactly as §4.C specifies.
func (s *IndexStore) UpsertEntry(ctx context.Context, e *IndexEntry) error {
	e.InfoHash = hashutil.Normalize(e.InfoHash) // I3: case-normalized

	query := `
		INSERT INTO torrent_index (info_hash, site_id, torrent_id, fingerprint_id, name, size, save_path, source_client)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (info_hash, site_id) DO UPDATE SET
			torrent_id = excluded.torrent_id,
			name = excluded.name,
			size = excluded.size,
			save_path = excluded.save_path,
			source_client = excluded.source_client
		RETURNING id, created_at, fingerprint_id
	`
	err := s.db.QueryRowContext(ctx, query,
		e.InfoHash, e.SiteID, e.TorrentID, e.FingerprintID, e.Name, e.Size, e.SavePath, e.SourceClient,
	).Scan(&e.ID, &e.CreatedAt, &e.FingerprintID)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return fmt.Errorf("upsert entry for site %s: %w", e.SiteID, domain.ErrNotFound)
		}
		return fmt.Errorf("upsert entry: %w", domain.ErrIndexIO)
	}
	return nil
}

// Exists reports whether infoHash is already indexed for site.
func (s *IndexStore) Exists(ctx context.Context, infoHash, siteID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM torrent_index WHERE info_hash = ? AND site_id = ?`,
		hashutil.Normalize(infoHash), siteID,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", domain.ErrIndexIO)
	}
	return true, nil
}

// FindMatches is §4.C's critical query: every entry whose site is in
// targetSites and whose content is reachable from hashes either by exact
// info-hash or by shared fingerprint id. Results are ordered by confidence
// descending, then size descending, then (site_id, info_hash) ascending for
// a stable tie-break.
func (s *IndexStore) FindMatches(ctx context.Context, hashes []string, targetSites []string) ([]*IndexEntry, error) {
	if len(hashes) == 0 || len(targetSites) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(hashes))
	for i, h := range hashes {
		normalized[i] = hashutil.Normalize(h)
	}

	hashPlaceholders := placeholders(len(normalized))
	sitePlaceholders := placeholders(len(targetSites))

	query := fmt.Sprintf(`
		SELECT id, info_hash, site_id, torrent_id, fingerprint_id, name, size, save_path, source_client, created_at,
			CASE
				WHEN info_hash IN (%s) THEN 1.0
				WHEN fingerprint_id IN (
					SELECT fp.id FROM content_fingerprints fp
					JOIN torrent_index src ON src.fingerprint_id = fp.id
					WHERE src.info_hash IN (%s)
				) AND fingerprint_id IN (
					SELECT id FROM content_fingerprints WHERE files_hash IS NOT NULL
				) THEN 0.9
				ELSE 0.7
			END AS confidence
		FROM torrent_index
		WHERE site_id IN (%s)
		  AND (
			info_hash IN (%s)
			OR fingerprint_id IN (
				SELECT fp.id FROM content_fingerprints fp
				JOIN torrent_index src ON src.fingerprint_id = fp.id
				WHERE src.info_hash IN (%s)
			)
		  )
		ORDER BY confidence DESC, size DESC, site_id ASC, info_hash ASC
	`, hashPlaceholders, hashPlaceholders, sitePlaceholders, hashPlaceholders, hashPlaceholders)

	args := make([]any, 0, len(normalized)*3+len(targetSites))
	appendStrings := func(vals []string) {
		for _, v := range vals {
			args = append(args, v)
		}
	}
	appendStrings(normalized)
	appendStrings(normalized)
	for _, site := range targetSites {
		args = append(args, site)
	}
	appendStrings(normalized)
	appendStrings(normalized)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", domain.ErrIndexIO)
	}
	defer rows.Close()

	var out []*IndexEntry
	for rows.Next() {
		e := &IndexEntry{}
		if err := rows.Scan(
			&e.ID, &e.InfoHash, &e.SiteID, &e.TorrentID, &e.FingerprintID, &e.Name, &e.Size,
			&e.SavePath, &e.SourceClient, &e.CreatedAt, &e.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan match: %w", domain.ErrIndexIO)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// IndexStats summarizes the index size (§4.C's stats() read operation,
// extended per SPEC_FULL.md §4.C with a by-confidence breakdown).
type IndexStats struct {
	Total         int
	BySite        map[string]int
	ByConfidence  map[string]int // "exact" | "full" | "structural"
}

func (s *IndexStore) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{BySite: map[string]int{}, ByConfidence: map[string]int{}}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrent_index`)
	if err := row.Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("stats total: %w", domain.ErrIndexIO)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT site_id, COUNT(*) FROM torrent_index GROUP BY site_id`)
	if err != nil {
		return nil, fmt.Errorf("stats by site: %w", domain.ErrIndexIO)
	}
	defer rows.Close()
	for rows.Next() {
		var site string
		var count int
		if err := rows.Scan(&site, &count); err != nil {
			return nil, err
		}
		stats.BySite[site] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	confRows, err := s.db.QueryContext(ctx, `
		SELECT
			CASE
				WHEN ti.fingerprint_id IS NULL THEN 'exact'
				WHEN cf.files_hash IS NOT NULL THEN 'full'
				ELSE 'structural'
			END AS level,
			COUNT(*)
		FROM torrent_index ti
		LEFT JOIN content_fingerprints cf ON cf.id = ti.fingerprint_id
		GROUP BY level
	`)
	if err != nil {
		return nil, fmt.Errorf("stats by confidence: %w", domain.ErrIndexIO)
	}
	defer confRows.Close()
	for confRows.Next() {
		var level string
		var count int
		if err := confRows.Scan(&level, &count); err != nil {
			return nil, err
		}
		stats.ByConfidence[level] = count
	}
	return stats, confRows.Err()
}

// Clear deletes every index entry. Fingerprint rows are left in place as
// harmless orphans (§4.C).
func (s *IndexStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM torrent_index`); err != nil {
		return fmt.Errorf("clear index: %w", domain.ErrIndexIO)
	}
	return nil
}

func (s *IndexStore) ClearBySite(ctx context.Context, siteID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM torrent_index WHERE site_id = ?`, siteID); err != nil {
		return fmt.Errorf("clear index for site %s: %w", siteID, domain.ErrIndexIO)
	}
	return nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
