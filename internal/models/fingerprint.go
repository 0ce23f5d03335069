// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/graftnet/graft/internal/dbinterface"
)

// Fingerprint is a content-addressed descriptor of a torrent's payload at
// one of three fidelity levels (§4.B). FilesHash is absent for
// structural-only fingerprints.
type Fingerprint struct {
	ID              int64
	TotalSize       int64
	FileCount       int
	LargestFileSize int64
	FilesHash       sql.NullString
	CreatedAt       time.Time
}

// Structural reports whether this fingerprint was computed without a file
// list (tuple only, no digest).
func (f *Fingerprint) Structural() bool {
	return !f.FilesHash.Valid
}

type FingerprintStore struct {
	db dbinterface.Querier
}

func NewFingerprintStore(db dbinterface.Querier) *FingerprintStore {
	return &FingerprintStore{db: db}
}

// Ensure is the content-addressed insert-or-return from §4.C: identical
// (total_size, file_count, largest_file_size, files_hash) always yields the
// same row (I4 — fingerprints are immutable once written).
func (s *FingerprintStore) Ensure(ctx context.Context, fp Fingerprint) (int64, error) {
	var id int64
	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM content_fingerprints
		WHERE total_size = ? AND file_count = ? AND largest_file_size = ? AND COALESCE(files_hash, '') = COALESCE(?, '')
	`, fp.TotalSize, fp.FileCount, fp.LargestFileSize, fp.FilesHash)
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup fingerprint: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO content_fingerprints (total_size, file_count, largest_file_size, files_hash)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, fp.TotalSize, fp.FileCount, fp.LargestFileSize, fp.FilesHash).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isUniqueConstraintError(err) {
		return 0, fmt.Errorf("insert fingerprint: %w", err)
	}

	// Lost a race against a concurrent insert of the identical tuple; the
	// unique index (idx_fingerprints_identity) means the row now exists.
	row = s.db.QueryRowContext(ctx, `
		SELECT id FROM content_fingerprints
		WHERE total_size = ? AND file_count = ? AND largest_file_size = ? AND COALESCE(files_hash, '') = COALESCE(?, '')
	`, fp.TotalSize, fp.FileCount, fp.LargestFileSize, fp.FilesHash)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup fingerprint after race: %w", err)
	}
	return id, nil
}

func (s *FingerprintStore) Get(ctx context.Context, id int64) (*Fingerprint, error) {
	fp := &Fingerprint{ID: id}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, total_size, file_count, largest_file_size, files_hash, created_at
		FROM content_fingerprints WHERE id = ?
	`, id)
	if err := row.Scan(&fp.ID, &fp.TotalSize, &fp.FileCount, &fp.LargestFileSize, &fp.FilesHash, &fp.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fingerprint %d: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get fingerprint: %w", err)
	}
	return fp, nil
}
