// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/graftnet/graft/internal/dbinterface"
	"github.com/graftnet/graft/internal/domain"
)

type HistoryStatus string

const (
	HistorySuccess HistoryStatus = "success"
	HistoryFailed  HistoryStatus = "failed"
	HistorySkipped HistoryStatus = "skipped"
)

// HistoryEntry is one append-only record of a reseed attempt (I5 — history
// rows are never rewritten).
type HistoryEntry struct {
	ID         int64
	TaskID     sql.NullString
	InfoHash   string
	SourceSite sql.NullString
	TargetSite string
	Status     HistoryStatus
	Message    sql.NullString
	CreatedAt  time.Time
}

type HistoryStore struct {
	db dbinterface.Querier
}

func NewHistoryStore(db dbinterface.Querier) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Record(ctx context.Context, e *HistoryEntry) error {
	query := `
		INSERT INTO reseed_history (task_id, info_hash, source_site, target_site, status, message)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		e.TaskID, e.InfoHash, e.SourceSite, e.TargetSite, string(e.Status), e.Message,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record history: %w", domain.ErrIndexIO)
	}
	return nil
}

// ListByTask returns a task's history, most recent first.
func (s *HistoryStore) ListByTask(ctx context.Context, taskID string, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, info_hash, source_site, target_site, status, message, created_at
		FROM reseed_history WHERE task_id = ? ORDER BY created_at DESC LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", domain.ErrIndexIO)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// Recent returns the most recent history entries across all tasks.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, info_hash, source_site, target_site, status, message, created_at
		FROM reseed_history ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent history: %w", domain.ErrIndexIO)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

func scanHistoryRows(rows *sql.Rows) ([]*HistoryEntry, error) {
	var out []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		var status string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.InfoHash, &e.SourceSite, &e.TargetSite, &status, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = HistoryStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
