// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/graftnet/graft/internal/dbinterface"
)

var ErrTaskNotFound = errors.New("reseed task not found")

// ReseedTask describes a recurring or manual cross-seed job: pull from
// SourceClientID, match against TargetSiteIDs in order, add matches to
// TargetClientID.
type ReseedTask struct {
	ID             string
	Name           string
	SourceClientID string
	TargetClientID string
	TargetSiteIDs  []string
	CronExpression sql.NullString
	AddPaused      bool
	Enabled        bool
	LastRunAt      sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TaskStore struct {
	db dbinterface.Querier
}

func NewTaskStore(db dbinterface.Querier) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, t *ReseedTask) error {
	siteIDsJSON, err := json.Marshal(t.TargetSiteIDs)
	if err != nil {
		return fmt.Errorf("encode target site ids: %w", err)
	}

	query := `
		INSERT INTO reseed_tasks (id, name, source_client_id, target_client_id, target_site_ids, cron_expression, add_paused, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		t.ID, t.Name, t.SourceClientID, t.TargetClientID, string(siteIDsJSON), t.CronExpression, t.AddPaused, t.Enabled,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create reseed task: %w", err)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (*ReseedTask, error) {
	query := `
		SELECT id, name, source_client_id, target_client_id, target_site_ids, cron_expression,
			add_paused, enabled, last_run_at, created_at, updated_at
		FROM reseed_tasks WHERE id = ?
	`
	t, err := scanTaskRow(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reseed task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) List(ctx context.Context) ([]*ReseedTask, error) {
	query := `
		SELECT id, name, source_client_id, target_client_id, target_site_ids, cron_expression,
			add_paused, enabled, last_run_at, created_at, updated_at
		FROM reseed_tasks ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reseed tasks: %w", err)
	}
	defer rows.Close()

	var out []*ReseedTask
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEnabledWithCron returns every enabled task with a non-empty cron
// expression, the set the scheduler (§4.H) evaluates each tick.
func (s *TaskStore) ListEnabledWithCron(ctx context.Context) ([]*ReseedTask, error) {
	query := `
		SELECT id, name, source_client_id, target_client_id, target_site_ids, cron_expression,
			add_paused, enabled, last_run_at, created_at, updated_at
		FROM reseed_tasks WHERE enabled = 1 AND cron_expression IS NOT NULL AND cron_expression != ''
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list scheduled reseed tasks: %w", err)
	}
	defer rows.Close()

	var out []*ReseedTask
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, t *ReseedTask) error {
	siteIDsJSON, err := json.Marshal(t.TargetSiteIDs)
	if err != nil {
		return fmt.Errorf("encode target site ids: %w", err)
	}

	query := `
		UPDATE reseed_tasks SET name = ?, source_client_id = ?, target_client_id = ?, target_site_ids = ?,
			cron_expression = ?, add_paused = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		t.Name, t.SourceClientID, t.TargetClientID, string(siteIDsJSON), t.CronExpression, t.AddPaused, t.Enabled, t.ID,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("update reseed task: %w", err)
	}
	return nil
}

func (s *TaskStore) MarkRun(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reseed_tasks SET last_run_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("mark task run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reseed_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reseed task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(row rowScanner) (*ReseedTask, error) {
	t := &ReseedTask{}
	var siteIDsJSON string
	if err := row.Scan(
		&t.ID, &t.Name, &t.SourceClientID, &t.TargetClientID, &siteIDsJSON, &t.CronExpression,
		&t.AddPaused, &t.Enabled, &t.LastRunAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(siteIDsJSON), &t.TargetSiteIDs); err != nil {
		return nil, fmt.Errorf("decode target site ids: %w", err)
	}
	return t, nil
}
