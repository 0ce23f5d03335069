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

var ErrTrackerDomainNotFound = errors.New("tracker domain not found")

// TrackerDomain binds an announce-URL host to the site it belongs to.
// Domain is the primary key (I2): a host can route to exactly one site.
type TrackerDomain struct {
	Domain    string
	SiteID    string
	CreatedAt time.Time
}

type TrackerDomainStore struct {
	db dbinterface.Querier
}

func NewTrackerDomainStore(db dbinterface.Querier) *TrackerDomainStore {
	return &TrackerDomainStore{db: db}
}

// BindResult reports what Bind found already at domainName, if anything.
type BindResult struct {
	// PreviousSiteID is the site domainName was bound to before this call,
	// empty if domainName was unbound.
	PreviousSiteID string
}

// Conflicted reports whether Bind overwrote a different site's claim on
// the domain.
func (r BindResult) Conflicted() bool {
	return r.PreviousSiteID != ""
}

// Bind registers domain for siteID. Per §3, "if two sites claim the same
// domain, the last writer wins" — the write always succeeds — "but
// callers must detect and report the conflict": Bind reads the prior
// owner before overwriting it and returns that in BindResult, wrapped in
// ErrDomainAlreadyBound when it differs from siteID, so a caller can
// report it without losing the write.
func (s *TrackerDomainStore) Bind(ctx context.Context, domainName, siteID string) (BindResult, error) {
	existing, err := s.Get(ctx, domainName)
	if err != nil && !errors.Is(err, ErrTrackerDomainNotFound) {
		return BindResult{}, fmt.Errorf("bind domain: %w", err)
	}

	query := `
		INSERT INTO tracker_domains (domain, site_id) VALUES (?, ?)
		ON CONFLICT (domain) DO UPDATE SET site_id = excluded.site_id
	`
	if _, err := s.db.ExecContext(ctx, query, domainName, siteID); err != nil {
		if isForeignKeyConstraintError(err) {
			return BindResult{}, fmt.Errorf("bind domain %s: %w", domainName, ErrSiteNotFound)
		}
		return BindResult{}, fmt.Errorf("bind domain: %w", err)
	}

	if existing == nil || existing.SiteID == siteID {
		return BindResult{}, nil
	}
	result := BindResult{PreviousSiteID: existing.SiteID}
	return result, fmt.Errorf("domain %s was bound to %s: %w", domainName, existing.SiteID, ErrDomainAlreadyBound)
}

func (s *TrackerDomainStore) Unbind(ctx context.Context, domainName string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracker_domains WHERE domain = ?`, domainName)
	if err != nil {
		return fmt.Errorf("unbind domain: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTrackerDomainNotFound
	}
	return nil
}

func (s *TrackerDomainStore) Get(ctx context.Context, domainName string) (*TrackerDomain, error) {
	row := s.db.QueryRowContext(ctx, `SELECT domain, site_id, created_at FROM tracker_domains WHERE domain = ?`, domainName)
	td := &TrackerDomain{}
	if err := row.Scan(&td.Domain, &td.SiteID, &td.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrackerDomainNotFound
		}
		return nil, fmt.Errorf("get tracker domain: %w", err)
	}
	return td, nil
}

// List returns every domain binding, used at startup to seed the Tracker
// Identifier's domain table alongside the built-in site registry.
func (s *TrackerDomainStore) List(ctx context.Context) ([]*TrackerDomain, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, site_id, created_at FROM tracker_domains ORDER BY domain ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tracker domains: %w", err)
	}
	defer rows.Close()

	var out []*TrackerDomain
	for rows.Next() {
		td := &TrackerDomain{}
		if err := rows.Scan(&td.Domain, &td.SiteID, &td.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, rows.Err()
}

func (s *TrackerDomainStore) ListBySite(ctx context.Context, siteID string) ([]*TrackerDomain, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, site_id, created_at FROM tracker_domains WHERE site_id = ? ORDER BY domain ASC`, siteID)
	if err != nil {
		return nil, fmt.Errorf("list tracker domains by site: %w", err)
	}
	defer rows.Close()

	var out []*TrackerDomain
	for rows.Next() {
		td := &TrackerDomain{}
		if err := rows.Scan(&td.Domain, &td.SiteID, &td.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, rows.Err()
}
