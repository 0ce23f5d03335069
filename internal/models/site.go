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
	"github.com/graftnet/graft/internal/domain"
)

// TemplateKind selects which URL/response template a Site speaks, one of
// the three closed variants in §4.E.
type TemplateKind string

const (
	TemplateNexusPHP TemplateKind = "nexusphp"
	TemplateUnit3D   TemplateKind = "unit3d"
	TemplateGazelle  TemplateKind = "gazelle"
)

const DefaultSiteRPM = 10

var (
	ErrSiteNotFound       = errors.New("site not found")
	ErrDomainAlreadyBound = errors.New("domain already bound to another site")
)

// Site is a configured private tracker. CookieEncrypted and Passkey are
// credentials; both are redacted out of MarshalJSON.
type Site struct {
	ID               string
	Name             string
	BaseURL          string
	Template         TemplateKind
	Passkey          string
	CookieEncrypted  string
	Enabled          bool
	RPM              int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s Site) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ID        string       `json:"id"`
		Name      string       `json:"name"`
		BaseURL   string       `json:"baseUrl"`
		Template  TemplateKind `json:"template"`
		Passkey   string       `json:"passkey,omitempty"`
		Cookie    string       `json:"cookie,omitempty"`
		Enabled   bool         `json:"enabled"`
		RPM       int          `json:"rpm"`
		CreatedAt time.Time    `json:"createdAt"`
		UpdatedAt time.Time    `json:"updatedAt"`
	}{
		ID:        s.ID,
		Name:      s.Name,
		BaseURL:   s.BaseURL,
		Template:  s.Template,
		Passkey:   domain.RedactString(s.Passkey),
		Cookie:    domain.RedactString(s.CookieEncrypted),
		Enabled:   s.Enabled,
		RPM:       s.RPM,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	})
}

func (s *Site) UnmarshalJSON(data []byte) error {
	var temp struct {
		ID        string       `json:"id"`
		Name      string       `json:"name"`
		BaseURL   string       `json:"baseUrl"`
		Template  TemplateKind `json:"template"`
		Passkey   string       `json:"passkey,omitempty"`
		Cookie    string       `json:"cookie,omitempty"`
		Enabled   bool         `json:"enabled"`
		RPM       int          `json:"rpm"`
		CreatedAt time.Time    `json:"createdAt"`
		UpdatedAt time.Time    `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	s.ID, s.Name, s.BaseURL, s.Template = temp.ID, temp.Name, temp.BaseURL, temp.Template
	s.Enabled, s.RPM = temp.Enabled, temp.RPM
	s.CreatedAt, s.UpdatedAt = temp.CreatedAt, temp.UpdatedAt

	if temp.Passkey != "" && !domain.IsRedactedString(temp.Passkey) {
		s.Passkey = temp.Passkey
	}
	if temp.Cookie != "" && !domain.IsRedactedString(temp.Cookie) {
		s.CookieEncrypted = temp.Cookie
	}
	return nil
}

// SiteStore persists Site records. The tracker-domain bindings that route
// announce URLs to them live in TrackerDomainStore.
type SiteStore struct {
	db dbinterface.Querier
}

func NewSiteStore(db dbinterface.Querier) *SiteStore {
	return &SiteStore{db: db}
}

func (s *SiteStore) Create(ctx context.Context, site *Site) error {
	if site.RPM <= 0 {
		site.RPM = DefaultSiteRPM
	}
	query := `
		INSERT INTO sites (id, name, base_url, template, passkey, cookie_encrypted, enabled, rpm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		site.ID, site.Name, site.BaseURL, string(site.Template), site.Passkey, site.CookieEncrypted, site.Enabled, site.RPM,
	).Scan(&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create site: %w", err)
	}
	return nil
}

func (s *SiteStore) Get(ctx context.Context, id string) (*Site, error) {
	query := `
		SELECT id, name, base_url, template, passkey, cookie_encrypted, enabled, rpm, created_at, updated_at
		FROM sites WHERE id = ?
	`
	site := &Site{}
	var tmpl string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&site.ID, &site.Name, &site.BaseURL, &tmpl, &site.Passkey, &site.CookieEncrypted,
		&site.Enabled, &site.RPM, &site.CreatedAt, &site.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	site.Template = TemplateKind(tmpl)
	return site, nil
}

func (s *SiteStore) List(ctx context.Context) ([]*Site, error) {
	query := `
		SELECT id, name, base_url, template, passkey, cookie_encrypted, enabled, rpm, created_at, updated_at
		FROM sites ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []*Site
	for rows.Next() {
		site := &Site{}
		var tmpl string
		if err := rows.Scan(
			&site.ID, &site.Name, &site.BaseURL, &tmpl, &site.Passkey, &site.CookieEncrypted,
			&site.Enabled, &site.RPM, &site.CreatedAt, &site.UpdatedAt,
		); err != nil {
			return nil, err
		}
		site.Template = TemplateKind(tmpl)
		out = append(out, site)
	}
	return out, rows.Err()
}

func (s *SiteStore) Update(ctx context.Context, site *Site) error {
	query := `
		UPDATE sites SET name = ?, base_url = ?, template = ?, passkey = ?, cookie_encrypted = ?,
			enabled = ?, rpm = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		site.Name, site.BaseURL, string(site.Template), site.Passkey, site.CookieEncrypted,
		site.Enabled, site.RPM, site.ID,
	).Scan(&site.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSiteNotFound
	}
	if err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	return nil
}

func (s *SiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSiteNotFound
	}
	return nil
}
