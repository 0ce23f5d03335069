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

// ClientKind identifies which download-client backend a Client record talks
// to. It is a closed set — see §4.D.
type ClientKind string

const (
	ClientKindQBittorrent ClientKind = "qbittorrent"
	ClientKindTransmission ClientKind = "transmission"
)

var ErrClientNotFound = errors.New("client not found")

// Client is a configured download-client endpoint. PasswordEncrypted holds
// ciphertext produced by a domain.Encryptor; it is never marshaled in the
// clear.
type Client struct {
	ID                string
	Name              string
	Kind              ClientKind
	Host              string
	Port              int
	Username          string
	PasswordEncrypted string
	UseHTTPS          bool
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (c Client) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Kind      ClientKind `json:"kind"`
		Host      string     `json:"host"`
		Port      int        `json:"port"`
		Username  string     `json:"username"`
		Password  string     `json:"password,omitempty"`
		UseHTTPS  bool       `json:"useHttps"`
		Enabled   bool       `json:"enabled"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt time.Time  `json:"updatedAt"`
	}{
		ID:        c.ID,
		Name:      c.Name,
		Kind:      c.Kind,
		Host:      c.Host,
		Port:      c.Port,
		Username:  c.Username,
		Password:  domain.RedactString(c.PasswordEncrypted),
		UseHTTPS:  c.UseHTTPS,
		Enabled:   c.Enabled,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	})
}

func (c *Client) UnmarshalJSON(data []byte) error {
	var temp struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Kind      ClientKind `json:"kind"`
		Host      string     `json:"host"`
		Port      int        `json:"port"`
		Username  string     `json:"username"`
		Password  string     `json:"password,omitempty"`
		UseHTTPS  bool       `json:"useHttps"`
		Enabled   bool       `json:"enabled"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt time.Time  `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	c.ID, c.Name, c.Kind = temp.ID, temp.Name, temp.Kind
	c.Host, c.Port, c.Username = temp.Host, temp.Port, temp.Username
	c.UseHTTPS, c.Enabled = temp.UseHTTPS, temp.Enabled
	c.CreatedAt, c.UpdatedAt = temp.CreatedAt, temp.UpdatedAt

	if temp.Password != "" && !domain.IsRedactedString(temp.Password) {
		c.PasswordEncrypted = temp.Password
	}
	return nil
}

// ClientStore persists Client records. Password encryption is the caller's
// responsibility (internal/secretbox via domain.Encryptor) — the store only
// ever sees ciphertext.
type ClientStore struct {
	db dbinterface.Querier
}

func NewClientStore(db dbinterface.Querier) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) Create(ctx context.Context, c *Client) error {
	query := `
		INSERT INTO clients (id, name, kind, host, port, username, password_encrypted, use_https, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		c.ID, c.Name, string(c.Kind), c.Host, c.Port, c.Username, c.PasswordEncrypted, c.UseHTTPS, c.Enabled,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (s *ClientStore) Get(ctx context.Context, id string) (*Client, error) {
	query := `
		SELECT id, name, kind, host, port, username, password_encrypted, use_https, enabled, created_at, updated_at
		FROM clients WHERE id = ?
	`
	c := &Client{}
	var kind string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &kind, &c.Host, &c.Port, &c.Username, &c.PasswordEncrypted,
		&c.UseHTTPS, &c.Enabled, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	c.Kind = ClientKind(kind)
	return c, nil
}

func (s *ClientStore) List(ctx context.Context) ([]*Client, error) {
	query := `
		SELECT id, name, kind, host, port, username, password_encrypted, use_https, enabled, created_at, updated_at
		FROM clients ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*Client
	for rows.Next() {
		c := &Client{}
		var kind string
		if err := rows.Scan(
			&c.ID, &c.Name, &kind, &c.Host, &c.Port, &c.Username, &c.PasswordEncrypted,
			&c.UseHTTPS, &c.Enabled, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		c.Kind = ClientKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ClientStore) Update(ctx context.Context, c *Client) error {
	query := `
		UPDATE clients SET name = ?, host = ?, port = ?, username = ?, password_encrypted = ?,
			use_https = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		c.Name, c.Host, c.Port, c.Username, c.PasswordEncrypted, c.UseHTTPS, c.Enabled, c.ID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrClientNotFound
	}
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

func (s *ClientStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrClientNotFound
	}
	return nil
}
