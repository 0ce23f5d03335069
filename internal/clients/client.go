// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package clients implements the download-client adapter contract (§4.D): a
// uniform view over qBittorrent and Transmission, built as a closed sum
// type rather than an open plugin interface.
package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/models"
)

// Kind names the two Client implementations with the same strings as
// models.ClientKind; New itself switches on the record's models.ClientKind.
type Kind string

const (
	KindQBittorrent Kind = "qbittorrent"
	KindTransmission Kind = "transmission"
)

// TorrentView is the uniform shape the core consumes for a client's
// torrent list, regardless of backend.
type TorrentView struct {
	InfoHash string
	Name     string
	Size     int64
	State    string
	SavePath string
	Category string
	Tags     []string
	Trackers []string
	AddedOn  time.Time
}

// File is one entry of a torrent's file list, used by the importer to
// compute a Full fingerprint (§4.B) when a backend can supply it.
type File struct {
	Path string
	Size int64
}

// AddOptions configures add_torrent (§4.D).
type AddOptions struct {
	SavePath     string
	Category     string
	Tags         []string
	Paused       bool
	SkipChecking bool
}

// Client is the closed adapter contract every download-client backend
// implements. There are exactly two constructors — NewQBittorrent and
// NewTransmission — selected through New by a Client record's Kind.
type Client interface {
	// TestConnection reports reachability and auth health. Returns
	// domain.ErrUnreachable or domain.ErrAuthFailed on failure.
	TestConnection(ctx context.Context) error

	// ListTorrents returns every torrent known to the client, with
	// trackers resolved per torrent (fetched out of band when the
	// backend doesn't return them inline with the torrent list).
	ListTorrents(ctx context.Context) ([]TorrentView, error)

	// Files returns a torrent's file list when the backend can supply
	// one; ok is false when no file-level data is available (the
	// importer falls back to a Structural fingerprint in that case).
	Files(ctx context.Context, infoHash string) (files []File, ok bool, err error)

	// AddTorrent adds a torrent from its raw bytes, idempotent by
	// info-hash: adding an already-present hash succeeds without
	// duplicating.
	AddTorrent(ctx context.Context, torrent []byte, opts AddOptions) (infoHash string, err error)

	Remove(ctx context.Context, infoHash string, deleteFiles bool) error
	Pause(ctx context.Context, infoHash string) error
	Resume(ctx context.Context, infoHash string) error
	Recheck(ctx context.Context, infoHash string) error
}

// New dispatches a Client record to the matching adapter constructor.
// Unknown kinds are a configuration error (§9 "closed sum type"), never a
// signal to fall back to a generic implementation.
func New(rec models.Client, password string) (Client, error) {
	switch rec.Kind {
	case models.ClientKindQBittorrent:
		return NewQBittorrent(rec, password)
	case models.ClientKindTransmission:
		return NewTransmission(rec, password)
	default:
		return nil, fmt.Errorf("%w: unknown client kind %q", domain.ErrConfig, rec.Kind)
	}
}

func endpoint(rec models.Client) string {
	scheme := "http"
	if rec.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, rec.Host, rec.Port)
}
