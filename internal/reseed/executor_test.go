// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reseed

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/graftnet/graft/internal/clients"
	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/internal/sites"
)

// recordingClient is a clients.Client double that records AddTorrent calls
// and can be told to hold a fixed set of torrents up front.
type recordingClient struct {
	torrents []clients.TorrentView
	added    []clients.AddOptions
	addErr   error
}

func (c *recordingClient) TestConnection(ctx context.Context) error { return nil }
func (c *recordingClient) ListTorrents(ctx context.Context) ([]clients.TorrentView, error) {
	return c.torrents, nil
}
func (c *recordingClient) Files(ctx context.Context, infoHash string) ([]clients.File, bool, error) {
	return nil, false, nil
}
func (c *recordingClient) AddTorrent(ctx context.Context, torrent []byte, opts clients.AddOptions) (string, error) {
	if c.addErr != nil {
		return "", c.addErr
	}
	c.added = append(c.added, opts)
	return "", nil
}
func (c *recordingClient) Remove(ctx context.Context, infoHash string, deleteFiles bool) error { return nil }
func (c *recordingClient) Pause(ctx context.Context, infoHash string) error                    { return nil }
func (c *recordingClient) Resume(ctx context.Context, infoHash string) error                   { return nil }
func (c *recordingClient) Recheck(ctx context.Context, infoHash string) error                  { return nil }

type fakeEncryptor struct{}

func (fakeEncryptor) Encrypt(s string) (string, error) { return s, nil }
func (fakeEncryptor) Decrypt(s string) (string, error) { return s, nil }

func newExecutorFixture(t *testing.T, withPasskey bool) (*sites.Manager, *models.HistoryStore) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`PRAGMA foreign_keys = ON`)
	require.NoError(t, err)
	schema, err := os.ReadFile(filepath.Join("..", "database", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	siteStore := models.NewSiteStore(db)
	site := &models.Site{ID: "target-site", Name: "target-site", BaseURL: "https://target.example", Template: models.TemplateNexusPHP}
	if withPasskey {
		site.Passkey = "abc123"
	}
	require.NoError(t, siteStore.Create(context.Background(), site))

	return sites.NewManager(siteStore, fakeEncryptor{}), models.NewHistoryStore(db)
}

func TestExecuteSkipsMatchAlreadyOnTargetClient(t *testing.T) {
	mgr, history := newExecutorFixture(t, true)
	hash := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	target := &recordingClient{torrents: []clients.TorrentView{{InfoHash: hash}}}

	ex := NewExecutor(mgr, history, target, "", false, false)
	result, err := ex.Execute(context.Background(), &PlanResult{Matches: []Match{
		{TargetHash: hash, TargetSite: "target-site", TargetTorrentID: "1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Success)
	assert.Empty(t, target.added)
}

func TestExecuteFailsWhenSiteHasNoPasskey(t *testing.T) {
	mgr, history := newExecutorFixture(t, false)
	target := &recordingClient{}

	ex := NewExecutor(mgr, history, target, "", false, false)
	result, err := ex.Execute(context.Background(), &PlanResult{Matches: []Match{
		{TargetHash: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", TargetSite: "target-site", TargetTorrentID: "1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.History, 1)
	assert.Equal(t, models.HistoryFailed, result.History[0].Status)
}

func TestExecuteFailsWhenTargetTorrentIDUnknown(t *testing.T) {
	mgr, history := newExecutorFixture(t, true)
	target := &recordingClient{}

	ex := NewExecutor(mgr, history, target, "", false, false)
	result, err := ex.Execute(context.Background(), &PlanResult{Matches: []Match{
		{TargetHash: "cccccccccccccccccccccccccccccccccccccccc", TargetSite: "target-site", TargetTorrentID: ""},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

func TestExecuteStopsEarlyOnContextCancellation(t *testing.T) {
	mgr, history := newExecutorFixture(t, true)
	target := &recordingClient{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := NewExecutor(mgr, history, target, "", false, false)
	result, err := ex.Execute(ctx, &PlanResult{Matches: []Match{
		{TargetHash: "dddddddddddddddddddddddddddddddddddddddd", TargetSite: "target-site", TargetTorrentID: "1"},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 0, result.Failed)
}

func TestRetryableClassifiesOnlyTransportAndRateLimitErrors(t *testing.T) {
	assert.True(t, domain.Retryable(domain.ErrUnreachable))
	assert.True(t, domain.Retryable(domain.ErrRateLimited))
	assert.False(t, domain.Retryable(domain.ErrNotFound))
	assert.False(t, domain.Retryable(domain.ErrConfig))
}
