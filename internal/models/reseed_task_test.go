// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedClients(t *testing.T, db *sql.DB, ids ...string) {
	t.Helper()
	store := NewClientStore(db)
	for _, id := range ids {
		require.NoError(t, store.Create(context.Background(), &Client{
			ID: id, Name: id, Kind: ClientKindQBittorrent, Host: "h", Port: 1,
		}))
	}
}

func TestTaskStoreCreateAndGetRoundTripsSiteIDs(t *testing.T) {
	db := newTestDB(t)
	seedClients(t, db, "src", "dst")
	store := NewTaskStore(db)
	ctx := context.Background()

	task := &ReseedTask{
		ID: "t1", Name: "nightly", SourceClientID: "src", TargetClientID: "dst",
		TargetSiteIDs: []string{"siteA", "siteB"}, Enabled: true,
	}
	require.NoError(t, store.Create(ctx, task))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"siteA", "siteB"}, got.TargetSiteIDs)
	assert.False(t, got.LastRunAt.Valid)
}

func TestTaskStoreGetNotFound(t *testing.T) {
	db := newTestDB(t)
	store := NewTaskStore(db)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStoreListEnabledWithCron(t *testing.T) {
	db := newTestDB(t)
	seedClients(t, db, "src", "dst")
	store := NewTaskStore(db)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &ReseedTask{
		ID: "cron-task", Name: "cron", SourceClientID: "src", TargetClientID: "dst",
		TargetSiteIDs: []string{"s1"}, Enabled: true, CronExpression: sql.NullString{String: "0 * * * *", Valid: true},
	}))
	require.NoError(t, store.Create(ctx, &ReseedTask{
		ID: "manual-task", Name: "manual", SourceClientID: "src", TargetClientID: "dst",
		TargetSiteIDs: []string{"s1"}, Enabled: true,
	}))

	list, err := store.ListEnabledWithCron(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cron-task", list[0].ID)
}

func TestTaskStoreMarkRun(t *testing.T) {
	db := newTestDB(t)
	seedClients(t, db, "src", "dst")
	store := NewTaskStore(db)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &ReseedTask{ID: "t1", Name: "x", SourceClientID: "src", TargetClientID: "dst", TargetSiteIDs: []string{"s1"}}))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.MarkRun(ctx, "t1", now))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, got.LastRunAt.Valid)
	assert.WithinDuration(t, now, got.LastRunAt.Time, time.Second)
}

func TestTaskStoreUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	seedClients(t, db, "src", "dst")
	store := NewTaskStore(db)
	ctx := context.Background()

	task := &ReseedTask{ID: "t1", Name: "orig", SourceClientID: "src", TargetClientID: "dst", TargetSiteIDs: []string{"s1"}}
	require.NoError(t, store.Create(ctx, task))

	task.Name = "renamed"
	task.TargetSiteIDs = []string{"s1", "s2"}
	require.NoError(t, store.Update(ctx, task))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"s1", "s2"}, got.TargetSiteIDs)

	require.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
