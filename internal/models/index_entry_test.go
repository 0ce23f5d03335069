// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSites(t *testing.T, db *sql.DB, ids ...string) {
	t.Helper()
	store := NewSiteStore(db)
	for _, id := range ids {
		require.NoError(t, store.Create(context.Background(), &Site{
			ID: id, Name: id, BaseURL: "https://" + id, Template: TemplateNexusPHP,
		}))
	}
}

func TestIndexStoreUpsertEntryIsIdempotentOnConflict(t *testing.T) {
	db := newTestDB(t)
	setupSites(t, db, "s1")
	store := NewIndexStore(db)
	ctx := context.Background()

	e := &IndexEntry{InfoHash: "AAAA000000000000000000000000000000AAAA", SiteID: "s1", Name: sql.NullString{String: "first", Valid: true}}
	require.NoError(t, store.UpsertEntry(ctx, e))
	firstCreated := e.CreatedAt

	e2 := &IndexEntry{InfoHash: "aaaa000000000000000000000000000000aaaa", SiteID: "s1", Name: sql.NullString{String: "updated", Valid: true}}
	require.NoError(t, store.UpsertEntry(ctx, e2))

	assert.Equal(t, firstCreated, e2.CreatedAt) // created_at preserved across conflict
	assert.Equal(t, "updated", e2.Name.String)
}

func TestIndexStoreExists(t *testing.T) {
	db := newTestDB(t)
	setupSites(t, db, "s1")
	store := NewIndexStore(db)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "bbbb000000000000000000000000000000bbbb", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.UpsertEntry(ctx, &IndexEntry{InfoHash: "bbbb000000000000000000000000000000bbbb", SiteID: "s1"}))

	ok, err = store.Exists(ctx, "BBBB000000000000000000000000000000BBBB", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndexStoreFindMatchesConfidenceLevels(t *testing.T) {
	db := newTestDB(t)
	setupSites(t, db, "siteA", "siteB", "siteC")
	indexStore := NewIndexStore(db)
	fpStore := NewFingerprintStore(db)
	ctx := context.Background()

	fullFP, err := fpStore.Ensure(ctx, Fingerprint{TotalSize: 100, FileCount: 1, LargestFileSize: 100, FilesHash: sql.NullString{String: "digest", Valid: true}})
	require.NoError(t, err)
	structFP, err := fpStore.Ensure(ctx, Fingerprint{TotalSize: 200, FileCount: 2, LargestFileSize: 150})
	require.NoError(t, err)

	exactHash := "1111111111111111111111111111111111111a"
	fullSourceHash := "2222222222222222222222222222222222222b"
	fullMatchHash := "3333333333333333333333333333333333333c"
	structSourceHash := "4444444444444444444444444444444444444d"
	structMatchHash := "5555555555555555555555555555555555555e"

	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: exactHash, SiteID: "siteA"}))
	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: fullSourceHash, SiteID: "siteA", FingerprintID: sql.NullInt64{Int64: fullFP, Valid: true}}))
	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: fullMatchHash, SiteID: "siteB", FingerprintID: sql.NullInt64{Int64: fullFP, Valid: true}, Size: sql.NullInt64{Int64: 100, Valid: true}}))
	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: structSourceHash, SiteID: "siteA", FingerprintID: sql.NullInt64{Int64: structFP, Valid: true}}))
	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: structMatchHash, SiteID: "siteC", FingerprintID: sql.NullInt64{Int64: structFP, Valid: true}, Size: sql.NullInt64{Int64: 50, Valid: true}}))

	matches, err := indexStore.FindMatches(ctx, []string{exactHash}, []string{"siteA"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Confidence)

	matches, err = indexStore.FindMatches(ctx, []string{fullSourceHash}, []string{"siteB"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0.9, matches[0].Confidence)
	assert.Equal(t, fullMatchHash, matches[0].InfoHash)

	matches, err = indexStore.FindMatches(ctx, []string{structSourceHash}, []string{"siteC"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0.7, matches[0].Confidence)
	assert.Equal(t, structMatchHash, matches[0].InfoHash)
}

func TestIndexStoreFindMatchesOrdering(t *testing.T) {
	db := newTestDB(t)
	setupSites(t, db, "siteA", "siteB")
	indexStore := NewIndexStore(db)
	ctx := context.Background()

	hashBig := "6666666666666666666666666666666666666f"
	hashSmall := "7777777777777777777777777777777777777a"

	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: hashBig, SiteID: "siteB", Size: sql.NullInt64{Int64: 900, Valid: true}}))
	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: hashSmall, SiteID: "siteA", Size: sql.NullInt64{Int64: 100, Valid: true}}))

	matches, err := indexStore.FindMatches(ctx, []string{hashBig, hashSmall}, []string{"siteA", "siteB"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// both are exact matches (confidence 1.0 ties); larger size sorts first.
	assert.Equal(t, hashBig, matches[0].InfoHash)
	assert.Equal(t, hashSmall, matches[1].InfoHash)
}

func TestIndexStoreFindMatchesEmptyInputsReturnNil(t *testing.T) {
	db := newTestDB(t)
	store := NewIndexStore(db)
	ctx := context.Background()

	matches, err := store.FindMatches(ctx, nil, []string{"s1"})
	require.NoError(t, err)
	assert.Nil(t, matches)

	matches, err = store.FindMatches(ctx, []string{"hash"}, nil)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestIndexStoreStats(t *testing.T) {
	db := newTestDB(t)
	setupSites(t, db, "s1", "s2")
	indexStore := NewIndexStore(db)
	fpStore := NewFingerprintStore(db)
	ctx := context.Background()

	fullFP, err := fpStore.Ensure(ctx, Fingerprint{TotalSize: 1, FileCount: 1, LargestFileSize: 1, FilesHash: sql.NullString{String: "d", Valid: true}})
	require.NoError(t, err)

	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: "8888888888888888888888888888888888888a", SiteID: "s1"}))
	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: "9999999999999999999999999999999999999b", SiteID: "s1", FingerprintID: sql.NullInt64{Int64: fullFP, Valid: true}}))
	require.NoError(t, indexStore.UpsertEntry(ctx, &IndexEntry{InfoHash: "aaaa000000000000000000000000000000aaab", SiteID: "s2"}))

	stats, err := indexStore.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.BySite["s1"])
	assert.Equal(t, 1, stats.BySite["s2"])
	assert.Equal(t, 2, stats.ByConfidence["exact"])
	assert.Equal(t, 1, stats.ByConfidence["full"])
}

func TestIndexStoreClearBySite(t *testing.T) {
	db := newTestDB(t)
	setupSites(t, db, "s1", "s2")
	store := NewIndexStore(db)
	ctx := context.Background()

	require.NoError(t, store.UpsertEntry(ctx, &IndexEntry{InfoHash: "bbbb000000000000000000000000000000bbba", SiteID: "s1"}))
	require.NoError(t, store.UpsertEntry(ctx, &IndexEntry{InfoHash: "cccc000000000000000000000000000000ccca", SiteID: "s2"}))

	require.NoError(t, store.ClearBySite(ctx, "s1"))

	ok, err := store.Exists(ctx, "bbbb000000000000000000000000000000bbba", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists(ctx, "cccc000000000000000000000000000000ccca", "s2")
	require.NoError(t, err)
	assert.True(t, ok)
}
