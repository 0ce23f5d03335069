// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteStoreCreateDefaultsRPM(t *testing.T) {
	db := newTestDB(t)
	store := NewSiteStore(db)
	ctx := context.Background()

	s := &Site{ID: "s1", Name: "Example", BaseURL: "https://example.com", Template: TemplateNexusPHP}
	require.NoError(t, store.Create(ctx, s))
	assert.Equal(t, DefaultSiteRPM, s.RPM)
}

func TestSiteStoreGetNotFound(t *testing.T) {
	db := newTestDB(t)
	store := NewSiteStore(db)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestSiteStoreUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	store := NewSiteStore(db)
	ctx := context.Background()

	s := &Site{ID: "s1", Name: "Example", BaseURL: "https://example.com", Template: TemplateUnit3D, RPM: 20}
	require.NoError(t, store.Create(ctx, s))

	s.Name = "Renamed"
	require.NoError(t, store.Update(ctx, s))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, TemplateUnit3D, got.Template)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestSiteMarshalJSONRedactsSecrets(t *testing.T) {
	s := Site{ID: "s1", Name: "x", Passkey: "abc123", CookieEncrypted: "cookie-cipher"}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "abc123")
	assert.NotContains(t, string(data), "cookie-cipher")
}

func TestSiteUnmarshalJSONPreservesPasskeyWhenRedacted(t *testing.T) {
	s := Site{ID: "s1", Passkey: "original-passkey"}
	data, _ := json.Marshal(s)

	var roundTripped Site
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, "original-passkey", roundTripped.Passkey)
}
