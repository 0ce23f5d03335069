// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerDomainBindAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	siteStore := NewSiteStore(db)
	require.NoError(t, siteStore.Create(ctx, &Site{ID: "s1", Name: "x", BaseURL: "https://x", Template: TemplateGazelle}))

	domainStore := NewTrackerDomainStore(db)
	result, err := domainStore.Bind(ctx, "tracker.x.com", "s1")
	require.NoError(t, err)
	assert.False(t, result.Conflicted())

	got, err := domainStore.Get(ctx, "tracker.x.com")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SiteID)
}

func TestTrackerDomainBindLastWriterWinsAndReportsConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	siteStore := NewSiteStore(db)
	require.NoError(t, siteStore.Create(ctx, &Site{ID: "s1", Name: "a", BaseURL: "https://a", Template: TemplateGazelle}))
	require.NoError(t, siteStore.Create(ctx, &Site{ID: "s2", Name: "b", BaseURL: "https://b", Template: TemplateGazelle}))

	domainStore := NewTrackerDomainStore(db)
	first, err := domainStore.Bind(ctx, "shared.com", "s1")
	require.NoError(t, err)
	assert.False(t, first.Conflicted())

	second, err := domainStore.Bind(ctx, "shared.com", "s2")
	assert.ErrorIs(t, err, ErrDomainAlreadyBound)
	assert.True(t, second.Conflicted())
	assert.Equal(t, "s1", second.PreviousSiteID)

	got, err := domainStore.Get(ctx, "shared.com")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.SiteID)
}

func TestTrackerDomainBindSameSiteIsNotAConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	siteStore := NewSiteStore(db)
	require.NoError(t, siteStore.Create(ctx, &Site{ID: "s1", Name: "a", BaseURL: "https://a", Template: TemplateGazelle}))

	domainStore := NewTrackerDomainStore(db)
	_, err := domainStore.Bind(ctx, "shared.com", "s1")
	require.NoError(t, err)

	result, err := domainStore.Bind(ctx, "shared.com", "s1")
	require.NoError(t, err)
	assert.False(t, result.Conflicted())
}

func TestTrackerDomainBindUnknownSiteFails(t *testing.T) {
	db := newTestDB(t)
	domainStore := NewTrackerDomainStore(db)

	_, err := domainStore.Bind(context.Background(), "x.com", "does-not-exist")
	assert.Error(t, err)
}

func TestTrackerDomainUnbind(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	siteStore := NewSiteStore(db)
	require.NoError(t, siteStore.Create(ctx, &Site{ID: "s1", Name: "x", BaseURL: "https://x", Template: TemplateGazelle}))

	domainStore := NewTrackerDomainStore(db)
	_, err := domainStore.Bind(ctx, "x.com", "s1")
	require.NoError(t, err)
	require.NoError(t, domainStore.Unbind(ctx, "x.com"))

	_, err = domainStore.Get(ctx, "x.com")
	assert.ErrorIs(t, err, ErrTrackerDomainNotFound)
}

func TestTrackerDomainCascadeDeletesOnSiteDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	siteStore := NewSiteStore(db)
	require.NoError(t, siteStore.Create(ctx, &Site{ID: "s1", Name: "x", BaseURL: "https://x", Template: TemplateGazelle}))

	domainStore := NewTrackerDomainStore(db)
	_, err := domainStore.Bind(ctx, "x.com", "s1")
	require.NoError(t, err)

	require.NoError(t, siteStore.Delete(ctx, "s1"))

	_, err = domainStore.Get(ctx, "x.com")
	assert.ErrorIs(t, err, ErrTrackerDomainNotFound)
}
