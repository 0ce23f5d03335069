// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

import (
	"context"
	"fmt"
	"sync"

	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/models"
)

// Manager lazily builds and caches one Adapter per site id, decrypting a
// site's cookie only when its adapter is first requested. Callers ask for
// an Adapter by id rather than holding one directly, so a site's RPM or
// cookie change takes effect on the next lookup after Invalidate.
type Manager struct {
	sites *models.SiteStore
	crypt domain.Encryptor

	mu       sync.RWMutex
	adapters map[string]*Adapter
}

func NewManager(sites *models.SiteStore, crypt domain.Encryptor) *Manager {
	return &Manager{sites: sites, crypt: crypt, adapters: make(map[string]*Adapter)}
}

// Adapter returns the cached Adapter for siteID, building one on first use.
func (m *Manager) Adapter(ctx context.Context, siteID string) (*Adapter, error) {
	m.mu.RLock()
	a, ok := m.adapters[siteID]
	m.mu.RUnlock()
	if ok {
		return a, nil
	}

	site, err := m.sites.Get(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("load site %s: %w", siteID, err)
	}

	cookie := ""
	if site.CookieEncrypted != "" {
		cookie, err = m.crypt.Decrypt(site.CookieEncrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt cookie for site %s: %w", siteID, err)
		}
	}

	a, err = New(site, cookie)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.adapters[siteID] = a
	m.mu.Unlock()
	return a, nil
}

// Invalidate drops the cached Adapter for siteID, forcing the next
// Adapter call to rebuild it from the current site record.
func (m *Manager) Invalidate(siteID string) {
	m.mu.Lock()
	delete(m.adapters, siteID)
	m.mu.Unlock()
}
