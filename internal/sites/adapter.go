// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
	"golang.org/x/time/rate"

	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/pkg/redact"
)

// sharedTransport pools connections across every site adapter, the way the
// teacher's gazellemusic client pools connections across trackers.
var sharedTransport = func() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 10
	t.IdleConnTimeout = 90 * time.Second
	t.ForceAttemptHTTP2 = true
	return t
}()

// Adapter fetches .torrent bytes from one configured site. It is safe for
// concurrent use; its rate.Limiter serializes outbound requests to the
// site's configured RPM.
type Adapter struct {
	site       *models.Site
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds an Adapter for site. A non-empty cookie gets its own
// cookiejar; a site with no cookie sends requests with a nil jar.
func New(site *models.Site, cookie string) (*Adapter, error) {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: sharedTransport,
	}

	if cookie != "" {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(domain.ErrConfig, err.Error())
		}
		u, err := url.Parse(site.BaseURL)
		if err != nil {
			return nil, errors.Wrap(domain.ErrConfig, err.Error())
		}
		jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: cookie}})
		httpClient.Jar = jar
	}

	rpm := site.RPM
	if rpm <= 0 {
		rpm = models.DefaultSiteRPM
	}

	return &Adapter{
		site:       site,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}, nil
}

// Site returns the configured site this adapter downloads from, so
// callers can inspect credentials (e.g. the reseed executor's "site lacks
// a passkey" precondition) without re-fetching the record.
func (a *Adapter) Site() *models.Site { return a.site }

// DownloadError classifies a failed download attempt the way §4.E's
// contract requires — callers branch on Kind with errors.Is.
type DownloadError struct {
	Kind domain.ErrorKind
	Err  error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *DownloadError) Unwrap() error { return e.Kind }

// DownloadTorrent fetches the .torrent bytes for torrentID and passkey,
// waiting on the site's rate limiter first.
func (a *Adapter) DownloadTorrent(ctx context.Context, torrentID string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &DownloadError{Kind: domain.ErrCancelled, Err: err}
	}

	downloadURL, err := DownloadURL(a.site.Template, a.site.BaseURL, torrentID, a.site.Passkey)
	if err != nil {
		return nil, &DownloadError{Kind: domain.ErrConfig, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, &DownloadError{Kind: domain.ErrConfig, Err: err}
	}
	req.Header.Set("User-Agent", "graft/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{Kind: domain.ErrUnreachable, Err: redact.URLError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{Kind: domain.ErrUnreachable, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, &DownloadError{Kind: domain.ErrRateLimited}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &DownloadError{Kind: domain.ErrAuthFailed}
	case http.StatusNotFound:
		return nil, &DownloadError{Kind: domain.ErrNotFound}
	}

	if !looksLikeTorrent(resp.Header.Get("Content-Type"), body) {
		return nil, &DownloadError{Kind: domain.ErrNotFound, Err: errors.New("response is not a torrent payload")}
	}

	return body, nil
}

// looksLikeTorrent implements §4.E's response validation: a bittorrent
// content-type hint, or a bencoded dict carrying an "info" key. Sites
// often answer an expired session with an HTML login page, which fails
// both checks and is treated as NotFound.
func looksLikeTorrent(contentType string, body []byte) bool {
	if contentType == "application/x-bittorrent" {
		return true
	}
	if len(body) == 0 || body[0] != 'd' {
		return false
	}

	var decoded struct {
		Info map[string]any `bencode:"info"`
	}
	if err := bencode.DecodeBytes(body, &decoded); err != nil {
		return false
	}
	return decoded.Info != nil
}
