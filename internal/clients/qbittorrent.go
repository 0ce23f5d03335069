// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/anacrolix/torrent/metainfo"
	qbt "github.com/autobrr/go-qbittorrent"
	"golang.org/x/sync/errgroup"

	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/pkg/hashutil"
)

// trackerFetchConcurrency bounds in-flight GetTorrentTrackersCtx calls
// when the connected WebUI version is too old to embed trackers inline
// with the torrent list, mirroring the teacher's own TrackerFetcher.
const trackerFetchConcurrency = 4

// minIncludeTrackersVersion is the lowest go-qbittorrent WebUI version
// known to embed tracker lists directly on Torrent — below it every
// torrent needs a separate GetTorrentTrackersCtx round trip.
var minIncludeTrackersVersion = semver.MustParse("2.11.4")

// QBittorrent adapts github.com/autobrr/go-qbittorrent to the Client
// contract. Session auth is the library's own cookie jar, established once
// in NewQBittorrent via LoginCtx.
type QBittorrent struct {
	client *qbt.Client

	mu                  sync.RWMutex
	includesTrackers    bool
	supportsSkipChecking bool
}

func NewQBittorrent(rec models.Client, password string) (*QBittorrent, error) {
	cfg := qbt.Config{
		Host:     endpoint(rec),
		Username: rec.Username,
		Password: password,
		Timeout:  30,
	}

	c := qbt.NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("%w: qbittorrent login: %w", domain.ErrAuthFailed, err)
	}

	adapter := &QBittorrent{client: c}
	adapter.detectFeatures(ctx)
	return adapter, nil
}

func (q *QBittorrent) detectFeatures(ctx context.Context) {
	webAPIVersion, err := q.client.GetWebAPIVersionCtx(ctx)
	if err != nil || webAPIVersion == "" {
		return
	}
	v, err := semver.NewVersion(webAPIVersion)
	if err != nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.includesTrackers = !v.LessThan(minIncludeTrackersVersion)
	// skip_checking has been part of the add-torrent form since well
	// before any WebUI version Graft supports; gate it on the same
	// probe anyway so a future backend-specific carve-out has a place
	// to live.
	q.supportsSkipChecking = true
}

func (q *QBittorrent) TestConnection(ctx context.Context) error {
	if _, err := q.client.GetWebAPIVersionCtx(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnreachable, err)
	}
	return nil
}

func (q *QBittorrent) ListTorrents(ctx context.Context) ([]TorrentView, error) {
	q.mu.RLock()
	includesTrackers := q.includesTrackers
	q.mu.RUnlock()

	torrents, err := q.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{IncludeTrackers: includesTrackers})
	if err != nil {
		return nil, fmt.Errorf("%w: list torrents: %w", domain.ErrUnreachable, err)
	}

	var trackersByHash map[string][]string
	if !includesTrackers {
		trackersByHash, err = q.fetchTrackers(ctx, hashesOf(torrents))
		if err != nil {
			return nil, fmt.Errorf("%w: fetch trackers: %w", domain.ErrUnreachable, err)
		}
	}

	views := make([]TorrentView, 0, len(torrents))
	for _, t := range torrents {
		trackers := trackersByHash[t.Hash]
		if trackers == nil && includesTrackers {
			trackers = trackerURLs(t.Trackers)
		}
		views = append(views, TorrentView{
			InfoHash: t.Hash,
			Name:     t.Name,
			Size:     t.Size,
			State:    string(t.State),
			SavePath: t.SavePath,
			Category: t.Category,
			Tags:     splitTags(t.Tags),
			Trackers: trackers,
			AddedOn:  time.Unix(int64(t.AddedOn), 0),
		})
	}
	return views, nil
}

// fetchTrackers resolves tracker lists for torrents whose connected
// WebUI version doesn't embed them inline, bounded to
// trackerFetchConcurrency in-flight requests (§4.D "mirroring the
// teacher's go-qbittorrent TrackerFetcher").
func (q *QBittorrent) fetchTrackers(ctx context.Context, hashes []string) (map[string][]string, error) {
	result := make(map[string][]string, len(hashes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trackerFetchConcurrency)

	for _, hash := range hashes {
		hash := hash
		g.Go(func() error {
			trackers, err := q.client.GetTorrentTrackersCtx(gctx, hash)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// A single hash's tracker lookup failing (e.g. the
				// torrent was removed mid-scan) shouldn't abort the
				// whole batch.
				return nil
			}
			mu.Lock()
			result[hash] = trackerURLs(trackers)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

func (q *QBittorrent) Files(ctx context.Context, infoHash string) ([]File, bool, error) {
	files, err := q.client.GetFilesInformationCtx(ctx, infoHash)
	if err != nil {
		return nil, false, nil
	}
	out := make([]File, 0, len(files))
	for _, f := range files {
		out = append(out, File{Path: f.Name, Size: f.Size})
	}
	return out, true, nil
}

func (q *QBittorrent) AddTorrent(ctx context.Context, torrent []byte, opts AddOptions) (string, error) {
	options := map[string]string{
		"paused": boolString(opts.Paused),
	}
	if opts.SavePath != "" {
		options["savepath"] = opts.SavePath
		options["autoTMM"] = "false"
	}
	if opts.Category != "" {
		options["category"] = opts.Category
	}
	if len(opts.Tags) > 0 {
		options["tags"] = strings.Join(opts.Tags, ",")
	}
	q.mu.RLock()
	skipChecking := q.supportsSkipChecking
	q.mu.RUnlock()
	if opts.SkipChecking && skipChecking {
		options["skip_checking"] = "true"
	}

	info, err := torrentInfoHash(torrent)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrMalformedTorrent, err)
	}

	existing, err := q.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{info}})
	if err == nil && len(existing) > 0 {
		return info, nil
	}

	if err := q.client.AddTorrentFromMemoryCtx(ctx, torrent, options); err != nil {
		return "", fmt.Errorf("%w: add torrent: %w", domain.ErrAddFailed, err)
	}
	return info, nil
}

func (q *QBittorrent) Remove(ctx context.Context, infoHash string, deleteFiles bool) error {
	if err := q.client.DeleteTorrentsCtx(ctx, []string{infoHash}, deleteFiles); err != nil {
		return fmt.Errorf("%w: remove torrent: %w", domain.ErrUnreachable, err)
	}
	return nil
}

func (q *QBittorrent) Pause(ctx context.Context, infoHash string) error {
	if err := q.client.PauseCtx(ctx, []string{infoHash}); err != nil {
		return fmt.Errorf("%w: pause torrent: %w", domain.ErrUnreachable, err)
	}
	return nil
}

func (q *QBittorrent) Resume(ctx context.Context, infoHash string) error {
	if err := q.client.ResumeCtx(ctx, []string{infoHash}); err != nil {
		return fmt.Errorf("%w: resume torrent: %w", domain.ErrUnreachable, err)
	}
	return nil
}

func (q *QBittorrent) Recheck(ctx context.Context, infoHash string) error {
	if err := q.client.RecheckCtx(ctx, []string{infoHash}); err != nil {
		return fmt.Errorf("%w: recheck torrent: %w", domain.ErrUnreachable, err)
	}
	return nil
}

func hashesOf(torrents []qbt.Torrent) []string {
	hashes := make([]string, len(torrents))
	for i, t := range torrents {
		hashes[i] = t.Hash
	}
	return hashes
}

func trackerURLs(trackers []qbt.TorrentTracker) []string {
	urls := make([]string, 0, len(trackers))
	for _, t := range trackers {
		if t.Url == "" {
			continue
		}
		urls = append(urls, t.Url)
	}
	return urls
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// torrentInfoHash computes the info-hash a .torrent file's bytes will be
// added under, so AddTorrent can check for an existing hash before
// submitting (§4.D "idempotent by info-hash").
func torrentInfoHash(torrent []byte) (string, error) {
	mi, err := metainfo.Load(bytes.NewReader(torrent))
	if err != nil {
		return "", err
	}
	return hashutil.Normalize(mi.HashInfoBytes().HexString()), nil
}
