// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reseed

import (
	"context"
	"database/sql"
	"time"

	"github.com/avast/retry-go"

	"github.com/graftnet/graft/internal/clients"
	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/internal/models"
	"github.com/graftnet/graft/internal/sites"
	"github.com/graftnet/graft/pkg/hashutil"
)

// fetchRetrySchedule is the exact backoff schedule from §7: 250ms, 1s, 4s.
var fetchRetrySchedule = []time.Duration{250 * time.Millisecond, time.Second, 4 * time.Second}

// interOpDelay separates successive adds so a reseed run doesn't hammer a
// target client or site back to back.
const interOpDelay = 500 * time.Millisecond

// ExecutionResult is the Executor's output: per-run counters plus the
// history rows it wrote, so a future HTTP handler has one value to
// serialize (§7 "user visible behavior").
type ExecutionResult struct {
	Total   int
	Success int
	Failed  int
	Skipped int
	History []*models.HistoryEntry
}

// Executor drives the actual downloads for a Plan's matches (§4.H).
type Executor struct {
	siteManager  *sites.Manager
	history      *models.HistoryStore
	targetClient clients.Client

	// taskID links written history rows back to the reseed_tasks row that
	// triggered this run. Empty for an ad hoc, task-less run.
	taskID sql.NullString

	// addPaused and skipChecking are forwarded to every AddTorrent call.
	addPaused    bool
	skipChecking bool
}

// NewExecutor builds an Executor for one run against targetClient.
func NewExecutor(siteManager *sites.Manager, history *models.HistoryStore, targetClient clients.Client, taskID string, addPaused, skipChecking bool) *Executor {
	return &Executor{
		siteManager:  siteManager,
		history:      history,
		targetClient: targetClient,
		taskID:       sql.NullString{String: taskID, Valid: taskID != ""},
		addPaused:    addPaused,
		skipChecking: skipChecking,
	}
}

// Execute runs the unchanged 8-step per-match loop (§4.H) over result's
// matches, stopping early if ctx is cancelled between matches.
func (ex *Executor) Execute(ctx context.Context, result *PlanResult) (*ExecutionResult, error) {
	out := &ExecutionResult{Total: len(result.Matches)}

	targetTorrents, err := ex.targetClient.ListTorrents(ctx)
	if err != nil {
		return out, err
	}
	held := make(map[string]bool, len(targetTorrents))
	for _, t := range targetTorrents {
		held[hashutil.Normalize(t.InfoHash)] = true
	}

	for i, m := range result.Matches {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		status, message := ex.executeOne(ctx, m, held)
		switch status {
		case models.HistorySuccess:
			out.Success++
			held[m.TargetHash] = true
		case models.HistorySkipped:
			out.Skipped++
		default:
			out.Failed++
		}

		entry := &models.HistoryEntry{
			TaskID:     ex.taskID,
			InfoHash:   m.TargetHash,
			SourceSite: sql.NullString{String: m.SourceSite, Valid: m.SourceSite != ""},
			TargetSite: m.TargetSite,
			Status:     status,
			Message:    sql.NullString{String: message, Valid: message != ""},
		}
		// History is best-effort: a write failure never fails the run.
		if err := ex.history.Record(ctx, entry); err == nil {
			out.History = append(out.History, entry)
		}

		if i < len(result.Matches)-1 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(interOpDelay):
			}
		}
	}

	return out, nil
}

// executeOne runs steps 1-6 for a single match, returning the history
// status and an optional human-readable message.
func (ex *Executor) executeOne(ctx context.Context, m Match, held map[string]bool) (models.HistoryStatus, string) {
	// Step 1: re-check the target client doesn't already have it; plans
	// can go stale between Plan and Execute.
	if held[m.TargetHash] {
		return models.HistorySkipped, "already present on target client"
	}

	if m.TargetTorrentID == "" {
		return models.HistoryFailed, "target torrent id unknown, cannot fetch"
	}

	// Step 2: resolve the target site's adapter and confirm it has a
	// passkey to download with.
	adapter, err := ex.siteManager.Adapter(ctx, m.TargetSite)
	if err != nil {
		return models.HistoryFailed, "resolve site adapter: " + err.Error()
	}
	if adapter.Site().Passkey == "" {
		return models.HistoryFailed, "site has no configured passkey"
	}

	// Steps 3-5: rate-limited fetch with retry, validated inside
	// DownloadTorrent. Only Unreachable/RateLimited are retried.
	var torrentBytes []byte
	err = retry.Do(
		func() error {
			b, err := adapter.DownloadTorrent(ctx, m.TargetTorrentID)
			if err != nil {
				return err
			}
			torrentBytes = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(len(fetchRetrySchedule))),
		retry.RetryIf(domain.Retryable),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if int(n) < len(fetchRetrySchedule) {
				return fetchRetrySchedule[n]
			}
			return fetchRetrySchedule[len(fetchRetrySchedule)-1]
		}),
	)
	if err != nil {
		return models.HistoryFailed, "download torrent: " + err.Error()
	}

	// Step 6: add to the target client.
	if _, err := ex.targetClient.AddTorrent(ctx, torrentBytes, clients.AddOptions{
		SavePath:     m.SavePath,
		Paused:       ex.addPaused,
		SkipChecking: ex.skipChecking,
	}); err != nil {
		return models.HistoryFailed, "add torrent: " + err.Error()
	}

	return models.HistorySuccess, ""
}
