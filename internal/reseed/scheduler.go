// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reseed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/graftnet/graft/internal/models"
)

// field is one parsed cron field: the set of values it matches, keyed by
// the value itself within its own range (minute 0-59, hour 0-23, dom 1-31, month 1-12,
// dow 0-6 with 0=Sunday).
type field map[int]bool

// schedule is a parsed standard 5-field cron expression (minute hour dom
// month dow). There is no corpus library for this — it's the one piece of
// the reseed package built directly on time.Time/time.Timer.
type schedule struct {
	minute, hour, dom, month, dow field
}

var fieldRanges = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week
}

// parseSchedule parses a standard 5-field cron expression. Each field
// supports "*", a single number, a comma list, a range ("a-b"), and a step
// ("*/n" or "a-b/n").
func parseSchedule(expr string) (*schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(parts))
	}

	fields := make([]field, 5)
	for i, part := range parts {
		f, err := parseField(part, fieldRanges[i][0], fieldRanges[i][1])
		if err != nil {
			return nil, fmt.Errorf("field %d (%q): %w", i, part, err)
		}
		fields[i] = f
	}

	return &schedule{
		minute: fields[0],
		hour:   fields[1],
		dom:    fields[2],
		month:  fields[3],
		dow:    fields[4],
	}, nil
}

func parseField(raw string, lo, hi int) (field, error) {
	f := make(field)
	for _, item := range strings.Split(raw, ",") {
		step := 1
		rangePart := item
		if idx := strings.Index(item, "/"); idx != -1 {
			rangePart = item[:idx]
			n, err := strconv.Atoi(item[idx+1:])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid step %q", item)
			}
			step = n
		}

		start, end := lo, hi
		switch {
		case rangePart == "*":
			// full range, already set
		case strings.Contains(rangePart, "-"):
			bounds := strings.SplitN(rangePart, "-", 2)
			a, err1 := strconv.Atoi(bounds[0])
			b, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil || a > b {
				return nil, fmt.Errorf("invalid range %q", rangePart)
			}
			start, end = a, b
		default:
			n, err := strconv.Atoi(rangePart)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q", rangePart)
			}
			start, end = n, n
		}

		if start < lo || end > hi {
			return nil, fmt.Errorf("value out of range [%d,%d]: %q", lo, hi, rangePart)
		}
		for v := start; v <= end; v += step {
			f[v] = true
		}
	}
	return f, nil
}

// next returns the first matching time strictly after from, truncated to
// the minute (cron's own resolution).
func (s *schedule) next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	// A year is a generous upper bound; a malformed schedule that matches
	// nothing (e.g. Feb 30) would otherwise spin forever.
	limit := t.AddDate(1, 0, 0)
	for t.Before(limit) {
		if s.month[int(t.Month())] && s.domMatches(t) && s.hour[t.Hour()] && s.minute[t.Minute()] {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

// domMatches implements cron's OR semantics when both day-of-month and
// day-of-week are restricted (neither is "*"): either matching is enough.
func (s *schedule) domMatches(t time.Time) bool {
	domAny := len(s.dom) == 31
	dowAny := len(s.dow) == 7
	domMatch := s.dom[t.Day()]
	dowMatch := s.dow[int(t.Weekday())]

	switch {
	case domAny && dowAny:
		return true
	case domAny:
		return dowMatch
	case dowAny:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// JobFunc runs one scheduled task to completion.
type JobFunc func(ctx context.Context, task *models.ReseedTask)

// Scheduler drives every enabled, cron-configured reseed_tasks row off a
// single goroutine: one timer reset after each tick, one freshly spawned
// goroutine per fired job so a slow run never delays the next job's fire
// time (§5).
type Scheduler struct {
	tasks  *models.TaskStore
	run    JobFunc
	logger zerolog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(tasks *models.TaskStore, run JobFunc, logger zerolog.Logger) *Scheduler {
	return &Scheduler{tasks: tasks, run: run, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Start runs the scheduler loop until ctx is cancelled or Stop is called.
// It blocks until the loop has exited; callers typically run it in its own
// goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	defer close(s.done)

	for {
		next, job := s.nextFire(ctx)
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(30 * time.Second):
				continue
			}
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.dispatch(ctx, job)
		}
	}
}

// Stop cancels the scheduler loop and waits up to grace for in-flight jobs
// to finish.
func (s *Scheduler) Stop(grace time.Duration) {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(grace):
		s.logger.Warn().Msg("timed out waiting for in-flight reseed jobs")
	}
}

// nextFire scans every enabled, cron-configured task and returns whichever
// fires soonest, plus its schedule's computed fire time.
func (s *Scheduler) nextFire(ctx context.Context) (time.Time, *models.ReseedTask) {
	tasks, err := s.tasks.ListEnabledWithCron(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list enabled reseed tasks")
		return time.Time{}, nil
	}

	var best time.Time
	var bestTask *models.ReseedTask
	now := time.Now()
	for _, t := range tasks {
		if !t.CronExpression.Valid || t.CronExpression.String == "" {
			continue
		}
		sch, err := parseSchedule(t.CronExpression.String)
		if err != nil {
			s.logger.Warn().Err(err).Str("task", t.ID).Msg("invalid cron expression")
			continue
		}
		fire := sch.next(now)
		if fire.IsZero() {
			continue
		}
		if bestTask == nil || fire.Before(best) {
			best, bestTask = fire, t
		}
	}
	return best, bestTask
}

// dispatch runs task's job body on its own goroutine, tracked so Stop can
// wait for it.
func (s *Scheduler) dispatch(ctx context.Context, task *models.ReseedTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Str("task", task.ID).Str("name", task.Name).Msg("running scheduled reseed task")
		s.run(ctx, task)
	}()
}
