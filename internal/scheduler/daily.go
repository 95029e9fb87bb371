// Package scheduler drives the daemon's daily alert cadence: one run
// immediately on startup, then one run per day at the configured local time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"swellwatch/internal/types"
)

// RunFunc is the unit of work the scheduler fires. Errors are logged, not
// fatal; the next day's run still happens.
type RunFunc func(ctx context.Context) error

// Daily fires RunFunc once at startup and then every day at a fixed
// wall-clock time in the given location.
type Daily struct {
	hour   int
	minute int
	loc    *time.Location
	clock  types.Clock
	logger *slog.Logger
	run    RunFunc

	// sleepUntil is injectable for tests; the default waits on a timer or
	// context cancellation.
	sleepUntil func(ctx context.Context, until time.Time) error
}

// NewDaily creates a Daily scheduler. runAt is "HH:MM" in loc's wall clock.
func NewDaily(runAt string, loc *time.Location, clock types.Clock, logger *slog.Logger, run RunFunc) (*Daily, error) {
	hour, minute, err := ParseTimeOfDay(runAt)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Daily{
		hour:       hour,
		minute:     minute,
		loc:        loc,
		clock:      clock,
		logger:     logger,
		run:        run,
		sleepUntil: sleepUntil,
	}, nil
}

// Next returns the next scheduled run strictly after now.
//
// This correctly handles DST transitions because time.Date in a specific
// Location adjusts for DST automatically.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if today.After(now) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// Start runs immediately, then loops daily until the context is cancelled.
func (d *Daily) Start(ctx context.Context) error {
	d.fire(ctx)

	for {
		next := d.Next(d.clock.Now())
		d.logger.InfoContext(ctx, "next alert run scheduled",
			"at", next.Format(time.RFC3339),
		)

		if err := d.sleepUntil(ctx, next); err != nil {
			return err
		}
		d.fire(ctx)
	}
}

func (d *Daily) fire(ctx context.Context) {
	start := d.clock.Now()
	if err := d.run(ctx); err != nil {
		d.logger.ErrorContext(ctx, "alert run failed",
			"error", err,
			"duration", d.clock.Now().Sub(start).String(),
		)
		return
	}
	d.logger.InfoContext(ctx, "alert run finished",
		"duration", d.clock.Now().Sub(start).String(),
	)
}

// sleepUntil blocks until the target time or context cancellation.
func sleepUntil(ctx context.Context, until time.Time) error {
	timer := time.NewTimer(time.Until(until))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseTimeOfDay parses a "HH:MM" string into hour and minute components.
// The input must be exactly in HH:MM format; trailing content is rejected
// to prevent ambiguity.
func ParseTimeOfDay(s string) (int, int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	var hour, minute int
	n, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range [0,23]", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range [0,59]", minute)
	}
	return hour, minute, nil
}
