package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"swellwatch/internal/types"
)

// --- ParseTimeOfDay Tests ---

func TestParseTimeOfDay_Valid(t *testing.T) {
	tests := []struct {
		input  string
		hour   int
		minute int
	}{
		{"00:00", 0, 0},
		{"06:30", 6, 30},
		{"16:00", 16, 0},
		{"23:59", 23, 59},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, err := ParseTimeOfDay(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h != tt.hour || m != tt.minute {
				t.Errorf("got %d:%d, want %d:%d", h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestParseTimeOfDay_Invalid(t *testing.T) {
	inputs := []string{"", "6:30", "06:30:00", "24:00", "12:60", "ab:cd", "12-30"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if _, _, err := ParseTimeOfDay(input); err == nil {
				t.Errorf("expected error for %q", input)
			}
		})
	}
}

// --- Next Tests ---

func mustDaily(t *testing.T, runAt string, loc *time.Location) *Daily {
	t.Helper()
	d, err := NewDaily(runAt, loc, types.RealClock{}, nil, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("NewDaily: %v", err)
	}
	return d
}

func TestDaily_Next_BeforeRunTime(t *testing.T) {
	d := mustDaily(t, "16:00", time.UTC)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	next := d.Next(now)

	want := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestDaily_Next_AfterRunTime(t *testing.T) {
	d := mustDaily(t, "16:00", time.UTC)

	now := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	next := d.Next(now)

	want := time.Date(2026, 3, 3, 16, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestDaily_Next_ExactlyAtRunTime(t *testing.T) {
	d := mustDaily(t, "16:00", time.UTC)

	// At the run instant itself, the next run is tomorrow.
	now := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	next := d.Next(now)

	want := time.Date(2026, 3, 3, 16, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestDaily_Next_LocalTimezone(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Fatalf("loading zone: %v", err)
	}
	d := mustDaily(t, "06:30", oslo)

	// 04:00 UTC in winter is 05:00 in Oslo, before the run time.
	now := time.Date(2026, 1, 15, 4, 0, 0, 0, time.UTC)
	next := d.Next(now)

	want := time.Date(2026, 1, 15, 6, 30, 0, 0, oslo)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

// --- Start Tests ---

func TestDaily_Start_RunsImmediatelyThenDaily(t *testing.T) {
	var runs int
	d := mustDaily(t, "16:00", time.UTC)
	d.run = func(context.Context) error {
		runs++
		return nil
	}

	// Let two sleeps complete instantly, then cancel.
	ctx, cancel := context.WithCancel(context.Background())
	var sleeps int
	d.sleepUntil = func(ctx context.Context, until time.Time) error {
		sleeps++
		if sleeps >= 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := d.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Startup run plus one scheduled run before cancellation.
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestDaily_Start_RunErrorDoesNotStopLoop(t *testing.T) {
	var runs int
	d := mustDaily(t, "16:00", time.UTC)
	d.run = func(context.Context) error {
		runs++
		return errors.New("fetch failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	var sleeps int
	d.sleepUntil = func(ctx context.Context, until time.Time) error {
		sleeps++
		if sleeps >= 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := d.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if runs != 3 {
		t.Errorf("expected 3 runs despite errors, got %d", runs)
	}
}

func TestNewDaily_InvalidRunAt(t *testing.T) {
	_, err := NewDaily("25:00", time.UTC, types.RealClock{}, nil, func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid run time")
	}
}
