package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"swellwatch/internal/report"
	"swellwatch/internal/schedule"
	"swellwatch/internal/types"
)

// LocationStore supplies the monitored locations for one run, in stable
// store iteration order. The list is treated as read-only input.
type LocationStore interface {
	List(ctx context.Context, limit int) ([]types.Location, error)
}

// ForecastFetcher retrieves the wave and weather series for a coordinate.
// Both series are ascending by time. A failure is scoped to the one
// location being fetched.
type ForecastFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) ([]types.WaveSample, []types.WeatherSample, error)
}

// Notifier delivers the assembled aggregate report. Implementations that
// are missing delivery credentials must degrade to a logged no-op rather
// than returning an error.
type Notifier interface {
	Deliver(ctx context.Context, rep report.AggregateReport) error
}

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeSent means at least one location qualified and the report was
	// handed to the Notifier.
	OutcomeSent Outcome = "sent"
	// OutcomeNoExceedances means the run completed with nothing to report;
	// no notification attempt was made.
	OutcomeNoExceedances Outcome = "no_exceedances"
	// OutcomeNoLocations means the store returned no locations to process.
	OutcomeNoLocations Outcome = "no_locations"
)

// LocationFailure records a location whose per-location pipeline failed.
// Failures are collected rather than swallowed so the caller decides how to
// log or count them; they never abort the run.
type LocationFailure struct {
	Location types.Location
	Err      error
}

// RunResult is the outcome of a single alert run. Nothing in it survives
// past the run: every invocation recomputes from scratch, so repeated runs
// during a sustained exceedance resend the alert every time.
type RunResult struct {
	Outcome Outcome
	// Locations is how many locations the run processed, including ones
	// that failed or had nothing to report.
	Locations        int
	Summaries        []report.LocationSummary
	Failures         []LocationFailure
	TotalExceedances int
	Subject          string
	// NotifyErr is set when delivery failed after the report was computed.
	// It does not retroactively fail the run.
	NotifyErr error
}

// RunParams carries the full configuration for one run. It is passed
// explicitly so the engine never reads process-wide state.
type RunParams struct {
	Threshold    float64
	Schedule     *schedule.WeekSchedule
	ScheduleSpec string
	// WindowRadius is the ± sample-index context window around each
	// exceedance; 0 means DefaultWindowRadius.
	WindowRadius int
	// LimitLocations caps how many locations are processed, in store
	// iteration order; 0 means all.
	LimitLocations int
	Timezone       *time.Location
	TimezoneLabel  string
	// FetchConcurrency bounds parallel per-location fetches; 0 or 1 means
	// strictly sequential. Output ordering is unaffected either way since
	// sections are re-sorted by first exceedance time during assembly.
	FetchConcurrency int
}

// Runner orchestrates one alert run across all locations: fetch, detect,
// window-merge, collocate, render, and hand off to the notifier when
// anything qualifies.
type Runner struct {
	store    LocationStore
	fetcher  ForecastFetcher
	notifier Notifier
	logger   *slog.Logger
}

// NewRunner creates a Runner with the given collaborators.
func NewRunner(store LocationStore, fetcher ForecastFetcher, notifier Notifier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes one alert cycle. Per-location failures are collected into
// the result and logged; they never abort the run or affect other
// locations. An error return means the run itself could not proceed
// (e.g., the location store was unreachable).
func (r *Runner) Run(ctx context.Context, p RunParams) (RunResult, error) {
	if p.WindowRadius <= 0 {
		p.WindowRadius = DefaultWindowRadius
	}
	if p.Timezone == nil {
		p.Timezone = time.UTC
	}

	locations, err := r.store.List(ctx, p.LimitLocations)
	if err != nil {
		return RunResult{}, fmt.Errorf("listing locations: %w", err)
	}
	if len(locations) == 0 {
		r.logger.InfoContext(ctx, "no locations to process")
		return RunResult{Outcome: OutcomeNoLocations}, nil
	}

	summaries, failures := r.processAll(ctx, locations, p)

	result := RunResult{
		Locations: len(locations),
		Summaries: summaries,
		Failures:  failures,
	}
	for _, s := range summaries {
		result.TotalExceedances += s.ExceedCount
	}

	if len(summaries) == 0 {
		r.logger.InfoContext(ctx, "no exceedances; skipping notification",
			"locations", len(locations),
			"failures", len(failures),
		)
		result.Outcome = OutcomeNoExceedances
		return result, nil
	}

	rep, err := report.BuildAggregate(summaries, p.Threshold, p.ScheduleSpec, p.TimezoneLabel, p.Timezone)
	if err != nil {
		return result, fmt.Errorf("assembling report: %w", err)
	}
	result.Subject = rep.Subject
	result.Outcome = OutcomeSent

	r.logger.InfoContext(ctx, "delivering wave alert report",
		"subject", rep.Subject,
		"locations_alerting", len(summaries),
		"total_exceedances", result.TotalExceedances,
	)

	if err := r.notifier.Deliver(ctx, rep); err != nil {
		// The report was computed; a delivery failure is recorded and
		// logged but does not fail the run.
		r.logger.ErrorContext(ctx, "report delivery failed",
			"subject", rep.Subject,
			"error", err,
		)
		result.NotifyErr = err
	}

	return result, nil
}

// processAll runs the per-location pipeline for every location, optionally
// with bounded concurrency. Results keep no particular order; assembly
// re-sorts by first exceedance time.
func (r *Runner) processAll(ctx context.Context, locations []types.Location, p RunParams) ([]report.LocationSummary, []LocationFailure) {
	perLoc := make([]*report.LocationSummary, len(locations))
	errs := make([]error, len(locations))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.FetchConcurrency))

	for i, loc := range locations {
		g.Go(func() error {
			r.logger.InfoContext(gCtx, "processing location",
				"location", loc.Name,
				"lat", loc.Latitude,
				"lon", loc.Longitude,
			)
			summary, err := r.processLocation(gCtx, loc, p)
			if err != nil {
				// Error isolation: record and keep going with the rest.
				errs[i] = err
				return nil
			}
			perLoc[i] = summary
			return nil
		})
	}
	// Worker funcs never return errors; Wait only synchronizes.
	_ = g.Wait()

	var summaries []report.LocationSummary
	var failures []LocationFailure
	for i, loc := range locations {
		if errs[i] != nil {
			r.logger.ErrorContext(ctx, "location processing failed",
				"location", loc.Name,
				"error", errs[i],
			)
			failures = append(failures, LocationFailure{Location: loc, Err: errs[i]})
			continue
		}
		if perLoc[i] != nil {
			summaries = append(summaries, *perLoc[i])
		}
	}
	return summaries, failures
}

// processLocation runs detection through table rendering for one location.
// A nil summary with nil error means the location had no exceedances.
func (r *Runner) processLocation(ctx context.Context, loc types.Location, p RunParams) (*report.LocationSummary, error) {
	waves, weather, err := r.fetcher.Fetch(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}

	exceed := DetectExceedances(waves, p.Schedule, p.Threshold, p.Timezone)
	if len(exceed) == 0 {
		return nil, nil
	}

	selected := ExpandWindows(exceed, len(waves), p.WindowRadius)
	window := make([]types.WaveSample, 0, len(selected))
	for _, i := range selected {
		window = append(window, waves[i])
	}

	weatherByTime := CollocateWeather(window, weather)

	tableText, tableHTML, err := report.BuildLocationTable(window, weatherByTime, p.Threshold, p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("rendering table: %w", err)
	}

	return &report.LocationSummary{
		Location:    loc,
		ExceedCount: len(exceed),
		MaxHeight:   MaxHeightAt(waves, exceed),
		FirstExceed: waves[exceed[0]].Time,
		TableText:   tableText,
		TableHTML:   tableHTML,
	}, nil
}
