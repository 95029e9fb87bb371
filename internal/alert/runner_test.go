package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swellwatch/internal/report"
	"swellwatch/internal/schedule"
	"swellwatch/internal/types"
)

// --- Fakes ---

type fakeStore struct {
	locations []types.Location
	err       error
	gotLimit  int
}

func (s *fakeStore) List(ctx context.Context, limit int) ([]types.Location, error) {
	s.gotLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && limit < len(s.locations) {
		return s.locations[:limit], nil
	}
	return s.locations, nil
}

// fakeFetcher returns canned series per coordinate, keyed by latitude.
type fakeFetcher struct {
	waves   map[float64][]types.WaveSample
	weather map[float64][]types.WeatherSample
	errs    map[float64]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, lat, lon float64) ([]types.WaveSample, []types.WeatherSample, error) {
	if err := f.errs[lat]; err != nil {
		return nil, nil, err
	}
	return f.waves[lat], f.weather[lat], nil
}

type fakeNotifier struct {
	reports []report.AggregateReport
	err     error
}

func (n *fakeNotifier) Deliver(ctx context.Context, rep report.AggregateReport) error {
	n.reports = append(n.reports, rep)
	return n.err
}

// --- Fixtures ---

var runStart = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) // Monday

func flatWeather(n int) []types.WeatherSample {
	out := make([]types.WeatherSample, n)
	for i := range out {
		out[i] = types.WeatherSample{
			Time:    runStart.Add(time.Duration(i) * time.Hour),
			AirTemp: 3.0,
		}
	}
	return out
}

func defaultParams() RunParams {
	return RunParams{
		Threshold:     0.5,
		Schedule:      schedule.Parse(""),
		ScheduleSpec:  "",
		Timezone:      time.UTC,
		TimezoneLabel: "UTC",
	}
}

// --- Run Tests ---

func TestRun_SendsAggregateForExceedingLocations(t *testing.T) {
	store := &fakeStore{locations: []types.Location{
		{ID: 1, Latitude: 1.0, Longitude: 10.0, Name: "Calm Bay"},
		{ID: 2, Latitude: 2.0, Longitude: 20.0, Name: "Rough Point"},
	}}
	fetcher := &fakeFetcher{
		waves: map[float64][]types.WaveSample{
			1.0: wavesAt(runStart, 0.1, 0.2, 0.1),
			2.0: wavesAt(runStart, 0.2, 0.7, 0.9, 0.3),
		},
		weather: map[float64][]types.WeatherSample{
			1.0: flatWeather(3),
			2.0: flatWeather(4),
		},
	}
	notifier := &fakeNotifier{}

	runner := NewRunner(store, fetcher, notifier, nil)
	result, err := runner.Run(context.Background(), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSent, result.Outcome)
	assert.Equal(t, 2, result.Locations)
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, "Rough Point", result.Summaries[0].Location.Name)
	assert.Equal(t, 2, result.Summaries[0].ExceedCount)
	assert.Equal(t, 0.9, result.Summaries[0].MaxHeight)
	assert.Equal(t, runStart.Add(time.Hour), result.Summaries[0].FirstExceed)
	assert.Equal(t, 2, result.TotalExceedances)
	assert.Empty(t, result.Failures)
	assert.NoError(t, result.NotifyErr)

	require.Len(t, notifier.reports, 1)
	rep := notifier.reports[0]
	assert.Equal(t, "Wave Alerts · 1 location(s) · 2 exceedance(s) (>= 0.50m) [UTC]", rep.Subject)
	assert.Contains(t, rep.TextBody, "Rough Point")
	assert.Contains(t, rep.HTMLBody, "Rough Point")
	assert.NotContains(t, rep.TextBody, "Calm Bay")
}

func TestRun_NoExceedancesSkipsNotification(t *testing.T) {
	store := &fakeStore{locations: []types.Location{
		{ID: 1, Latitude: 1.0, Name: "Calm Bay"},
	}}
	fetcher := &fakeFetcher{
		waves:   map[float64][]types.WaveSample{1.0: wavesAt(runStart, 0.1, 0.2)},
		weather: map[float64][]types.WeatherSample{1.0: flatWeather(2)},
	}
	notifier := &fakeNotifier{}

	runner := NewRunner(store, fetcher, notifier, nil)
	result, err := runner.Run(context.Background(), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoExceedances, result.Outcome)
	assert.Empty(t, notifier.reports)
}

func TestRun_NoLocations(t *testing.T) {
	runner := NewRunner(&fakeStore{}, &fakeFetcher{}, &fakeNotifier{}, nil)

	result, err := runner.Run(context.Background(), defaultParams())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoLocations, result.Outcome)
}

func TestRun_StoreErrorFailsRun(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	runner := NewRunner(store, &fakeFetcher{}, &fakeNotifier{}, nil)

	_, err := runner.Run(context.Background(), defaultParams())
	require.Error(t, err)
}

func TestRun_LocationFailureIsIsolated(t *testing.T) {
	store := &fakeStore{locations: []types.Location{
		{ID: 1, Latitude: 1.0, Name: "Broken Spot"},
		{ID: 2, Latitude: 2.0, Name: "Rough Point"},
	}}
	fetcher := &fakeFetcher{
		waves: map[float64][]types.WaveSample{
			2.0: wavesAt(runStart, 0.8),
		},
		weather: map[float64][]types.WeatherSample{
			2.0: flatWeather(1),
		},
		errs: map[float64]error{
			1.0: errors.New("upstream 500"),
		},
	}
	notifier := &fakeNotifier{}

	runner := NewRunner(store, fetcher, notifier, nil)
	result, err := runner.Run(context.Background(), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSent, result.Outcome)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Broken Spot", result.Failures[0].Location.Name)
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, "Rough Point", result.Summaries[0].Location.Name)
	assert.Len(t, notifier.reports, 1)
}

func TestRun_NotifyErrorDoesNotFailRun(t *testing.T) {
	store := &fakeStore{locations: []types.Location{
		{ID: 1, Latitude: 1.0, Name: "Rough Point"},
	}}
	fetcher := &fakeFetcher{
		waves:   map[float64][]types.WaveSample{1.0: wavesAt(runStart, 0.8)},
		weather: map[float64][]types.WeatherSample{1.0: flatWeather(1)},
	}
	notifier := &fakeNotifier{err: errors.New("smtp refused")}

	runner := NewRunner(store, fetcher, notifier, nil)
	result, err := runner.Run(context.Background(), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, OutcomeSent, result.Outcome)
	assert.Error(t, result.NotifyErr)
}

func TestRun_LimitLocationsPassedToStore(t *testing.T) {
	store := &fakeStore{locations: []types.Location{
		{ID: 1, Latitude: 1.0, Name: "A"},
		{ID: 2, Latitude: 2.0, Name: "B"},
		{ID: 3, Latitude: 3.0, Name: "C"},
	}}
	fetcher := &fakeFetcher{
		waves:   map[float64][]types.WaveSample{},
		weather: map[float64][]types.WeatherSample{},
	}
	runner := NewRunner(store, fetcher, &fakeNotifier{}, nil)

	p := defaultParams()
	p.LimitLocations = 2
	_, err := runner.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, store.gotLimit)
}

func TestRun_SectionsOrderedByFirstExceedance(t *testing.T) {
	// Later Lat=1 exceeds first in store order but second in time.
	store := &fakeStore{locations: []types.Location{
		{ID: 1, Latitude: 1.0, Name: "Later Spot"},
		{ID: 2, Latitude: 2.0, Name: "Earlier Spot"},
	}}
	fetcher := &fakeFetcher{
		waves: map[float64][]types.WaveSample{
			1.0: wavesAt(runStart, 0.1, 0.1, 0.1, 0.1, 0.9), // first exceed at +4h
			2.0: wavesAt(runStart, 0.1, 0.9),                // first exceed at +1h
		},
		weather: map[float64][]types.WeatherSample{
			1.0: flatWeather(5),
			2.0: flatWeather(2),
		},
	}
	notifier := &fakeNotifier{}

	runner := NewRunner(store, fetcher, notifier, nil)
	result, err := runner.Run(context.Background(), defaultParams())
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, result.Outcome)

	require.Len(t, notifier.reports, 1)
	body := notifier.reports[0].TextBody
	assert.Less(t, strings.Index(body, "Earlier Spot"), strings.Index(body, "Later Spot"))
}

func TestRun_ConcurrentFetchMatchesSequential(t *testing.T) {
	locations := make([]types.Location, 6)
	waves := map[float64][]types.WaveSample{}
	weather := map[float64][]types.WeatherSample{}
	for i := range locations {
		lat := float64(i + 1)
		locations[i] = types.Location{ID: int64(i + 1), Latitude: lat, Name: fmt.Sprintf("Spot %d", i+1)}
		waves[lat] = wavesAt(runStart.Add(time.Duration(i)*time.Hour), 0.3, 0.6+float64(i)*0.01)
		weather[lat] = flatWeather(2)
	}

	run := func(concurrency int) report.AggregateReport {
		notifier := &fakeNotifier{}
		runner := NewRunner(&fakeStore{locations: locations}, &fakeFetcher{waves: waves, weather: weather}, notifier, nil)
		p := defaultParams()
		p.FetchConcurrency = concurrency
		_, err := runner.Run(context.Background(), p)
		require.NoError(t, err)
		require.Len(t, notifier.reports, 1)
		return notifier.reports[0]
	}

	sequential := run(1)
	concurrent := run(4)

	assert.Equal(t, sequential.Subject, concurrent.Subject)
	assert.Equal(t, sequential.TextBody, concurrent.TextBody)
	assert.Equal(t, sequential.HTMLBody, concurrent.HTMLBody)
}

func TestRun_RepeatedRunsProduceIdenticalReports(t *testing.T) {
	store := &fakeStore{locations: []types.Location{
		{ID: 1, Latitude: 1.0, Name: "Rough Point"},
	}}
	fetcher := &fakeFetcher{
		waves:   map[float64][]types.WaveSample{1.0: wavesAt(runStart, 0.2, 0.8, 0.6)},
		weather: map[float64][]types.WeatherSample{1.0: flatWeather(3)},
	}
	notifier := &fakeNotifier{}
	runner := NewRunner(store, fetcher, notifier, nil)

	for i := 0; i < 2; i++ {
		_, err := runner.Run(context.Background(), defaultParams())
		require.NoError(t, err)
	}

	require.Len(t, notifier.reports, 2)
	assert.Equal(t, notifier.reports[0], notifier.reports[1])
}
