// Package alert implements the wave alerting engine: exceedance detection
// over forecast series, index-window expansion and merging, weather
// collocation, and the per-run orchestration that turns location forecasts
// into a single consolidated report.
package alert

import (
	"math"
	"time"

	"swellwatch/internal/schedule"
	"swellwatch/internal/types"
)

// DefaultWindowRadius is the number of neighboring samples included on each
// side of an exceedance. It is an index count, not a wall-clock duration:
// with hourly upstream cadence it corresponds to a ±3h context window.
const DefaultWindowRadius = 3

// DetectExceedances scans an ascending wave series and returns the indices
// of samples whose height meets or exceeds threshold while the schedule is
// open at the sample's local time. The returned slice is ascending; empty
// means no alert for this location this run.
func DetectExceedances(waves []types.WaveSample, sched *schedule.WeekSchedule, threshold float64, loc *time.Location) []int {
	var indices []int
	for i, w := range waves {
		if w.Height < threshold {
			continue
		}
		if !sched.Open(w.Time.In(loc)) {
			continue
		}
		indices = append(indices, i)
	}
	return indices
}

// ExpandWindows grows every exceedance index into its ±radius neighborhood,
// clamped to [0, total), and returns the union as a sorted, deduplicated
// index slice. The result is always a superset of the input indices.
func ExpandWindows(indices []int, total, radius int) []int {
	if len(indices) == 0 || total <= 0 {
		return nil
	}

	selected := make(map[int]struct{})
	for _, idx := range indices {
		lo := max(0, idx-radius)
		hi := min(total-1, idx+radius)
		for j := lo; j <= hi; j++ {
			selected[j] = struct{}{}
		}
	}

	// Membership scan keeps the output ordered without a sort pass.
	out := make([]int, 0, len(selected))
	for j := 0; j < total; j++ {
		if _, ok := selected[j]; ok {
			out = append(out, j)
		}
	}
	return out
}

// CollocateWeather pairs each selected wave sample with the weather sample
// nearest in time, with no tolerance cutoff: as long as weather is
// non-empty every wave sample finds a match. The result is keyed by the
// matched weather sample's own timestamp; when several wave samples resolve
// to the same weather timestep the first insertion wins.
func CollocateWeather(selected []types.WaveSample, weather []types.WeatherSample) map[time.Time]types.WeatherSample {
	matched := make(map[time.Time]types.WeatherSample)
	if len(weather) == 0 {
		return matched
	}

	for _, wv := range selected {
		wt := nearestWeather(weather, wv.Time)
		if _, exists := matched[wt.Time]; !exists {
			matched[wt.Time] = wt
		}
	}
	return matched
}

// nearestWeather returns the element of an ascending weather series with
// minimal absolute time distance to target. Ties keep the earlier sample.
func nearestWeather(weather []types.WeatherSample, target time.Time) types.WeatherSample {
	best := weather[0]
	bestDist := absDuration(best.Time.Sub(target))
	for _, wt := range weather[1:] {
		d := absDuration(wt.Time.Sub(target))
		if d < bestDist {
			best = wt
			bestDist = d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// MaxHeightAt returns the maximum wave height over the given sample indices.
// Returns NaN for an empty index set.
func MaxHeightAt(waves []types.WaveSample, indices []int) float64 {
	maxH := math.NaN()
	for _, i := range indices {
		if math.IsNaN(maxH) || waves[i].Height > maxH {
			maxH = waves[i].Height
		}
	}
	return maxH
}
