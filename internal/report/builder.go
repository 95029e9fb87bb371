// Package report renders the consolidated wave alert: per-location tables of
// collocated wave and weather samples (plaintext and inline-CSS HTML for
// email clients) and the multi-location aggregate with subject, text body,
// and HTML body. Rendering is pure formatting with no side effects, so
// identical inputs always produce byte-identical output.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"sort"
	"strings"
	"time"

	"swellwatch/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// tmpl holds the parsed HTML templates, loaded once at init.
var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// localTimeLayout is the timestamp format used in table rows and section
// headings. Times are rendered in the configured display timezone.
const localTimeLayout = "2006-01-02 15:04"

// textTableHeader is the column header for the plaintext table variant.
var textTableHeader = []string{
	"Time | H(m) | From° | To° | WaterT°C | Current m/s | Sym | AirT°C | Wind m/s | WindFrom° | Cloud% | RH% | Precip mm",
	"-----|------|-------|-----|----------|-------------|-----|--------|----------|-----------|--------|-----|----------",
}

// LocationSummary is the per-location aggregate produced by one alert run.
// It exists only for the duration of the run that computed it.
type LocationSummary struct {
	Location    types.Location
	ExceedCount int
	MaxHeight   float64
	FirstExceed time.Time
	TableText   string
	TableHTML   string
}

// AggregateReport is the assembled multi-location notification content.
type AggregateReport struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// tableCell is one rendered cell of the HTML table.
type tableCell struct {
	Value string
	Align template.CSS
}

// tableRow is one rendered row of the HTML table. Style carries the zebra
// background plus bold highlight for rows at or above the threshold.
type tableRow struct {
	Style template.CSS
	Cells []tableCell
}

// BuildLocationTable renders the collocated wave+weather table for one
// location, one row per window sample in time order. The weather columns are
// resolved per row by a nearest-in-time lookup over the already-collocated
// map; rows whose wave height meets the threshold are highlighted in the
// HTML variant. Returns the plaintext and HTML renderings.
func BuildLocationTable(window []types.WaveSample, weatherByTime map[time.Time]types.WeatherSample, threshold float64, loc *time.Location) (string, string, error) {
	textLines := append([]string{}, textTableHeader...)
	rows := make([]tableRow, 0, len(window))

	weather := weatherValues(weatherByTime)

	for i, wv := range window {
		var wt *types.WeatherSample
		if len(weather) > 0 {
			wt = nearestTo(weather, wv.Time)
		}

		localTime := wv.Time.In(loc).Format(localTimeLayout)

		textLines = append(textLines, fmt.Sprintf(
			"%s | %.2f | %.0f | %.0f | %.1f | %.2f | %3s | %6s | %8s | %9s | %6s | %3s | %9s",
			localTime, wv.Height, wv.FromDirection, wv.ToDirection, wv.WaterTemp, wv.CurrentSpeed,
			weatherText(wt, func(w types.WeatherSample) string { return symbolOrDash(w.SymbolCode) }),
			weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.1f", w.AirTemp) }),
			weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.1f", w.WindSpeed) }),
			weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.0f", w.WindFromDirection) }),
			weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.0f", w.CloudFraction) }),
			weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.0f", w.RelHumidity) }),
			weatherText(wt, func(w types.WeatherSample) string { return formatPrecip(w.Precipitation) }),
		))

		rows = append(rows, tableRow{
			Style: rowStyle(i, wv.Height >= threshold),
			Cells: []tableCell{
				{Value: localTime, Align: "left"},
				{Value: fmt.Sprintf("%.2f", wv.Height), Align: "right"},
				{Value: fmt.Sprintf("%.0f", wv.FromDirection), Align: "right"},
				{Value: fmt.Sprintf("%.0f", wv.ToDirection), Align: "right"},
				{Value: fmt.Sprintf("%.1f", wv.WaterTemp), Align: "right"},
				{Value: fmt.Sprintf("%.2f", wv.CurrentSpeed), Align: "right"},
				{Value: weatherText(wt, func(w types.WeatherSample) string { return symbolOrDash(w.SymbolCode) }), Align: "center"},
				{Value: weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.1f", w.AirTemp) }), Align: "right"},
				{Value: weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.1f", w.WindSpeed) }), Align: "right"},
				{Value: weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.0f", w.WindFromDirection) }), Align: "right"},
				{Value: weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.0f", w.CloudFraction) }), Align: "right"},
				{Value: weatherText(wt, func(w types.WeatherSample) string { return fmt.Sprintf("%.0f", w.RelHumidity) }), Align: "right"},
				{Value: weatherText(wt, func(w types.WeatherSample) string { return formatPrecip(w.Precipitation) }), Align: "right"},
			},
		})
	}

	var htmlBuf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&htmlBuf, "table", struct{ Rows []tableRow }{rows}); err != nil {
		return "", "", fmt.Errorf("report: rendering location table: %w", err)
	}

	return strings.Join(textLines, "\n"), htmlBuf.String(), nil
}

// reportSection is one location block of the HTML aggregate.
type reportSection struct {
	Name           string
	ExceedCount    int
	MaxHeightText  string
	FirstLocalText string
	Table          template.HTML
}

// BuildAggregate assembles the consolidated notification from per-location
// summaries, ordered by ascending first exceedance time. scheduleSpec is the
// raw opening-hours text shown in the preamble ("N/A" when empty); tzLabel
// names the display timezone.
func BuildAggregate(summaries []LocationSummary, threshold float64, scheduleSpec, tzLabel string, loc *time.Location) (AggregateReport, error) {
	ordered := make([]LocationSummary, len(summaries))
	copy(ordered, summaries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FirstExceed.Before(ordered[j].FirstExceed)
	})

	totalExceed := 0
	for _, s := range ordered {
		totalExceed += s.ExceedCount
	}

	subject := fmt.Sprintf("Wave Alerts · %d location(s) · %d exceedance(s) (>= %.2fm) [%s]",
		len(ordered), totalExceed, threshold, tzLabel)

	specText := scheduleSpec
	if specText == "" {
		specText = "N/A"
	}

	textSections := []string{
		fmt.Sprintf("Threshold: %.2f m", threshold),
		fmt.Sprintf("Opening hours spec: %s", specText),
		fmt.Sprintf("Times shown in %s (converted from UTC)", tzLabel),
		"",
	}
	htmlSections := make([]reportSection, 0, len(ordered))

	for _, s := range ordered {
		firstLocal := s.FirstExceed.In(loc).Format(localTimeLayout)

		textSections = append(textSections,
			fmt.Sprintf("=== %s (lat=%.4f, lon=%.4f) | exceedances=%d | max=%.2fm | first=%s ===",
				s.Location.Name, s.Location.Latitude, s.Location.Longitude,
				s.ExceedCount, s.MaxHeight, firstLocal),
			"-- Waves + Weather (collocated) --",
			s.TableText,
			"",
		)

		htmlSections = append(htmlSections, reportSection{
			Name:           s.Location.Name,
			ExceedCount:    s.ExceedCount,
			MaxHeightText:  fmt.Sprintf("%.2f", s.MaxHeight),
			FirstLocalText: firstLocal,
			Table:          template.HTML(s.TableHTML),
		})
	}

	var htmlBuf bytes.Buffer
	err := tmpl.ExecuteTemplate(&htmlBuf, "report", struct {
		ThresholdText string
		ScheduleSpec  string
		TimezoneLabel string
		Sections      []reportSection
	}{
		ThresholdText: fmt.Sprintf("%.2f", threshold),
		ScheduleSpec:  specText,
		TimezoneLabel: tzLabel,
		Sections:      htmlSections,
	})
	if err != nil {
		return AggregateReport{}, fmt.Errorf("report: rendering aggregate: %w", err)
	}

	return AggregateReport{
		Subject:  subject,
		TextBody: strings.Join(textSections, "\n"),
		HTMLBody: htmlBuf.String(),
	}, nil
}

// rowStyle computes the inline style for an HTML table row: zebra striping
// by index, with a brighter bold style for threshold rows.
func rowStyle(idx int, highlight bool) template.CSS {
	if highlight {
		return "background:#1f2f3a;font-weight:600;"
	}
	if idx%2 == 0 {
		return "background:#121e27;"
	}
	return "background:#0f1a22;"
}

// weatherValues flattens the collocated map into a slice for per-row
// nearest-match lookups. The slice is sorted by timestamp so lookups are
// deterministic regardless of map iteration order.
func weatherValues(m map[time.Time]types.WeatherSample) []types.WeatherSample {
	out := make([]types.WeatherSample, 0, len(m))
	for _, wt := range m {
		out = append(out, wt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// nearestTo returns the weather sample closest in absolute time to target.
func nearestTo(weather []types.WeatherSample, target time.Time) *types.WeatherSample {
	best := 0
	bestDist := absDuration(weather[0].Time.Sub(target))
	for i := 1; i < len(weather); i++ {
		if d := absDuration(weather[i].Time.Sub(target)); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return &weather[best]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// weatherText formats one weather column, or a dash when no weather sample
// matched this row.
func weatherText(wt *types.WeatherSample, format func(types.WeatherSample) string) string {
	if wt == nil {
		return "-"
	}
	return format(*wt)
}

// formatPrecip renders precipitation in mm, with NaN (no upstream
// precipitation block for the timestep) shown as a dash.
func formatPrecip(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

func symbolOrDash(code string) string {
	if code == "" {
		return "-"
	}
	return code
}
