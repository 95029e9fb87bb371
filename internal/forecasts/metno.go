// Package forecasts fetches wave and weather forecasts from the MET Norway
// weather API (api.met.no).
//
// Two products are combined per location:
//   - oceanforecast/2.0/complete: wave height, directions, water temperature
//     and current speed for points at sea
//   - locationforecast/2.0/compact: air temperature, wind, cloud cover,
//     humidity, precipitation and symbol codes
//
// Both return MET Forecast GeoJSON. The nested timeseries entries are
// flattened into the domain sample types here; callers never see GeoJSON.
package forecasts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzip"

	"swellwatch/internal/types"
)

// DefaultBaseURL is the production MET API root.
const DefaultBaseURL = "https://api.met.no/weatherapi"

// HTTPDoer is the subset of the resilient HTTP client used here.
// Production code passes an *external.BaseClient.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MetClientConfig configures a MetClient.
type MetClientConfig struct {
	// BaseURL overrides the API root. Empty means DefaultBaseURL.
	BaseURL string
	Logger  *slog.Logger
}

// MetClient fetches forecasts from the MET API. It satisfies the fetcher
// interface consumed by the alert runner.
type MetClient struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewMetClient creates a MetClient on top of the given HTTP client.
func NewMetClient(doer HTTPDoer, cfg MetClientConfig) *MetClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MetClient{
		http:    doer,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Fetch retrieves both the ocean and atmospheric forecast for a coordinate.
// Samples come back sorted ascending by time with UTC timestamps, as the
// upstream delivers them.
func (c *MetClient) Fetch(ctx context.Context, lat, lon float64) ([]types.WaveSample, []types.WeatherSample, error) {
	waves, err := c.FetchWaves(ctx, lat, lon)
	if err != nil {
		return nil, nil, err
	}
	weather, err := c.FetchWeather(ctx, lat, lon)
	if err != nil {
		return nil, nil, err
	}
	return waves, weather, nil
}

// FetchWaves retrieves the ocean forecast timeseries for a coordinate.
// Timesteps without a wave height (land-adjacent points can return sparse
// series) are skipped.
func (c *MetClient) FetchWaves(ctx context.Context, lat, lon float64) ([]types.WaveSample, error) {
	var doc forecastDocument
	if err := c.getJSON(ctx, "oceanforecast/2.0/complete", lat, lon, &doc); err != nil {
		return nil, err
	}

	samples := make([]types.WaveSample, 0, len(doc.Properties.Timeseries))
	for _, step := range doc.Properties.Timeseries {
		details := step.Data.Instant.Details
		if details.SeaSurfaceWaveHeight == nil {
			continue
		}
		samples = append(samples, types.WaveSample{
			Time:          step.Time.UTC(),
			Height:        *details.SeaSurfaceWaveHeight,
			FromDirection: deref(details.SeaSurfaceWaveFromDirection),
			ToDirection:   deref(details.SeaWaterToDirection),
			WaterTemp:     deref(details.SeaWaterTemperature),
			CurrentSpeed:  deref(details.SeaWaterSpeed),
		})
	}

	c.logger.DebugContext(ctx, "ocean forecast fetched",
		"lat", lat, "lon", lon, "samples", len(samples))
	return samples, nil
}

// FetchWeather retrieves the atmospheric forecast timeseries for a
// coordinate. Precipitation and symbol come from the shortest available
// aggregation window (next_1_hours, then next_6_hours, then next_12_hours);
// when none is present precipitation is NaN and the symbol is empty.
func (c *MetClient) FetchWeather(ctx context.Context, lat, lon float64) ([]types.WeatherSample, error) {
	var doc forecastDocument
	if err := c.getJSON(ctx, "locationforecast/2.0/compact", lat, lon, &doc); err != nil {
		return nil, err
	}

	samples := make([]types.WeatherSample, 0, len(doc.Properties.Timeseries))
	for _, step := range doc.Properties.Timeseries {
		details := step.Data.Instant.Details
		if details.AirTemperature == nil {
			continue
		}

		sample := types.WeatherSample{
			Time:              step.Time.UTC(),
			AirTemp:           *details.AirTemperature,
			WindSpeed:         deref(details.WindSpeed),
			WindFromDirection: deref(details.WindFromDirection),
			CloudFraction:     deref(details.CloudAreaFraction),
			RelHumidity:       deref(details.RelativeHumidity),
			Precipitation:     math.NaN(),
		}

		if window := step.Data.nextWindow(); window != nil {
			if window.Details != nil && window.Details.PrecipitationAmount != nil {
				sample.Precipitation = *window.Details.PrecipitationAmount
			}
			if window.Summary != nil {
				sample.SymbolCode = window.Summary.SymbolCode
			}
		}

		samples = append(samples, sample)
	}

	c.logger.DebugContext(ctx, "weather forecast fetched",
		"lat", lat, "lon", lon, "samples", len(samples))
	return samples, nil
}

// getJSON performs a GET against {baseURL}/{product}?lat=..&lon=.. and
// decodes the GeoJSON body into out. Responses are requested gzipped and
// decompressed here; the MET API strongly prefers compressed transfers.
func (c *MetClient) getJSON(ctx context.Context, product string, lat, lon float64, out any) error {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.5f", lat))
	q.Set("lon", fmt.Sprintf("%.5f", lon))
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, product, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("building forecast request for %s", product), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return types.NewAppError(types.ErrCodeUpstreamForecast,
			fmt.Sprintf("%s returned %d: %s", product, resp.StatusCode, snippet), nil)
	}

	body := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return types.NewAppError(types.ErrCodeUpstreamDecode,
				fmt.Sprintf("decompressing %s response", product), gzErr)
		}
		defer gz.Close()
		body = gz
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamDecode,
			fmt.Sprintf("decoding %s response", product), err)
	}
	return nil
}

func deref(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}

// forecastDocument is the shared GeoJSON envelope for both MET products.
// Only the fields used for flattening are declared; pointer fields
// distinguish absent values from zeroes.
type forecastDocument struct {
	Properties struct {
		Meta struct {
			UpdatedAt time.Time `json:"updated_at"`
		} `json:"meta"`
		Timeseries []timeStep `json:"timeseries"`
	} `json:"properties"`
}

type timeStep struct {
	Time time.Time `json:"time"`
	Data stepData  `json:"data"`
}

type stepData struct {
	Instant struct {
		Details instantDetails `json:"details"`
	} `json:"instant"`
	Next1Hours  *aggregation `json:"next_1_hours"`
	Next6Hours  *aggregation `json:"next_6_hours"`
	Next12Hours *aggregation `json:"next_12_hours"`
}

// nextWindow returns the shortest available aggregation window.
func (d stepData) nextWindow() *aggregation {
	switch {
	case d.Next1Hours != nil:
		return d.Next1Hours
	case d.Next6Hours != nil:
		return d.Next6Hours
	default:
		return d.Next12Hours
	}
}

type instantDetails struct {
	// oceanforecast
	SeaSurfaceWaveHeight        *float64 `json:"sea_surface_wave_height"`
	SeaSurfaceWaveFromDirection *float64 `json:"sea_surface_wave_from_direction"`
	SeaWaterToDirection         *float64 `json:"sea_water_to_direction"`
	SeaWaterTemperature         *float64 `json:"sea_water_temperature"`
	SeaWaterSpeed               *float64 `json:"sea_water_speed"`

	// locationforecast
	AirTemperature    *float64 `json:"air_temperature"`
	WindSpeed         *float64 `json:"wind_speed"`
	WindFromDirection *float64 `json:"wind_from_direction"`
	CloudAreaFraction *float64 `json:"cloud_area_fraction"`
	RelativeHumidity  *float64 `json:"relative_humidity"`
}

type aggregation struct {
	Summary *struct {
		SymbolCode string `json:"symbol_code"`
	} `json:"summary"`
	Details *struct {
		PrecipitationAmount *float64 `json:"precipitation_amount"`
	} `json:"details"`
}
