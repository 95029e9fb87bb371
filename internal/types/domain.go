// Package types defines the shared domain types for the swellwatch platform:
// monitored locations, forecast sample shapes, the application error model,
// and small cross-cutting abstractions (Clock, SecretString).
package types

import "time"

// Location is a monitored coastal spot. Rows are owned by the locations
// table and are read-only for the duration of an alert run.
type Location struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// WaveSample is one timestep of the ocean forecast for a location.
// Sequences are sorted ascending by Time; all timestamps are UTC.
type WaveSample struct {
	Time          time.Time `json:"time"`
	Height        float64   `json:"height_m"`
	FromDirection float64   `json:"from_direction_deg"`
	ToDirection   float64   `json:"to_direction_deg"`
	WaterTemp     float64   `json:"water_temp_c"`
	CurrentSpeed  float64   `json:"current_speed_ms"`
}

// WeatherSample is one timestep of the atmospheric forecast for a location.
// Precipitation is NaN when the upstream timestep carries no precipitation
// block; SymbolCode is empty in the same case. Sequences are sorted
// ascending by Time; all timestamps are UTC.
type WeatherSample struct {
	Time              time.Time `json:"time"`
	AirTemp           float64   `json:"air_temp_c"`
	WindSpeed         float64   `json:"wind_speed_ms"`
	WindFromDirection float64   `json:"wind_from_direction_deg"`
	CloudFraction     float64   `json:"cloud_fraction_pct"`
	RelHumidity       float64   `json:"rel_humidity_pct"`
	Precipitation     float64   `json:"precipitation_mm"`
	SymbolCode        string    `json:"symbol_code,omitempty"`
}
