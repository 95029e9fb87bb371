// Package config defines the global configuration structure for swellwatch.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating
// code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to
// fail immediately on startup.
package config

import (
	"time"

	"swellwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"swellwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Alert         AlertConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Upstream      UpstreamConfig
	Server        ServerConfig
	Observability ObservabilityConfig
}

// AlertConfig holds the detection parameters for an alert run.
type AlertConfig struct {
	// WaveThreshold is the wave height in metres at or above which a
	// timestep counts as an exceedance.
	WaveThreshold float64 `envconfig:"WAVE_THRESHOLD" default:"0.5" validate:"gt=0"`
	// OpeningHours is the weekly schedule expression restricting when
	// exceedances matter. Empty means always open.
	OpeningHours string `envconfig:"OPENING_HOURS"`
	// WindowRadius is the number of forecast timesteps included on each
	// side of an exceedance in the report context window.
	WindowRadius int `envconfig:"WINDOW_RADIUS" default:"3" validate:"gte=0"`
	// LimitLocations caps the number of monitored locations per run.
	// Zero means no cap.
	LimitLocations int `envconfig:"LIMIT_LOCATIONS" default:"0" validate:"gte=0"`
	// Timezone is the IANA zone used for schedule evaluation and for all
	// report timestamps.
	Timezone string `envconfig:"ALERT_TIMEZONE" default:"Europe/Oslo" validate:"timezone"`
	// FetchConcurrency bounds how many locations are fetched in parallel.
	FetchConcurrency int `envconfig:"FETCH_CONCURRENCY" default:"2" validate:"gte=1"`
	// RunAt is the daemon's daily run time, HH:MM in the alert timezone.
	RunAt string `envconfig:"ALERT_RUN_AT" default:"06:30"`
}

// Location resolves the configured IANA timezone.
func (c AlertConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-north-1"`

	// ReportQueue is the SQS queue the alerter publishes rendered reports
	// to when running in queued delivery mode. Empty disables queueing.
	ReportQueue string `envconfig:"SQS_REPORT_QUEUE"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds email delivery provider settings. With Provider "none",
// or when addresses are left empty, delivery becomes a logged no-op.
type EmailConfig struct {
	Provider    string `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses smtp none"`
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Swellwatch Alerts"`
	ToAddress   string `envconfig:"EMAIL_TO_ADDRESS"`

	// SES
	SESConfigSet string `envconfig:"SES_CONFIG_SET"`

	// SMTP
	SMTPHost     string       `envconfig:"SMTP_HOST"`
	SMTPPort     int          `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string       `envconfig:"SMTP_USERNAME"`
	SMTPPassword SecretString `envconfig:"SMTP_PASSWORD"`
}

// UpstreamConfig holds MET API client settings. The MET terms of service
// require an identifying User-Agent.
type UpstreamConfig struct {
	BaseURL    string        `envconfig:"MET_BASE_URL" default:"https://api.met.no/weatherapi"`
	UserAgent  string        `envconfig:"MET_USER_AGENT" default:"swellwatch/1.0"`
	Timeout    time.Duration `envconfig:"MET_TIMEOUT" default:"15s"`
	MaxRetries int           `envconfig:"MET_MAX_RETRIES" default:"3" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings for the daemon.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Swellwatch"`
}
