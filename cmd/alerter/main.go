// Package main is the entrypoint for the Alerter Lambda function.
//
// The Alerter runs once per day via an EventBridge rule. It loads the
// monitored locations from the database, fetches wave and weather forecasts
// from api.met.no for each, detects wave-height exceedances within the
// configured opening hours, and delivers a consolidated report by email or
// by publishing it to the report SQS queue.
//
// This file handles dependency wiring (cold start) and delegates the run
// itself to internal/alert (Runner.Run).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"swellwatch/internal/alert"
	"swellwatch/internal/config"
	"swellwatch/internal/db"
	"swellwatch/internal/external"
	"swellwatch/internal/forecasts"
	"swellwatch/internal/metrics"
	"swellwatch/internal/notify"
	"swellwatch/internal/schedule"
)

// RunInput is the optional invocation payload. Zero values fall back to the
// configured defaults, so a plain scheduled invocation carries an empty
// object and manual invocations can override per run.
type RunInput struct {
	// Threshold overrides WAVE_THRESHOLD for this run when > 0.
	Threshold float64 `json:"threshold,omitempty"`
	// LimitLocations overrides LIMIT_LOCATIONS for this run when > 0.
	LimitLocations int `json:"limit_locations,omitempty"`
}

func main() {
	logger := newLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("alerter initializing (cold start)")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	tz, err := cfg.Alert.Location()
	if err != nil {
		logger.Error("failed to resolve alert timezone", "timezone", cfg.Alert.Timezone, "error", err)
		os.Exit(1)
	}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	notifier, err := newNotifier(*cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build notifier", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewCloudWatchRecorder(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.Observability.MetricNamespace,
		logger,
	)

	runner := alert.NewRunner(
		db.NewLocationRepository(pool),
		newMetClient(cfg.Upstream, logger),
		notifier,
		logger,
	)

	logger.Info("alerter initialized",
		"environment", cfg.Environment,
		"threshold", cfg.Alert.WaveThreshold,
		"opening_hours", cfg.Alert.OpeningHours,
		"timezone", cfg.Alert.Timezone,
		"email_provider", cfg.Email.Provider,
		"report_queue", cfg.AWS.ReportQueue,
	)

	handler := newHandler(runner, recorder, *cfg, tz, logger)

	// Local mode runs a single cycle instead of starting the Lambda runtime.
	if cfg.Environment == "local" {
		result, err := handler(ctx, RunInput{})
		if err != nil {
			logger.Error("alert run failed", "error", err)
			os.Exit(1)
		}
		logger.Info(result)
		return
	}

	lambda.Start(handler)
}

// newHandler wraps Runner.Run with input overrides, metric recording, and a
// human-readable result string for the Lambda console.
func newHandler(
	runner *alert.Runner,
	recorder metrics.RunRecorder,
	cfg config.Config,
	tz *time.Location,
	logger *slog.Logger,
) func(ctx context.Context, input RunInput) (string, error) {
	return func(ctx context.Context, input RunInput) (string, error) {
		params := alert.RunParams{
			Threshold:        cfg.Alert.WaveThreshold,
			Schedule:         schedule.Parse(cfg.Alert.OpeningHours),
			ScheduleSpec:     cfg.Alert.OpeningHours,
			WindowRadius:     cfg.Alert.WindowRadius,
			LimitLocations:   cfg.Alert.LimitLocations,
			Timezone:         tz,
			TimezoneLabel:    cfg.Alert.Timezone,
			FetchConcurrency: cfg.Alert.FetchConcurrency,
		}
		if input.Threshold > 0 {
			params.Threshold = input.Threshold
		}
		if input.LimitLocations > 0 {
			params.LimitLocations = input.LimitLocations
		}

		start := time.Now()
		result, err := runner.Run(ctx, params)
		if err != nil {
			recorder.RecordRun(ctx, "error", 0, 0, time.Since(start))
			return "", fmt.Errorf("alert run failed: %w", err)
		}

		recorder.RecordRun(ctx, string(result.Outcome), result.Locations, result.TotalExceedances, time.Since(start))
		recorder.RecordLocationFailures(ctx, len(result.Failures))

		summary := fmt.Sprintf("alert run complete: outcome=%s locations=%d exceedances=%d failures=%d",
			result.Outcome, result.Locations, result.TotalExceedances, len(result.Failures))
		logger.InfoContext(ctx, summary, "subject", result.Subject)
		return summary, nil
	}
}

// newNotifier selects the delivery path: the report queue when configured,
// otherwise direct email with the configured provider. A "none" provider
// yields an email notifier that degrades to a logged no-op.
func newNotifier(cfg config.Config, awsCfg aws.Config, logger *slog.Logger) (alert.Notifier, error) {
	if cfg.AWS.ReportQueue != "" {
		return notify.NewQueueNotifier(sqs.NewFromConfig(awsCfg), cfg.AWS.ReportQueue, logger), nil
	}

	provider, err := newEmailProvider(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	from := external.Address{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress}
	return notify.NewEmailNotifier(provider, from, cfg.Email.ToAddress, logger), nil
}

func newEmailProvider(cfg config.Config, awsCfg aws.Config, logger *slog.Logger) (external.EmailProvider, error) {
	switch cfg.Email.Provider {
	case "ses":
		return external.NewSESProvider(awsCfg, external.SESProviderConfig{
			ConfigSetName: cfg.Email.SESConfigSet,
			Logger:        logger,
		}), nil
	case "smtp":
		if cfg.Email.SMTPHost == "" {
			return nil, fmt.Errorf("EMAIL_PROVIDER=smtp requires SMTP_HOST")
		}
		return external.NewSMTPProvider(external.SMTPProviderConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
		}), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

// newMetClient builds the MET forecast client over the resilient HTTP base
// client (User-Agent injection, circuit breaking, retry on 429/5xx).
func newMetClient(cfg config.UpstreamConfig, logger *slog.Logger) *forecasts.MetClient {
	policy := external.DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries

	base := external.NewBaseClient(
		&http.Client{Timeout: cfg.Timeout},
		"met-api",
		policy,
		cfg.UserAgent,
	)
	return forecasts.NewMetClient(base, forecasts.MetClientConfig{
		BaseURL: cfg.BaseURL,
		Logger:  logger,
	})
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
