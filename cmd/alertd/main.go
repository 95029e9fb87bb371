// Package main is the entrypoint for the swellwatch daemon.
//
// alertd is the self-hosted deployment mode: instead of Lambda triggers it
// runs an in-process daily scheduler (one run at startup, then every day at
// ALERT_RUN_AT in the alert timezone) and a small HTTP surface:
//
//	GET  /health   liveness probe
//	GET  /metrics  Prometheus metrics
//	POST /run      trigger an alert run out of schedule
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"swellwatch/internal/alert"
	"swellwatch/internal/config"
	"swellwatch/internal/db"
	"swellwatch/internal/external"
	"swellwatch/internal/forecasts"
	"swellwatch/internal/metrics"
	"swellwatch/internal/notify"
	"swellwatch/internal/schedule"
	"swellwatch/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("alertd starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"run_at", cfg.Alert.RunAt,
		"timezone", cfg.Alert.Timezone,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tz, err := cfg.Alert.Location()
	if err != nil {
		return fmt.Errorf("resolving alert timezone %q: %w", cfg.Alert.Timezone, err)
	}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	provider, err := newEmailProvider(*cfg)
	if err != nil {
		return fmt.Errorf("building email provider: %w", err)
	}
	from := external.Address{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress}
	notifier := notify.NewEmailNotifier(provider, from, cfg.Email.ToAddress, logger)

	recorder := metrics.NewPrometheusRecorder()

	runner := alert.NewRunner(
		db.NewLocationRepository(pool),
		newMetClient(cfg.Upstream, logger),
		notifier,
		logger,
	)

	runOnce := newRunFunc(runner, recorder, *cfg, tz, logger)

	daily, err := scheduler.NewDaily(cfg.Alert.RunAt, tz, nil, logger, runOnce)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(runOnce, recorder, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := daily.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		shutdownServer(srv, logger)
		return err
	}

	shutdownServer(srv, logger)
	return nil
}

func shutdownServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
}

// newRunFunc binds the configured parameters into a single-run closure shared
// by the scheduler and the manual trigger endpoint.
func newRunFunc(
	runner *alert.Runner,
	recorder metrics.RunRecorder,
	cfg config.Config,
	tz *time.Location,
	logger *slog.Logger,
) scheduler.RunFunc {
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
	return func(ctx context.Context) error {
		start := time.Now()
		result, err := runner.Run(ctx, params)
		if err != nil {
			recorder.RecordRun(ctx, "error", 0, 0, time.Since(start))
			return err
		}
		recorder.RecordRun(ctx, string(result.Outcome), result.Locations, result.TotalExceedances, time.Since(start))
		recorder.RecordLocationFailures(ctx, len(result.Failures))
		logger.InfoContext(ctx, "alert run complete",
			"outcome", result.Outcome,
			"locations", result.Locations,
			"exceedances", result.TotalExceedances,
			"failures", len(result.Failures),
			"subject", result.Subject,
		)
		return nil
	}
}

func newRouter(runOnce scheduler.RunFunc, recorder *metrics.PrometheusRecorder, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	r.Method(http.MethodGet, "/metrics", recorder.Handler())

	r.Post("/run", func(w http.ResponseWriter, req *http.Request) {
		logger.InfoContext(req.Context(), "manual alert run triggered")
		if err := runOnce(req.Context()); err != nil {
			logger.ErrorContext(req.Context(), "manual alert run failed", "error", err)
			http.Error(w, "run failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"completed"}`)
	})

	return r
}

// newEmailProvider builds the daemon's delivery provider. SES is not
// available outside Lambda deployments by default, so the daemon favors
// SMTP; "none" degrades delivery to a logged no-op.
func newEmailProvider(cfg config.Config) (external.EmailProvider, error) {
	switch cfg.Email.Provider {
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
	case "ses":
		return nil, fmt.Errorf("EMAIL_PROVIDER=ses is not supported by alertd; use smtp or none")
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

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
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}
