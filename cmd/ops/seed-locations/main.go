// Package main implements the seed-locations CLI tool.
//
// It creates the locations table if it does not exist and inserts the
// default monitored spots. Seeding is idempotent: existing rows are left
// untouched, so the tool is safe to re-run against a live database.
//
// Usage:
//
//	go run ./cmd/ops/seed-locations
//	go run ./cmd/ops/seed-locations --list
//
// The --list flag prints the locations table after seeding, which doubles as
// a connectivity check.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"swellwatch/internal/config"
	"swellwatch/internal/db"
)

func main() {
	listAfter := flag.Bool("list", false, "print the locations table after seeding")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), logger, *listAfter); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, listAfter bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	repo := db.NewLocationRepository(pool)
	if err := repo.Seed(ctx); err != nil {
		return fmt.Errorf("seeding locations: %w", err)
	}
	logger.Info("locations seeded")

	if listAfter {
		locations, err := repo.List(ctx, 0)
		if err != nil {
			return fmt.Errorf("listing locations: %w", err)
		}
		for _, loc := range locations {
			fmt.Printf("%3d  %-20s  lat=%.6f  lon=%.6f\n", loc.ID, loc.Name, loc.Latitude, loc.Longitude)
		}
	}

	return nil
}
