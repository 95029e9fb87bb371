// Package metrics records alert-run telemetry. The Lambda entrypoints emit
// to CloudWatch; the long-running daemon exposes Prometheus collectors on
// its /metrics endpoint.
package metrics

import (
	"context"
	"time"
)

// RunRecorder records the outcome of a completed alert run. Implementations
// must never fail the run: recording errors are logged and swallowed.
type RunRecorder interface {
	// RecordRun records one finished run with its outcome ("sent",
	// "no_exceedances", "no_locations"), the number of locations
	// processed, the total exceedance count, and the wall time.
	RecordRun(ctx context.Context, outcome string, locations, exceedances int, duration time.Duration)
	// RecordLocationFailures records how many locations failed to fetch
	// or evaluate during a run.
	RecordLocationFailures(ctx context.Context, count int)
}

// Noop is a RunRecorder that discards everything.
type Noop struct{}

func (Noop) RecordRun(context.Context, string, int, int, time.Duration) {}
func (Noop) RecordLocationFailures(context.Context, int)                {}

var _ RunRecorder = Noop{}
