package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metric and dimension names emitted to CloudWatch.
const (
	MetricAlertRun         = "AlertRun"
	MetricRunDuration      = "AlertRunDuration"
	MetricExceedances      = "Exceedances"
	MetricLocations        = "LocationsProcessed"
	MetricLocationFailures = "LocationFailures"

	DimOutcome = "Outcome"
)

// CloudWatchRecorder implements RunRecorder by publishing to CloudWatch.
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to the given namespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRun emits the run counter (dimensioned by outcome) plus duration,
// exceedance and location gauges in a single PutMetricData call.
func (m *CloudWatchRecorder) RecordRun(ctx context.Context, outcome string, locations, exceedances int, duration time.Duration) {
	outcomeDim := []cwtypes.Dimension{
		{Name: aws.String(DimOutcome), Value: aws.String(outcome)},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricAlertRun),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: outcomeDim,
			},
			{
				MetricName: aws.String(MetricRunDuration),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
			{
				MetricName: aws.String(MetricExceedances),
				Value:      aws.Float64(float64(exceedances)),
				Unit:       cwtypes.StandardUnitCount,
			},
			{
				MetricName: aws.String(MetricLocations),
				Value:      aws.Float64(float64(locations)),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record run metrics",
			"error", err,
			"outcome", outcome,
		)
	}
}

// RecordLocationFailures emits the per-run failure count.
func (m *CloudWatchRecorder) RecordLocationFailures(ctx context.Context, count int) {
	if count == 0 {
		return
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricLocationFailures),
				Value:      aws.Float64(float64(count)),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record location failure metric",
			"error", err,
			"count", count,
		)
	}
}

// Compile-time assertion that CloudWatchRecorder implements RunRecorder.
var _ RunRecorder = (*CloudWatchRecorder)(nil)
