package run

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"swellwatch/internal/types"
)

// RunMetrics receives per-run and per-delivery observability signals.
// Implementations must never fail the run; metric emission is fire-and-forget.
type RunMetrics interface {
	// RecordDelivery is emitted once per channel dispatch outcome.
	RecordDelivery(ctx context.Context, channel types.ChannelType, status types.DeliveryStatus, duration time.Duration)
	// RecordRun is emitted once at the end of a run with the summary counts.
	RecordRun(ctx context.Context, summary types.RunSummary)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRunMetrics implements RunMetrics against AWS CloudWatch.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Channel, Result} -- one per delivery outcome
//   - DeliveryAttemptLatency: Dims {Channel} -- delivery duration
//   - RunEvaluated/RunMatched/RunSent/RunSuppressed/RunSkipped/RunFailed/
//     LedgerWriteFailures: no dims -- run summary counts
type CloudWatchRunMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchRunMetrics creates a CloudWatchRunMetrics publishing to the
// given namespace.
func NewCloudWatchRunMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRunMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchRunMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count plus a latency metric for the
// channel.
func (m *CloudWatchRunMetrics) RecordDelivery(ctx context.Context, channel types.ChannelType, status types.DeliveryStatus, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDeliveryAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimChannel),
						Value: aws.String(string(channel)),
					},
					{
						Name:  aws.String(types.DimResult),
						Value: aws.String(string(status)),
					},
				},
			},
			{
				MetricName: aws.String(types.MetricDeliveryAttempt + "Latency"),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimChannel),
						Value: aws.String(string(channel)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record delivery metric",
			"error", err.Error(),
			"channel", string(channel),
			"result", string(status),
		)
	}
}

// RecordRun emits the run summary counts in one PutMetricData call.
func (m *CloudWatchRunMetrics) RecordRun(ctx context.Context, summary types.RunSummary) {
	counts := []struct {
		name  string
		value int
	}{
		{types.MetricRunEvaluated, summary.Evaluated},
		{types.MetricRunMatched, summary.Matched},
		{types.MetricRunSent, summary.Sent},
		{types.MetricRunSuppressed, summary.Suppressed},
		{types.MetricRunSkipped, summary.Skipped},
		{types.MetricRunFailed, summary.Failed},
		{types.MetricLedgerFailures, summary.LedgerFailures},
	}

	data := make([]cwtypes.MetricDatum, 0, len(counts))
	for _, c := range counts {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(c.name),
			Value:      aws.Float64(float64(c.value)),
			Unit:       cwtypes.StandardUnitCount,
		})
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record run metrics",
			"error", err.Error(),
			"run_id", summary.RunID,
		)
	}
}

// NopMetrics is a RunMetrics that discards everything. Used when metrics
// are disabled and in dry runs.
type NopMetrics struct{}

func (NopMetrics) RecordDelivery(context.Context, types.ChannelType, types.DeliveryStatus, time.Duration) {
}
func (NopMetrics) RecordRun(context.Context, types.RunSummary) {}

var _ RunMetrics = (*CloudWatchRunMetrics)(nil)
var _ RunMetrics = NopMetrics{}
