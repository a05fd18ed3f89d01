package isg

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("isg")

var (
	queryLatency    metric.Float64Histogram
	mutationLatency metric.Float64Histogram
	indexTotal      metric.Int64Counter
	indexedFiles    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments on first use. Until the host installs a
// MeterProvider the global one is a no-op, so recording costs almost nothing.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"isg_query_duration_seconds",
			metric.WithDescription("Duration of graph query operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mutationLatency, err = meter.Float64Histogram(
			"isg_mutation_duration_seconds",
			metric.WithDescription("Duration of graph mutations including lock wait"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexTotal, err = meter.Int64Counter(
			"isg_index_runs_total",
			metric.WithDescription("Total number of ingestion runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexedFiles, err = meter.Int64Histogram(
			"isg_index_files",
			metric.WithDescription("Number of files extracted per ingestion run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordQueryMetrics(queryType string, start time.Time, resultCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	queryLatency.Record(context.Background(), time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("query_type", queryType),
			attribute.Bool("empty", resultCount == 0),
		),
	)
}

func recordMutationMetrics(op string, start time.Time) {
	if err := initMetrics(); err != nil {
		return
	}
	mutationLatency.Record(context.Background(), time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", op)),
	)
}

func recordIndexMetrics(ctx context.Context, files int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	indexTotal.Add(ctx, 1, attrs)
	if success {
		indexedFiles.Record(ctx, int64(files))
	}
}
