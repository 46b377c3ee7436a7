package tree

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jacentio/arbor/tree"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

var (
	queryLatency metric.Float64Histogram
	queryTotal   metric.Int64Counter
	closureSize  metric.Int64Histogram
	orphanTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"arbor_query_duration_seconds",
			metric.WithDescription("Duration of statements issued to the executor"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTotal, err = meter.Int64Counter(
			"arbor_queries_total",
			metric.WithDescription("Statements issued to the executor"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		closureSize, err = meter.Int64Histogram(
			"arbor_closure_nodes",
			metric.WithDescription("Nodes returned per descendant traversal"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		orphanTotal, err = meter.Int64Counter(
			"arbor_orphans_total",
			metric.WithDescription("Nodes promoted to secondary roots during assembly"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// recordQuery records one executor round trip. kind is "closure" or "hydrate".
func recordQuery(ctx context.Context, kind string, d time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", err == nil),
	)
	queryLatency.Record(ctx, d.Seconds(), attrs)
	queryTotal.Add(ctx, 1, attrs)
}

func recordClosure(ctx context.Context, size int, bounded bool) {
	if initMetrics() != nil {
		return
	}
	closureSize.Record(ctx, int64(size), metric.WithAttributes(attribute.Bool("bounded", bounded)))
}

func recordOrphans(ctx context.Context, n int) {
	if n == 0 || initMetrics() != nil {
		return
	}
	orphanTotal.Add(ctx, int64(n))
}
