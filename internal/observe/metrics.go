// Package observe provides application-wide observability primitives for
// smt-tools: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to a Prometheus registry scraped through [Telemetry.Handler]. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/pickled-dev/smt-tools"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// SearchDuration tracks wall time per search. Use with attributes:
	//   attribute.String("mode", "pinned"|"unpinned"), attribute.String("status", ...)
	SearchDuration metric.Float64Histogram

	// SearchSteps tracks the number of recursive solve steps per search.
	SearchSteps metric.Int64Histogram

	// Chains counts emitted fusion chains.
	Chains metric.Int64Counter

	// Failures counts emitted failures. Use with attribute:
	//   attribute.String("reason", ...)
	Failures metric.Int64Counter

	// ActiveSearches tracks searches currently running.
	ActiveSearches metric.Int64UpDownCounter

	// ToolCalls counts MCP tool and Discord command invocations. Use with
	// attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// searchBuckets defines histogram bucket boundaries (in seconds). Most
// searches finish in well under a millisecond; deep searches can take
// seconds.
var searchBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10,
}

// stepBuckets defines histogram bucket boundaries for solve step counts.
var stepBuckets = []float64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SearchDuration, err = m.Float64Histogram("smt.search.duration",
		metric.WithDescription("Wall time of fusion chain searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(searchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchSteps, err = m.Int64Histogram("smt.search.steps",
		metric.WithDescription("Recursive solve steps per search."),
		metric.WithExplicitBucketBoundaries(stepBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Chains, err = m.Int64Counter("smt.search.chains",
		metric.WithDescription("Total fusion chains found."),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("smt.search.failures",
		metric.WithDescription("Total infeasibility reports by reason."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSearches, err = m.Int64UpDownCounter("smt.search.active",
		metric.WithDescription("Number of searches currently running."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("smt.tool.calls",
		metric.WithDescription("Total tool and command invocations by name and status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("smt.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSearch records the duration and step count of one finished search.
func (m *Metrics) RecordSearch(ctx context.Context, mode, status string, d time.Duration, steps int) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	m.SearchDuration.Record(ctx, d.Seconds(), attrs)
	m.SearchSteps.Record(ctx, int64(steps), attrs)
}

// RecordChain records one emitted chain.
func (m *Metrics) RecordChain(ctx context.Context) {
	m.Chains.Add(ctx, 1)
}

// RecordFailure records one emitted failure.
func (m *Metrics) RecordFailure(ctx context.Context, reason string) {
	m.Failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordToolCall records a tool or command invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}
