package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds the telemetry instruments and providers for a fetch run.
type Telemetry struct {
	meterProvider metric.MeterProvider
	tracer        trace.Tracer
	meter         metric.Meter
	exporter      *prometheus.Exporter

	stagesTotal   metric.Int64Counter
	stageDuration metric.Float64Histogram

	fetchesTotal  metric.Int64Counter
	fetchDuration metric.Float64Histogram

	probeAttempts  metric.Int64Histogram
	bytesTotal     metric.Int64Counter
	nodeStarts     metric.Int64Counter
	nodeStops      metric.Int64Counter
	nodeForceKills metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool
	ServiceName string
}

// New creates a new telemetry instance. With Enabled false all recording
// methods are no-ops.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		tracer:        otel.Tracer(cfg.ServiceName),
		meter:         otel.Meter(cfg.ServiceName),
		exporter:      exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

// Tracer returns the OpenTelemetry tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// RecordStage records the outcome of one orchestration stage.
func (t *Telemetry) RecordStage(stage, status string, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	)

	if t.stagesTotal != nil {
		t.stagesTotal.Add(context.Background(), 1, attrs)
	}

	if t.stageDuration != nil {
		t.stageDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
}

// RecordFetch records the outcome of a whole fetch run.
func (t *Telemetry) RecordFetch(status string, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))

	if t.fetchesTotal != nil {
		t.fetchesTotal.Add(context.Background(), 1, attrs)
	}

	if t.fetchDuration != nil {
		t.fetchDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
}

// RecordProbeAttempts records how many dials the readiness probe needed.
func (t *Telemetry) RecordProbeAttempts(attempts int, status string) {
	if t == nil {
		return
	}

	if t.probeAttempts != nil {
		t.probeAttempts.Record(context.Background(), int64(attempts),
			metric.WithAttributes(attribute.String("status", status)),
		)
	}
}

// RecordBytes records bytes transferred by a component ("install", "retrieve").
func (t *Telemetry) RecordBytes(component string, n int64) {
	if t == nil {
		return
	}

	if t.bytesTotal != nil {
		t.bytesTotal.Add(context.Background(), n,
			metric.WithAttributes(attribute.String("component", component)),
		)
	}
}

// RecordNodeStart records a node process launch.
func (t *Telemetry) RecordNodeStart() {
	if t == nil {
		return
	}

	if t.nodeStarts != nil {
		t.nodeStarts.Add(context.Background(), 1)
	}
}

// RecordNodeStop records a node process shutdown. forced marks an escalation
// to kill after the join timeout.
func (t *Telemetry) RecordNodeStop(forced bool) {
	if t == nil {
		return
	}

	if t.nodeStops != nil {
		t.nodeStops.Add(context.Background(), 1)
	}

	if forced && t.nodeForceKills != nil {
		t.nodeForceKills.Add(context.Background(), 1)
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t.exporter == nil {
		return http.NotFoundHandler()
	}

	return promhttp.Handler()
}

// Shutdown gracefully shuts down the telemetry system.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		return mp.Shutdown(ctx)
	}

	return nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	t.stagesTotal, err = t.meter.Int64Counter(
		"fetch_stages_total",
		metric.WithDescription("Total number of fetch stage executions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetch_stages_total counter: %w", err)
	}

	t.stageDuration, err = t.meter.Float64Histogram(
		"fetch_stage_duration_seconds",
		metric.WithDescription("Fetch stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetch_stage_duration histogram: %w", err)
	}

	t.fetchesTotal, err = t.meter.Int64Counter(
		"fetches_total",
		metric.WithDescription("Total number of fetch runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetches_total counter: %w", err)
	}

	t.fetchDuration, err = t.meter.Float64Histogram(
		"fetch_duration_seconds",
		metric.WithDescription("Whole fetch run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetch_duration histogram: %w", err)
	}

	t.probeAttempts, err = t.meter.Int64Histogram(
		"probe_attempts",
		metric.WithDescription("Readiness probe dials needed before the node accepted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create probe_attempts histogram: %w", err)
	}

	t.bytesTotal, err = t.meter.Int64Counter(
		"transferred_bytes_total",
		metric.WithDescription("Bytes transferred, by component"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transferred_bytes_total counter: %w", err)
	}

	t.nodeStarts, err = t.meter.Int64Counter(
		"node_starts_total",
		metric.WithDescription("Node processes launched"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create node_starts_total counter: %w", err)
	}

	t.nodeStops, err = t.meter.Int64Counter(
		"node_stops_total",
		metric.WithDescription("Node processes stopped"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create node_stops_total counter: %w", err)
	}

	t.nodeForceKills, err = t.meter.Int64Counter(
		"node_force_kills_total",
		metric.WithDescription("Node processes killed after the join timeout"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create node_force_kills_total counter: %w", err)
	}

	return nil
}
