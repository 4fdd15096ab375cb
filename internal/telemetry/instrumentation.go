package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentStage wraps one orchestration stage with a span and stage
// metrics. Stage names are a bounded set ("locate_release", "install",
// "start_node", "probe", "retrieve"); dynamic values such as hashes or
// filenames stay out of the attributes and in the logs.
func (t *Telemetry) InstrumentStage(ctx context.Context, stage string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, stage)

	defer span.End()

	span.SetAttributes(attribute.String("stage", stage))

	err := fn(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(attribute.String("status", status))

	t.RecordStage(stage, status, duration)

	return err
}
