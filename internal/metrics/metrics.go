// Package metrics exposes runtime counters through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

const meterName = "github.com/ubc-cic/expertise-dashboard"

// Instruments holds the counters and histograms recorded by the handlers and
// the pipeline runner. A nil *Instruments records nothing.
type Instruments struct {
	authDecisions metric.Int64Counter
	redeploys     metric.Int64Counter
	taskRuns      metric.Int64Counter
	taskDuration  metric.Float64Histogram
	pipelineRuns  metric.Int64Counter
}

// New creates the instruments on the given meter provider.
func New(mp metric.MeterProvider) (*Instruments, error) {
	m := mp.Meter(meterName)

	var (
		in  Instruments
		err error
	)
	if in.authDecisions, err = m.Int64Counter("edgeauth.decisions",
		metric.WithDescription("Edge authorization outcomes")); err != nil {
		return nil, fmt.Errorf("creating edgeauth.decisions: %w", err)
	}
	if in.redeploys, err = m.Int64Counter("redeploy.requests",
		metric.WithDescription("Webhook redeploy POSTs by status")); err != nil {
		return nil, fmt.Errorf("creating redeploy.requests: %w", err)
	}
	if in.taskRuns, err = m.Int64Counter("pipeline.task.runs",
		metric.WithDescription("Pipeline task executions by outcome")); err != nil {
		return nil, fmt.Errorf("creating pipeline.task.runs: %w", err)
	}
	if in.taskDuration, err = m.Float64Histogram("pipeline.task.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Pipeline task wall time")); err != nil {
		return nil, fmt.Errorf("creating pipeline.task.duration: %w", err)
	}
	if in.pipelineRuns, err = m.Int64Counter("pipeline.runs",
		metric.WithDescription("Pipeline runs by terminal status")); err != nil {
		return nil, fmt.Errorf("creating pipeline.runs: %w", err)
	}
	return &in, nil
}

// Global returns instruments bound to the global meter provider, falling back
// to nil (no-op) if instrument creation fails.
func Global() *Instruments {
	in, err := New(otel.GetMeterProvider())
	if err != nil {
		return nil
	}
	return in
}

// RecordAuth counts an edge authorization decision.
func (in *Instruments) RecordAuth(ctx context.Context, d types.AuthDecision) {
	if in == nil {
		return
	}
	in.authDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", string(d))))
}

// RecordRedeploy counts a webhook POST. status is the HTTP status or "error".
func (in *Instruments) RecordRedeploy(ctx context.Context, status string) {
	if in == nil {
		return
	}
	in.redeploys.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordTask counts a task execution and its duration.
func (in *Instruments) RecordTask(ctx context.Context, pipeline, task string, status types.TaskStatus, d time.Duration) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("task", task),
		attribute.String("status", string(status)),
	)
	in.taskRuns.Add(ctx, 1, attrs)
	in.taskDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordRun counts a finished pipeline run.
func (in *Instruments) RecordRun(ctx context.Context, pipeline string, status types.RunStatus) {
	if in == nil {
		return
	}
	in.pipelineRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("status", string(status)),
	))
}
