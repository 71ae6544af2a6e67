package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ubc-cic/expertise-dashboard/internal/metrics"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Notifier receives a lifecycle event when a run ends.
type Notifier interface {
	Publish(ctx context.Context, evt types.LifecycleEvent) error
}

// PermanentError marks a task failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Classify maps a task error to a failure category.
func Classify(err error) types.FailureCategory {
	var perm *PermanentError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.FailureTimeout
	case errors.As(err, &perm):
		return types.FailurePermanent
	default:
		return types.FailureTransient
	}
}

const tracerName = "github.com/ubc-cic/expertise-dashboard/internal/pipeline"

// Runner executes graphs level by level. Tasks within a level run
// concurrently; the first failure cancels the level and skips the rest.
type Runner struct {
	logger   *slog.Logger
	metrics  *metrics.Instruments
	notifier Notifier
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the instruments task outcomes are recorded on.
func WithMetrics(m *metrics.Instruments) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithNotifier publishes a lifecycle event at the end of each run.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithTracerProvider sets where run and task spans are recorded. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) RunnerOption {
	return func(r *Runner) { r.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) RunnerOption {
	return func(r *Runner) { r.newID = fn }
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: slog.Default(),
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes g and returns the finished run. The returned error is
// non-nil when the graph is invalid or a task failed; in the latter case
// the run is still returned so callers can inspect task results.
func (r *Runner) Run(ctx context.Context, g *Graph) (*Run, error) {
	return r.RunWith(ctx, g, nil)
}

// RunWith is Run with a hook that seeds the run's outputs before the first
// task starts.
func (r *Runner) RunWith(ctx context.Context, g *Graph, seed func(*Run)) (*Run, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}

	run := NewRun(g.name, r.newID())
	run.Started = r.now()
	if seed != nil {
		seed(run)
	}
	if err := run.transition(types.RunRunning); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline", g.name),
		attribute.String("run.id", run.ID),
	))
	defer span.End()

	logger := r.logger.With("pipeline", g.name, "runID", run.ID)
	logger.Info("pipeline run started", "tasks", len(g.tasks))

	var (
		completed []string
		runErr    error
		skipFrom  = len(levels)
	)
	for i, level := range levels {
		done, err := r.runLevel(ctx, logger, g, run, level)
		completed = append(completed, done...)
		if err != nil {
			runErr = err
			skipFrom = i + 1
			break
		}
	}

	for _, level := range levels[skipFrom:] {
		for _, name := range level {
			run.record(types.TaskResult{Name: name, Status: types.TaskSkipped})
		}
	}

	status := types.RunCompleted
	if runErr != nil {
		status = types.RunFailed
		r.cleanup(ctx, logger, g, run, completed)
	}
	if err := run.transition(status); err != nil {
		return run, err
	}
	r.metrics.RecordRun(ctx, g.name, status)

	if runErr != nil {
		logger.Error("pipeline run failed", "error", runErr, "elapsed", r.now().Sub(run.Started))
	} else {
		logger.Info("pipeline run completed", "elapsed", r.now().Sub(run.Started))
	}
	r.notify(ctx, logger, run, runErr)

	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		return run, fmt.Errorf("pipeline %s run %s: %w", g.name, run.ID, runErr)
	}
	return run, nil
}

func (r *Runner) runLevel(ctx context.Context, logger *slog.Logger, g *Graph, run *Run, level []string) ([]string, error) {
	var (
		mu   sync.Mutex
		done []string
	)
	eg, ectx := errgroup.WithContext(ctx)
	for _, name := range level {
		t := g.tasks[name]
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				run.record(types.TaskResult{Name: t.Name, Status: types.TaskSkipped})
				return nil
			}
			if err := r.runTask(ectx, logger, g.name, run, t); err != nil {
				return err
			}
			mu.Lock()
			done = append(done, t.Name)
			mu.Unlock()
			return nil
		})
	}
	err := eg.Wait()
	return done, err
}

func (r *Runner) runTask(ctx context.Context, logger *slog.Logger, pipeline string, run *Run, t *Task) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.task", trace.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("task", t.Name),
	))
	defer span.End()

	start := r.now()
	logger.Info("task started", "task", t.Name)

	err := t.Run(ctx, run)

	end := r.now()
	res := types.TaskResult{Name: t.Name, StartedAt: start, FinishedAt: end, Status: types.TaskSucceeded}
	if err != nil {
		res.Status = types.TaskFailed
		res.Error = err.Error()
		res.Category = Classify(err)
	}
	run.record(res)
	r.metrics.RecordTask(ctx, pipeline, t.Name, res.Status, end.Sub(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(res.Category))
		logger.Error("task failed", "task", t.Name, "category", res.Category, "error", err)
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	logger.Info("task succeeded", "task", t.Name, "elapsed", end.Sub(start))
	return nil
}

func (r *Runner) cleanup(ctx context.Context, logger *slog.Logger, g *Graph, run *Run, completed []string) {
	cctx := context.WithoutCancel(ctx)
	for i := len(completed) - 1; i >= 0; i-- {
		t := g.tasks[completed[i]]
		if t.Cleanup == nil {
			continue
		}
		if err := t.Cleanup(cctx, run); err != nil {
			logger.Error("task cleanup failed", "task", t.Name, "error", err)
			continue
		}
		logger.Info("task cleanup done", "task", t.Name)
	}
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, run *Run, runErr error) {
	if r.notifier == nil {
		return
	}
	evt := types.LifecycleEvent{
		Pipeline:  run.Pipeline,
		RunID:     run.ID,
		Status:    run.Status(),
		Tasks:     run.Results(),
		Timestamp: r.now(),
	}
	if runErr != nil {
		evt.Error = runErr.Error()
	}
	if err := r.notifier.Publish(context.WithoutCancel(ctx), evt); err != nil {
		logger.Warn("lifecycle event not published", "error", err)
	}
}
