package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// DefaultPollInterval is how often Wait* methods check a managed run.
const DefaultPollInterval = 15 * time.Second

// RunFailedError is returned when a managed run ends in a failed state.
type RunFailedError struct {
	Kind   string
	ID     string
	Status StatusResult
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("%s run %s ended %s", e.Kind, e.ID, e.Status.Message)
}

// Runner holds injectable AWS SDK clients. Clients that were not injected
// are created from the default AWS config on first use.
type Runner struct {
	mu sync.Mutex

	region       string
	pollInterval time.Duration
	logger       *slog.Logger

	glueClient   GlueAPI
	sfnClient    SFNAPI
	lambdaClient LambdaAPI
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithGlueClient sets a custom Glue client (useful for testing).
func WithGlueClient(c GlueAPI) RunnerOption {
	return func(r *Runner) { r.glueClient = c }
}

// WithSFNClient sets a custom Step Functions client.
func WithSFNClient(c SFNAPI) RunnerOption {
	return func(r *Runner) { r.sfnClient = c }
}

// WithLambdaClient sets a custom Lambda client.
func WithLambdaClient(c LambdaAPI) RunnerOption {
	return func(r *Runner) { r.lambdaClient = c }
}

// WithRegion pins lazily created clients to a region.
func WithRegion(region string) RunnerOption {
	return func(r *Runner) { r.region = region }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.pollInterval = d }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunGlue starts a Glue job and blocks until the run reaches a terminal
// state or ctx is done.
func (r *Runner) RunGlue(ctx context.Context, cfg types.GlueJobConfig) (StatusResult, error) {
	client, err := r.getGlueClient(ctx)
	if err != nil {
		return StatusResult{}, err
	}
	runID, err := StartGlue(ctx, cfg, client)
	if err != nil {
		return StatusResult{}, err
	}
	r.logger.Info("glue job started", "job", cfg.JobName, "jobRunId", runID)

	st, err := r.poll(ctx, func(ctx context.Context) (StatusResult, error) {
		return CheckGlue(ctx, client, cfg.JobName, runID)
	})
	if err != nil {
		return st, fmt.Errorf("glue job %s: %w", cfg.JobName, err)
	}
	if st.State == RunCheckFailed {
		return st, &RunFailedError{Kind: "glue", ID: runID, Status: st}
	}
	r.logger.Info("glue job finished", "job", cfg.JobName, "jobRunId", runID, "state", st.Message)
	return st, nil
}

// StartPipeline starts a state machine execution and returns its ARN.
func (r *Runner) StartPipeline(ctx context.Context, stateMachineARN, name string, input any) (string, error) {
	client, err := r.getSFNClient(ctx)
	if err != nil {
		return "", err
	}
	return StartExecution(ctx, client, stateMachineARN, name, input)
}

// CheckPipeline returns the current status of an execution.
func (r *Runner) CheckPipeline(ctx context.Context, executionARN string) (StatusResult, error) {
	client, err := r.getSFNClient(ctx)
	if err != nil {
		return StatusResult{}, err
	}
	return CheckExecution(ctx, client, executionARN)
}

// WaitPipeline blocks until the execution reaches a terminal state.
func (r *Runner) WaitPipeline(ctx context.Context, executionARN string) (StatusResult, error) {
	st, err := r.poll(ctx, func(ctx context.Context) (StatusResult, error) {
		return r.CheckPipeline(ctx, executionARN)
	})
	if err != nil {
		return st, err
	}
	if st.State == RunCheckFailed {
		return st, &RunFailedError{Kind: "step-function", ID: executionARN, Status: st}
	}
	return st, nil
}

// Invoke calls a Lambda function synchronously; see the package-level Invoke.
func (r *Runner) Invoke(ctx context.Context, function string, payload, out any) error {
	client, err := r.getLambdaClient(ctx)
	if err != nil {
		return err
	}
	return Invoke(ctx, client, function, payload, out)
}

func (r *Runner) poll(ctx context.Context, check func(context.Context) (StatusResult, error)) (StatusResult, error) {
	for {
		st, err := check(ctx)
		if err != nil {
			return StatusResult{}, err
		}
		if st.Terminal() {
			return st, nil
		}

		t := time.NewTimer(r.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return st, ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Runner) getGlueClient(ctx context.Context) (GlueAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.glueClient != nil {
		return r.glueClient, nil
	}
	cfg, err := r.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	r.glueClient = glue.NewFromConfig(cfg)
	return r.glueClient, nil
}

func (r *Runner) getSFNClient(ctx context.Context) (SFNAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sfnClient != nil {
		return r.sfnClient, nil
	}
	cfg, err := r.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	r.sfnClient = sfn.NewFromConfig(cfg)
	return r.sfnClient, nil
}

func (r *Runner) getLambdaClient(ctx context.Context) (LambdaAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lambdaClient != nil {
		return r.lambdaClient, nil
	}
	cfg, err := r.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	r.lambdaClient = lambda.NewFromConfig(cfg)
	return r.lambdaClient, nil
}
