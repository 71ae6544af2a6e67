package jobs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// GlueAPI is the subset of the AWS Glue client used by the jobs package.
type GlueAPI interface {
	StartJobRun(ctx context.Context, params *glue.StartJobRunInput, optFns ...func(*glue.Options)) (*glue.StartJobRunOutput, error)
	GetJobRun(ctx context.Context, params *glue.GetJobRunInput, optFns ...func(*glue.Options)) (*glue.GetJobRunOutput, error)
}

// StartGlue starts an AWS Glue job run and returns its run id.
func StartGlue(ctx context.Context, cfg types.GlueJobConfig, client GlueAPI) (string, error) {
	if cfg.JobName == "" {
		return "", fmt.Errorf("glue: jobName is required")
	}

	out, err := client.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName:   aws.String(cfg.JobName),
		Arguments: cfg.Arguments,
	})
	if err != nil {
		return "", fmt.Errorf("glue: StartJobRun %s failed: %w", cfg.JobName, err)
	}

	runID := aws.ToString(out.JobRunId)
	if runID == "" {
		return "", fmt.Errorf("glue: StartJobRun %s returned no run id", cfg.JobName)
	}
	return runID, nil
}

// CheckGlue checks the status of an AWS Glue job run.
func CheckGlue(ctx context.Context, client GlueAPI, jobName, runID string) (StatusResult, error) {
	out, err := client.GetJobRun(ctx, &glue.GetJobRunInput{
		JobName: aws.String(jobName),
		RunId:   aws.String(runID),
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("glue status: GetJobRun failed: %w", err)
	}
	if out.JobRun == nil {
		return StatusResult{}, fmt.Errorf("glue status: GetJobRun returned nil JobRun")
	}

	state := out.JobRun.JobRunState
	switch state {
	case gluetypes.JobRunStateSucceeded:
		return StatusResult{State: RunCheckSucceeded, Message: string(state)}, nil
	case gluetypes.JobRunStateTimeout:
		return StatusResult{State: RunCheckFailed, Message: string(state), FailureCategory: types.FailureTimeout}, nil
	case gluetypes.JobRunStateFailed, gluetypes.JobRunStateStopped, gluetypes.JobRunStateError:
		msg := string(state)
		if m := aws.ToString(out.JobRun.ErrorMessage); m != "" {
			msg += ": " + m
		}
		return StatusResult{State: RunCheckFailed, Message: msg, FailureCategory: types.FailureTransient}, nil
	default:
		return StatusResult{State: RunCheckRunning, Message: string(state)}, nil
	}
}
