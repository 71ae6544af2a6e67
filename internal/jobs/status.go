// Package jobs starts and tracks the managed AWS work the pipelines
// delegate to: Glue ETL job runs, Step Functions executions and Lambda
// function invocations.
package jobs

import "github.com/ubc-cic/expertise-dashboard/pkg/types"

// RunCheckState represents the normalized outcome of a run status check.
type RunCheckState string

const (
	RunCheckRunning   RunCheckState = "running"
	RunCheckSucceeded RunCheckState = "succeeded"
	RunCheckFailed    RunCheckState = "failed"
)

// StatusResult is the normalized result from checking a managed run.
type StatusResult struct {
	State           RunCheckState
	Message         string                // original provider state for logging
	FailureCategory types.FailureCategory // classification for retry decisions
}

// Terminal reports whether the run has finished.
func (s StatusResult) Terminal() bool {
	return s.State == RunCheckSucceeded || s.State == RunCheckFailed
}
