// Package types defines the public domain types for the research expertise portal.
package types

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

// RunStatus values represent the lifecycle states of a pipeline run.
const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// TaskStatus represents the outcome of a single pipeline task.
type TaskStatus string

// TaskStatus values enumerate the possible task outcomes.
const (
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
	TaskSkipped   TaskStatus = "SKIPPED"
)

// FailureCategory classifies why a task or outbound call failed.
type FailureCategory string

// FailureCategory values classify failures for logging and alerting.
const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
)

// AuthDecision is the outcome of an edge authorization check.
type AuthDecision string

// AuthDecision values enumerate the edge auth outcomes.
const (
	AuthPreflight      AuthDecision = "preflight"
	AuthAllowed        AuthDecision = "allowed"
	AuthMissingHeaders AuthDecision = "missing_headers"
	AuthPoolError      AuthDecision = "pool_error"
	AuthDenied         AuthDecision = "denied"
)

// SearchContext selects which result kinds a portal search covers.
type SearchContext string

// SearchContext values mirror the portal's search tabs.
const (
	SearchEverything   SearchContext = "Everything"
	SearchResearchers  SearchContext = "Researchers"
	SearchPublications SearchContext = "Publications"
	SearchGrants       SearchContext = "Grants"
	SearchPatents      SearchContext = "Patents"
)

// Valid reports whether c is a known search context.
func (c SearchContext) Valid() bool {
	switch c {
	case SearchEverything, SearchResearchers, SearchPublications, SearchGrants, SearchPatents:
		return true
	}
	return false
}
