package types

import "time"

// Webhook is a single-use Amplify deployment trigger.
type Webhook struct {
	WebhookURL string `json:"WebhookUrl"`
	WebhookID  string `json:"WebhookId"`
}

// RedeployRequest is the input to the redeploy function.
type RedeployRequest struct {
	Webhook Webhook `json:"Webhook"`
}

// RedeployResponse is the output of the redeploy function. StatusCode is the
// decimal HTTP status returned by the webhook endpoint.
type RedeployResponse struct {
	ID         string `json:"id"`
	StatusCode string `json:"statusCode"`
}

// Session carries the identity headers a client presents to the graph CDN.
type Session struct {
	AccessToken string
	ClientID    string
	Region      string
}

// Node is a researcher vertex of the collaboration graph.
type Node struct {
	Key        string                 `json:"key"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Edge is a collaboration link between two researchers.
type Edge struct {
	Key        string                 `json:"key,omitempty"`
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Undirected bool                   `json:"undirected,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Publication is a publication shared by two researchers.
type Publication struct {
	Title         string   `json:"title"`
	Journal       string   `json:"journal"`
	YearPublished string   `json:"yearPublished"`
	Authors       []string `json:"authors"`
	Link          string   `json:"link"`
}

// SharedPublicationsRequest identifies the two researchers to intersect.
type SharedPublicationsRequest struct {
	ID1 string `json:"id1"`
	ID2 string `json:"id2"`
}

// TaskResult records how one pipeline task ended.
type TaskResult struct {
	Name       string          `json:"name" yaml:"name"`
	Status     TaskStatus      `json:"status" yaml:"status"`
	StartedAt  time.Time       `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt" yaml:"finishedAt"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	Category   FailureCategory `json:"failureCategory,omitempty" yaml:"failureCategory,omitempty"`
}

// LifecycleEvent is published when a pipeline run reaches a terminal state.
type LifecycleEvent struct {
	Pipeline  string       `json:"pipeline"`
	RunID     string       `json:"runId"`
	Status    RunStatus    `json:"status"`
	Tasks     []TaskResult `json:"tasks,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
