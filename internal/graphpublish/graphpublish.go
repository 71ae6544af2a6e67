// Package graphpublish declares the collaboration-graph publish workflow:
// rebuild the graph with Glue, lay it out, publish it behind the CDN and
// trigger a front-end redeploy through a single-use webhook.
package graphpublish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ubc-cic/expertise-dashboard/internal/layout"
	"github.com/ubc-cic/expertise-dashboard/internal/pipeline"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// PipelineName identifies runs of this workflow.
const PipelineName = "graph-publish"

// Task names, in execution order.
const (
	TaskCreateEdges        = "create-edges"
	TaskSimilarResearchers = "create-similar-researchers"
	TaskFetchNodes         = "fetch-nodes"
	TaskFetchEdges         = "fetch-edges"
	TaskLayout             = "layout"
	TaskInvalidate         = "invalidate-cdn"
	TaskReadParameters     = "read-parameters"
	TaskCreateWebhook      = "create-webhook"
	TaskRedeploy           = "redeploy"
	TaskDeleteWebhook      = "delete-webhook"
)

// Run outputs.
var (
	Nodes        = pipeline.NewKey[[]types.Node]("nodes")
	Edges        = pipeline.NewKey[[]types.Edge]("edges")
	Published    = pipeline.NewKey[Artifacts]("artifacts")
	Invalidation = pipeline.NewKey[string]("invalidation-id")
	Parameters   = pipeline.NewKey[AppParameters]("app-parameters")
	Hook         = pipeline.NewKey[types.Webhook]("webhook")
	Deployment   = pipeline.NewKey[types.RedeployResponse]("redeploy")
)

// NodesRequest is the payload sent to the node function.
type NodesRequest struct {
	FacultiesToFilterOn []string `json:"facultiesToFilterOn"`
	Keyword             string   `json:"keyword"`
	StepFunctionCall    bool     `json:"stepFunctionCall"`
}

// Config configures the workflow.
type Config struct {
	CreateEdgesJob        types.GlueJobConfig `koanf:"create_edges_job"`
	SimilarResearchersJob types.GlueJobConfig `koanf:"similar_researchers_job"`
	NodesFunction         string              `koanf:"nodes_function" validate:"required"`
	EdgesFunction         string              `koanf:"edges_function" validate:"required"`
	GraphBucket           string              `koanf:"graph_bucket" validate:"required"`
	DistributionID        string              `koanf:"distribution_id" validate:"required"`
	InvalidationPaths     []string            `koanf:"invalidation_paths"`
	Layout                layout.Options      `koanf:"layout"`
}

// DefaultConfig returns the job names and settings of the deployed stack.
func DefaultConfig() Config {
	return Config{
		CreateEdgesJob:        types.GlueJobConfig{JobName: "expertiseDashboard-createEdges"},
		SimilarResearchersJob: types.GlueJobConfig{JobName: "expertiseDashboard-CreateSimilarResearchers"},
		InvalidationPaths:     []string{"/*"},
		Layout:                layout.DefaultOptions(),
	}
}

// NewGraph builds the strictly sequential publish chain. The webhook is
// deleted by the delete-webhook task on success, or by create-webhook's
// cleanup if any later task fails.
func NewGraph(cfg Config, deps Deps) *pipeline.Graph {
	if len(cfg.InvalidationPaths) == 0 {
		cfg.InvalidationPaths = []string{"/*"}
	}
	g := pipeline.NewGraph(PipelineName)

	chain := func(t pipeline.Task, after string) {
		if after != "" {
			t.DependsOn = []string{after}
		}
		g.MustAdd(t)
	}

	chain(pipeline.Task{
		Name:        TaskCreateEdges,
		Description: "run Glue job " + cfg.CreateEdgesJob.JobName,
		Run: func(ctx context.Context, _ *pipeline.Run) error {
			_, err := deps.Glue.RunGlue(ctx, cfg.CreateEdgesJob)
			return err
		},
	}, "")

	chain(pipeline.Task{
		Name:        TaskSimilarResearchers,
		Description: "run Glue job " + cfg.SimilarResearchersJob.JobName,
		Run: func(ctx context.Context, _ *pipeline.Run) error {
			_, err := deps.Glue.RunGlue(ctx, cfg.SimilarResearchersJob)
			return err
		},
	}, TaskCreateEdges)

	chain(pipeline.Task{
		Name:        TaskFetchNodes,
		Description: "invoke " + cfg.NodesFunction + " for the unfiltered node set",
		Run: func(ctx context.Context, run *pipeline.Run) error {
			var raw json.RawMessage
			req := NodesRequest{FacultiesToFilterOn: []string{}, Keyword: "", StepFunctionCall: true}
			if err := deps.Functions.Invoke(ctx, cfg.NodesFunction, req, &raw); err != nil {
				return err
			}
			nodes, err := DecodeNodes(raw)
			if err != nil {
				return pipeline.Permanent(err)
			}
			pipeline.Set(run, Nodes, nodes)
			return nil
		},
	}, TaskSimilarResearchers)

	chain(pipeline.Task{
		Name:        TaskFetchEdges,
		Description: "invoke " + cfg.EdgesFunction,
		Run: func(ctx context.Context, run *pipeline.Run) error {
			var raw json.RawMessage
			if err := deps.Functions.Invoke(ctx, cfg.EdgesFunction, struct{}{}, &raw); err != nil {
				return err
			}
			edges, err := DecodeEdges(raw)
			if err != nil {
				return pipeline.Permanent(err)
			}
			pipeline.Set(run, Edges, edges)
			return nil
		},
	}, TaskFetchNodes)

	chain(pipeline.Task{
		Name:        TaskLayout,
		Description: "compute coordinates and write " + types.NodesObjectKey + " and " + types.EdgesObjectKey + " to " + cfg.GraphBucket,
		Run: func(ctx context.Context, run *pipeline.Run) error {
			nodes, err := pipeline.Get(run, Nodes)
			if err != nil {
				return err
			}
			edges, err := pipeline.Get(run, Edges)
			if err != nil {
				return err
			}
			placed, err := layout.Apply(nodes, edges, cfg.Layout)
			if err != nil {
				return pipeline.Permanent(err)
			}
			art, err := WriteArtifacts(ctx, deps.S3, cfg.GraphBucket, placed, edges)
			if err != nil {
				return err
			}
			pipeline.Set(run, Nodes, placed)
			pipeline.Set(run, Published, art)
			return nil
		},
	}, TaskFetchEdges)

	chain(pipeline.Task{
		Name:        TaskInvalidate,
		Description: "invalidate the CDN cache of distribution " + cfg.DistributionID,
		Run: func(ctx context.Context, run *pipeline.Run) error {
			id, err := Invalidate(ctx, deps.CloudFront, cfg.DistributionID, run.ID, cfg.InvalidationPaths)
			if err != nil {
				return err
			}
			pipeline.Set(run, Invalidation, id)
			return nil
		},
	}, TaskLayout)

	chain(pipeline.Task{
		Name:        TaskReadParameters,
		Description: "read " + types.ParamAppID + " and " + types.ParamBranchName,
		Run: func(ctx context.Context, run *pipeline.Run) error {
			p, err := ReadAppParameters(ctx, deps.SSM)
			if err != nil {
				return err
			}
			pipeline.Set(run, Parameters, p)
			return nil
		},
	}, TaskInvalidate)

	chain(pipeline.Task{
		Name:        TaskCreateWebhook,
		Description: "create a single-use Amplify webhook",
		Run: func(ctx context.Context, run *pipeline.Run) error {
			p, err := pipeline.Get(run, Parameters)
			if err != nil {
				return err
			}
			hook, err := CreateWebhook(ctx, deps.Amplify, p, fmt.Sprintf("%s %s", PipelineName, run.ID))
			if err != nil {
				return err
			}
			pipeline.Set(run, Hook, hook)
			return nil
		},
		Cleanup: func(ctx context.Context, run *pipeline.Run) error {
			hook, err := pipeline.Get(run, Hook)
			if err != nil {
				return err
			}
			return DeleteWebhook(ctx, deps.Amplify, hook.WebhookID)
		},
	}, TaskReadParameters)

	chain(pipeline.Task{
		Name:        TaskRedeploy,
		Description: "POST to the webhook",
		Run: func(ctx context.Context, run *pipeline.Run) error {
			hook, err := pipeline.Get(run, Hook)
			if err != nil {
				return err
			}
			resp, err := deps.Redeploy.Trigger(ctx, types.RedeployRequest{Webhook: hook})
			if err != nil {
				return err
			}
			pipeline.Set(run, Deployment, resp)
			return nil
		},
	}, TaskCreateWebhook)

	chain(pipeline.Task{
		Name:        TaskDeleteWebhook,
		Description: "delete the webhook",
		Run: func(ctx context.Context, run *pipeline.Run) error {
			resp, err := pipeline.Get(run, Deployment)
			if err != nil {
				return err
			}
			return DeleteWebhook(ctx, deps.Amplify, resp.ID)
		},
	}, TaskRedeploy)

	return g
}
