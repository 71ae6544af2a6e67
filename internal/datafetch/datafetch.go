// Package datafetch declares the researcher and publication data-fetch
// workflow as a pipeline graph. Each task invokes the deployed fetch
// function by name; the fetch logic itself lives in those functions.
package datafetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ubc-cic/expertise-dashboard/internal/pipeline"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// PipelineName identifies runs of this workflow.
const PipelineName = "data-fetch"

// Task names.
const (
	TaskFetchResearchers  = "fetch-researchers"
	TaskFetchElsevier     = "fetch-elsevier"
	TaskFetchOrcid        = "fetch-orcid"
	TaskFetchPublications = "fetch-publications"
)

// Run outputs.
var (
	Indices      = pipeline.NewKey[[]json.RawMessage]("indices")
	Researchers  = pipeline.NewKey[[]json.RawMessage]("researchers")
	Elsevier     = pipeline.NewKey[json.RawMessage]("elsevier")
	OrcidItems   = pipeline.NewKey[[]json.RawMessage]("orcid-items")
	Publications = pipeline.NewKey[[]json.RawMessage]("publications")
)

// Invoker calls a function synchronously.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload, out any) error
}

// Functions names the deployed fetch functions.
type Functions struct {
	Researchers  string `koanf:"researchers" env:"RESEARCHER_FETCH_FUNCTION" validate:"required"`
	Elsevier     string `koanf:"elsevier" env:"ELSEVIER_FETCH_FUNCTION" validate:"required"`
	Orcid        string `koanf:"orcid" env:"ORCID_FETCH_FUNCTION" validate:"required"`
	Publications string `koanf:"publications" env:"PUBLICATION_FETCH_FUNCTION" validate:"required"`
}

// Config configures the workflow.
type Config struct {
	Functions         Functions          `koanf:"functions"`
	ResearcherFanOut  types.FanOutConfig `koanf:"researcher_fan_out"`
	PublicationFanOut types.FanOutConfig `koanf:"publication_fan_out"`
}

// DefaultConfig returns the fan-out bounds the managed state machine uses.
func DefaultConfig() Config {
	return Config{
		ResearcherFanOut:  types.FanOutConfig{MaxConcurrency: 40},
		PublicationFanOut: types.FanOutConfig{MaxConcurrency: 5},
	}
}

// Input starts a run.
type Input struct {
	Indices []json.RawMessage `json:"indices"`
}

// Seed stores in on a run before its first task.
func Seed(in Input) func(*pipeline.Run) {
	return func(r *pipeline.Run) { pipeline.Set(r, Indices, in.Indices) }
}

// NewGraph builds the fixed task graph:
// fetch-researchers (fan-out over indices) -> fetch-elsevier -> fetch-orcid
// -> fetch-publications (fan-out over orcid's output).
func NewGraph(cfg Config, inv Invoker) *pipeline.Graph {
	g := pipeline.NewGraph(PipelineName)

	g.MustAdd(pipeline.Task{
		Name:        TaskFetchResearchers,
		Description: fmt.Sprintf("invoke %s once per index, at most %d at a time", cfg.Functions.Researchers, cfg.ResearcherFanOut.MaxConcurrency),
		Run: func(ctx context.Context, run *pipeline.Run) error {
			indices, err := pipeline.Get(run, Indices)
			if err != nil {
				return err
			}
			out, err := fanOut(ctx, inv, cfg.Functions.Researchers, cfg.ResearcherFanOut.MaxConcurrency, indices)
			if err != nil {
				return err
			}
			pipeline.Set(run, Researchers, out)
			return nil
		},
	})

	g.MustAdd(pipeline.Task{
		Name:        TaskFetchElsevier,
		Description: "invoke " + cfg.Functions.Elsevier,
		DependsOn:   []string{TaskFetchResearchers},
		Run: func(ctx context.Context, run *pipeline.Run) error {
			in, err := pipeline.Get(run, Researchers)
			if err != nil {
				return err
			}
			var out json.RawMessage
			if err := inv.Invoke(ctx, cfg.Functions.Elsevier, in, &out); err != nil {
				return err
			}
			pipeline.Set(run, Elsevier, out)
			return nil
		},
	})

	g.MustAdd(pipeline.Task{
		Name:        TaskFetchOrcid,
		Description: "invoke " + cfg.Functions.Orcid,
		DependsOn:   []string{TaskFetchElsevier},
		Run: func(ctx context.Context, run *pipeline.Run) error {
			in, err := pipeline.Get(run, Elsevier)
			if err != nil {
				return err
			}
			var out []json.RawMessage
			if err := inv.Invoke(ctx, cfg.Functions.Orcid, in, &out); err != nil {
				return err
			}
			pipeline.Set(run, OrcidItems, out)
			return nil
		},
	})

	g.MustAdd(pipeline.Task{
		Name:        TaskFetchPublications,
		Description: fmt.Sprintf("invoke %s once per orcid item, at most %d at a time", cfg.Functions.Publications, cfg.PublicationFanOut.MaxConcurrency),
		DependsOn:   []string{TaskFetchOrcid},
		Run: func(ctx context.Context, run *pipeline.Run) error {
			items, err := pipeline.Get(run, OrcidItems)
			if err != nil {
				return err
			}
			out, err := fanOut(ctx, inv, cfg.Functions.Publications, cfg.PublicationFanOut.MaxConcurrency, items)
			if err != nil {
				return err
			}
			pipeline.Set(run, Publications, out)
			return nil
		},
	})

	return g
}

func fanOut(ctx context.Context, inv Invoker, function string, limit int, items []json.RawMessage) ([]json.RawMessage, error) {
	return pipeline.FanOut(ctx, limit, items, func(ctx context.Context, _ int, item json.RawMessage) (json.RawMessage, error) {
		var out json.RawMessage
		if err := inv.Invoke(ctx, function, item, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}
