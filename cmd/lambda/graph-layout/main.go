// graph-layout Lambda places the collaboration graph and writes the
// nodes.json and edges.json artifacts to the graph bucket.
package main

import (
	"context"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ubc-cic/expertise-dashboard/internal/graphpublish"
	intlambda "github.com/ubc-cic/expertise-dashboard/internal/lambda"
	"github.com/ubc-cic/expertise-dashboard/internal/layout"
)

type config struct {
	intlambda.Base
	GraphBucket string `env:"GRAPH_BUCKET" validate:"required"`
	Layout      layout.Options
}

type app struct {
	cfg config
	d   *intlambda.Deps
	s3  graphpublish.S3API
}

var (
	deps     *app
	depsOnce sync.Once
	depsErr  error
)

func getApp() (*app, error) {
	depsOnce.Do(func() {
		cfg, err := intlambda.ParseEnv[config]()
		if err != nil {
			depsErr = err
			return
		}
		d, err := intlambda.Init(context.Background(), cfg.Base)
		if err != nil {
			depsErr = err
			return
		}
		deps = &app{cfg: cfg, d: d, s3: s3.NewFromConfig(d.AWS)}
	})
	return deps, depsErr
}

func handleLayout(ctx context.Context, a *app, req graphpublish.LayoutRequest) (graphpublish.Artifacts, error) {
	art, err := graphpublish.PublishLayout(ctx, a.s3, a.cfg.GraphBucket, req, a.cfg.Layout)
	if err != nil {
		a.d.Logger.Error("graph layout failed", "bucket", a.cfg.GraphBucket, "error", err)
		return graphpublish.Artifacts{}, err
	}
	a.d.Logger.Info("graph published", "bucket", art.Bucket, "nodes", art.Nodes, "edges", art.Edges)
	return art, nil
}

func handler(ctx context.Context, req graphpublish.LayoutRequest) (graphpublish.Artifacts, error) {
	a, err := getApp()
	if err != nil {
		return graphpublish.Artifacts{}, err
	}
	return handleLayout(ctx, a, req)
}

func main() {
	awslambda.Start(handler)
}
