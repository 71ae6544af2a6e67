// redeploy Lambda posts to an Amplify webhook so the front end is rebuilt.
package main

import (
	"context"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/ubc-cic/expertise-dashboard/internal/lambda"
	"github.com/ubc-cic/expertise-dashboard/internal/redeploy"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

var (
	client     *redeploy.Client
	clientOnce sync.Once
	clientErr  error
)

func getClient() (*redeploy.Client, error) {
	clientOnce.Do(func() {
		cfg, err := intlambda.ParseEnv[intlambda.Base]()
		if err != nil {
			clientErr = err
			return
		}
		d, err := intlambda.Init(context.Background(), cfg)
		if err != nil {
			clientErr = err
			return
		}
		client = redeploy.New(redeploy.WithLogger(d.Logger), redeploy.WithMetrics(d.Metrics))
	})
	return client, clientErr
}

func handler(ctx context.Context, req types.RedeployRequest) (types.RedeployResponse, error) {
	c, err := getClient()
	if err != nil {
		return types.RedeployResponse{}, err
	}
	return c.Trigger(ctx, req)
}

func main() {
	awslambda.Start(handler)
}
