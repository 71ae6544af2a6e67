// edge-auth Lambda authorizes CloudFront viewer requests for graph artifacts.
//
// Lambda@Edge functions receive no environment variables, so a deployed
// function runs on the defaults: the user pool is looked up in the parameter
// store of the region each request declares.
package main

import (
	"context"
	"sync"
	"time"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ubc-cic/expertise-dashboard/internal/edgeauth"
	intlambda "github.com/ubc-cic/expertise-dashboard/internal/lambda"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

type config struct {
	intlambda.Base
	UserPoolID   string        `env:"USER_POOL_ID"`
	PoolCacheTTL time.Duration `env:"POOL_CACHE_TTL" envDefault:"0s" validate:"gte=0"`
	FallbackURI  string        `env:"FALLBACK_URI" envDefault:"/" validate:"startswith=/"`
}

var (
	authHandler *edgeauth.Handler
	handlerOnce sync.Once
	handlerErr  error
)

func getHandler() (*edgeauth.Handler, error) {
	handlerOnce.Do(func() {
		cfg, err := intlambda.ParseEnv[config]()
		if err != nil {
			handlerErr = err
			return
		}
		d, err := intlambda.Init(context.Background(), cfg.Base)
		if err != nil {
			handlerErr = err
			return
		}
		authHandler, handlerErr = newHandler(context.Background(), cfg, d, ssm.NewFromConfig(d.AWS))
	})
	return authHandler, handlerErr
}

// newHandler wires the pool resolver and token verifier. Keys are cached
// for the lifetime of ctx.
func newHandler(ctx context.Context, cfg config, d *intlambda.Deps, client edgeauth.SSMAPI) (*edgeauth.Handler, error) {
	var pools edgeauth.PoolResolver
	if cfg.UserPoolID != "" {
		static, err := edgeauth.NewStaticPool(cfg.UserPoolID)
		if err != nil {
			return nil, err
		}
		pools = static
	} else {
		pools = edgeauth.NewParameterPool(client, edgeauth.WithCacheTTL(cfg.PoolCacheTTL))
	}

	verifier := edgeauth.NewCognitoVerifier(edgeauth.NewJWKSCache(ctx))
	return edgeauth.New(edgeauth.Config{
		RequireRegion: cfg.UserPoolID == "",
		FallbackURI:   cfg.FallbackURI,
	}, pools, verifier,
		edgeauth.WithLogger(d.Logger),
		edgeauth.WithMetrics(d.Metrics),
	), nil
}

func handler(ctx context.Context, evt types.CloudFrontEvent) (types.EdgeResult, error) {
	h, err := getHandler()
	if err != nil {
		return types.EdgeResult{}, err
	}
	return h.Handle(ctx, evt)
}

func main() {
	awslambda.Start(handler)
}
