// shared-publications Lambda lists the publications two researchers share.
package main

import (
	"context"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	intlambda "github.com/ubc-cic/expertise-dashboard/internal/lambda"
	"github.com/ubc-cic/expertise-dashboard/internal/sharedpubs"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

type config struct {
	intlambda.Base
	SecretID string `env:"DB_SECRET_ID" envDefault:"expertiseDashboard/credentials/dbCredentials"`
}

var (
	service     *sharedpubs.Service
	serviceOnce sync.Once
	serviceErr  error
)

func getService() (*sharedpubs.Service, error) {
	serviceOnce.Do(func() {
		cfg, err := intlambda.ParseEnv[config]()
		if err != nil {
			serviceErr = err
			return
		}
		d, err := intlambda.Init(context.Background(), cfg.Base)
		if err != nil {
			serviceErr = err
			return
		}
		service = sharedpubs.NewService(secretsmanager.NewFromConfig(d.AWS),
			sharedpubs.WithSecretID(cfg.SecretID),
			sharedpubs.WithLogger(d.Logger),
		)
	})
	return service, serviceErr
}

func handler(ctx context.Context, req types.SharedPublicationsRequest) ([]types.Publication, error) {
	s, err := getService()
	if err != nil {
		return nil, err
	}
	return s.Handle(ctx, req)
}

func main() {
	awslambda.Start(handler)
}
