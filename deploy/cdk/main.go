package main

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/ubc-cic/expertise-dashboard/internal/datafetch"
	"github.com/ubc-cic/expertise-dashboard/internal/graphpublish"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)
	cfg := ConfigFromEnv()

	envName := "dev"
	if v := os.Getenv("EXPERTISE_ENV_NAME"); v != "" {
		envName = v
	}

	NewBackendParamsStack(app, "BackendParamsStack", cfg, envName)
	auth := NewCloudfrontAuthStack(app, "CloudfrontAuthStack", cfg)
	NewDataFetchStack(app, "DataFetchStack", cfg, datafetch.DefaultConfig())
	NewGraphDataStack(app, "GraphDataStack", cfg, graphpublish.DefaultConfig(), auth)

	app.Synth(nil)
}
