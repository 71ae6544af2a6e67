package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// NewBackendParamsStack publishes the Amplify environment name the front end
// build reads.
func NewBackendParamsStack(scope constructs.Construct, id string, cfg StackConfig, envName string) awscdk.Stack {
	stack := awscdk.NewStack(scope, &id, stackProps(cfg, cfg.Region))

	awsssm.NewStringParameter(stack, jsii.String("EnvName"), &awsssm.StringParameterProps{
		ParameterName: jsii.String(types.ParamEnvName),
		StringValue:   jsii.String(envName),
		Description:   jsii.String("Amplify backend environment name"),
	})

	return stack
}
