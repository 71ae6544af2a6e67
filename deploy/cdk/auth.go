package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// CloudfrontAuthStack holds the viewer-request authorizer.
type CloudfrontAuthStack struct {
	awscdk.Stack
	Authorizer awslambda.Function
}

// NewCloudfrontAuthStack deploys the edge authorizer to cfg.EdgeRegion.
// Edge functions carry no environment; the user pool is read from SSM.
func NewCloudfrontAuthStack(scope constructs.Construct, id string, cfg StackConfig) CloudfrontAuthStack {
	region := cfg.EdgeRegion
	if cfg.Region == "" {
		region = ""
	}
	stack := awscdk.NewStack(scope, &id, stackProps(cfg, region))

	role := awsiam.NewRole(stack, jsii.String("CognitoRole"), &awsiam.RoleProps{
		RoleName: jsii.String("CognitoRole"),
		AssumedBy: awsiam.NewCompositePrincipal(
			awsiam.NewServicePrincipal(jsii.String("lambda.amazonaws.com"), nil),
			awsiam.NewServicePrincipal(jsii.String("edgelambda.amazonaws.com"), nil),
		),
	})
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   &[]*string{jsii.String("cognito-identity:*")},
		Resources: &[]*string{jsii.String("*")},
	}))
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: &[]*string{
			jsii.String("logs:CreateLogGroup"),
			jsii.String("logs:CreateLogStream"),
			jsii.String("logs:PutLogEvents"),
		},
		Resources: &[]*string{jsii.String("arn:aws:logs:*:*:*")},
	}))
	// The pool is looked up in the region named by the request.
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   &[]*string{jsii.String("ssm:GetParameter")},
		Resources: &[]*string{jsii.String("arn:aws:ssm:*:*:parameter" + types.ParamUserPool)},
	}))

	fn := newGoFunction(stack, "CloudfrontAuth", cfg, goFunctionProps{
		Handler:      "edge-auth",
		FunctionName: cfg.name("cloudfrontAuth"),
		MemorySize:   128,
		Timeout:      awscdk.Duration_Seconds(jsii.Number(5)),
		Role:         role,
		Architecture: awslambda.Architecture_X86_64(),
	})

	awscdk.NewCfnOutput(stack, jsii.String("AuthorizerArn"), &awscdk.CfnOutputProps{
		Value: fn.FunctionArn(),
	})

	return CloudfrontAuthStack{Stack: stack, Authorizer: fn}
}
