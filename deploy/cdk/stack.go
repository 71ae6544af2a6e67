package main

import (
	"path/filepath"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// goFunctionProps describes one of the Go handlers under cmd/lambda.
type goFunctionProps struct {
	Handler      string
	FunctionName string
	MemorySize   float64
	Timeout      awscdk.Duration
	Environment  map[string]*string
	Role         awsiam.IRole
	Architecture awslambda.Architecture
}

// newGoFunction packages cmd/lambda/<Handler>. With cfg.Bundle the binary is
// compiled at synth time, otherwise LambdaDistDir/<Handler>/bootstrap is used.
func newGoFunction(scope constructs.Construct, id string, cfg StackConfig, p goFunctionProps) awslambda.Function {
	arch := p.Architecture
	if arch == nil {
		arch = awslambda.Architecture_ARM_64()
	}
	var env *map[string]*string
	if len(p.Environment) > 0 {
		env = &p.Environment
	}

	if cfg.Bundle {
		return awscdklambdagoalpha.NewGoFunction(scope, jsii.String(id), &awscdklambdagoalpha.GoFunctionProps{
			Entry:        jsii.String(filepath.Join(cfg.SourceDir, "cmd", "lambda", p.Handler)),
			ModuleDir:    jsii.String(filepath.Join(cfg.SourceDir, "go.mod")),
			FunctionName: jsii.String(p.FunctionName),
			Architecture: arch,
			MemorySize:   jsii.Number(p.MemorySize),
			Timeout:      p.Timeout,
			Environment:  env,
			Role:         p.Role,
			LogRetention: logRetentionDays(cfg.LogRetentionDays),
			Bundling: &awscdklambdagoalpha.BundlingOptions{
				GoBuildFlags: &[]*string{
					jsii.String(`-ldflags "-s -w"`),
				},
			},
		})
	}

	return awslambda.NewFunction(scope, jsii.String(id), &awslambda.FunctionProps{
		FunctionName: jsii.String(p.FunctionName),
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String(filepath.Join(cfg.LambdaDistDir, p.Handler)), nil),
		Architecture: arch,
		MemorySize:   jsii.Number(p.MemorySize),
		Timeout:      p.Timeout,
		Environment:  env,
		Role:         p.Role,
		LogRetention: logRetentionDays(cfg.LogRetentionDays),
	})
}

func stackProps(cfg StackConfig, region string) *awscdk.StackProps {
	props := &awscdk.StackProps{}
	if region != "" {
		props.Env = &awscdk.Environment{
			Account: jsii.String(cfg.Account),
			Region:  jsii.String(region),
		}
		props.CrossRegionReferences = jsii.Bool(cfg.Region != "" && cfg.Region != cfg.EdgeRegion)
	}
	return props
}

func removalPolicy(destroy bool) awscdk.RemovalPolicy {
	if destroy {
		return awscdk.RemovalPolicy_DESTROY
	}
	return awscdk.RemovalPolicy_RETAIN
}

func logRetentionDays(days float64) awslogs.RetentionDays {
	switch days {
	case 1:
		return awslogs.RetentionDays_ONE_DAY
	case 3:
		return awslogs.RetentionDays_THREE_DAYS
	case 5:
		return awslogs.RetentionDays_FIVE_DAYS
	case 7:
		return awslogs.RetentionDays_ONE_WEEK
	case 14:
		return awslogs.RetentionDays_TWO_WEEKS
	case 30:
		return awslogs.RetentionDays_ONE_MONTH
	case 60:
		return awslogs.RetentionDays_TWO_MONTHS
	case 90:
		return awslogs.RetentionDays_THREE_MONTHS
	case 365:
		return awslogs.RetentionDays_ONE_YEAR
	default:
		return awslogs.RetentionDays_ONE_WEEK
	}
}
