package main

import (
	"path/filepath"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctionstasks"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/ubc-cic/expertise-dashboard/internal/datafetch"
)

// NewDataFetchStack deploys the four fetch functions and the state machine
// that fans out over them.
func NewDataFetchStack(scope constructs.Construct, id string, cfg StackConfig, fetch datafetch.Config) awscdk.Stack {
	stack := awscdk.NewStack(scope, &id, stackProps(cfg, cfg.Region))

	ssmRead := awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AmazonSSMReadOnlyAccess"))
	makeFn := func(name string) awslambda.Function {
		fn := awslambda.NewFunction(stack, jsii.String(name), &awslambda.FunctionProps{
			FunctionName: jsii.String(cfg.name(name)),
			Runtime:      awslambda.Runtime_PYTHON_3_12(),
			Handler:      jsii.String(name + ".lambda_handler"),
			Code:         awslambda.Code_FromAsset(jsii.String(filepath.Join(cfg.FetchCodeDir, name)), nil),
			MemorySize:   jsii.Number(512),
			Timeout:      awscdk.Duration_Minutes(jsii.Number(15)),
			LogRetention: logRetentionDays(cfg.LogRetentionDays),
		})
		fn.Role().AddManagedPolicy(ssmRead)
		return fn
	}

	researcherFetch := makeFn("researcherFetch")
	researcherFetch.Role().AddManagedPolicy(awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AmazonS3FullAccess")))
	elsevierFetch := makeFn("elsevierFetch")
	orcidFetch := makeFn("orcidFetch")
	publicationFetch := makeFn("publicationFetch")

	invoke := func(id string, fn awslambda.Function) awsstepfunctionstasks.LambdaInvoke {
		return awsstepfunctionstasks.NewLambdaInvoke(stack, jsii.String(id), &awsstepfunctionstasks.LambdaInvokeProps{
			LambdaFunction: fn,
			OutputPath:     jsii.String("$.Payload"),
		})
	}

	researcherMap := awsstepfunctions.NewMap(stack, jsii.String("Researcher Map"), &awsstepfunctions.MapProps{
		MaxConcurrency: jsii.Number(float64(fetch.ResearcherFanOut.MaxConcurrency)),
		ItemsPath:      jsii.String("$.indices"),
	})
	researcherMap.ItemProcessor(invoke("Fetch Researchers", researcherFetch), nil)

	publicationMap := awsstepfunctions.NewMap(stack, jsii.String("Publication Map"), &awsstepfunctions.MapProps{
		MaxConcurrency: jsii.Number(float64(fetch.PublicationFanOut.MaxConcurrency)),
		ItemsPath:      jsii.String("$"),
	})
	publicationMap.ItemProcessor(invoke("Fetch Publications", publicationFetch), nil)

	definition := awsstepfunctions.Chain_Start(researcherMap).
		Next(invoke("Fetch Elsevier Data", elsevierFetch)).
		Next(invoke("Fetch Orcid Data", orcidFetch)).
		Next(publicationMap)

	sm := awsstepfunctions.NewStateMachine(stack, jsii.String("StateMachine"), &awsstepfunctions.StateMachineProps{
		StateMachineName: jsii.String(cfg.name("dataFetch")),
		DefinitionBody:   awsstepfunctions.DefinitionBody_FromChainable(definition),
		RemovalPolicy:    removalPolicy(cfg.DestroyOnDelete),
	})

	awscdk.NewCfnOutput(stack, jsii.String("StateMachineArn"), &awscdk.CfnOutputProps{
		Value: sm.StateMachineArn(),
	})

	return stack
}
