package main

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfrontorigins"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsglue"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctionstasks"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/ubc-cic/expertise-dashboard/internal/graphpublish"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Glue python-shell job settings.
const (
	gluePythonVersion     = "3.9"
	glueVersion           = "3.0"
	glueMaxCapacity       = 1
	glueMaxConcurrentRuns = 7
	glueTimeoutMinutes    = 2880
)

// NewGraphDataStack deploys the graph bucket and CDN, the Glue jobs that
// build the graph, and the publish state machine that chains them.
func NewGraphDataStack(scope constructs.Construct, id string, cfg StackConfig, publish graphpublish.Config, auth CloudfrontAuthStack) awscdk.Stack {
	stack := awscdk.NewStack(scope, &id, stackProps(cfg, cfg.Region))

	bucket := awss3.NewBucket(stack, jsii.String("GraphBucket"), &awss3.BucketProps{
		BucketName:        jsii.String(cfg.GraphBucketName),
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		EnforceSSL:        jsii.Bool(true),
		RemovalPolicy:     removalPolicy(cfg.DestroyOnDelete),
		AutoDeleteObjects: jsii.Bool(cfg.DestroyOnDelete),
	})

	newGlueJobs(stack, cfg, publish)

	layoutFn := newGoFunction(stack, "CreateXYForGraph", cfg, goFunctionProps{
		Handler:      "graph-layout",
		FunctionName: cfg.name("createXYForGraph"),
		MemorySize:   512,
		Timeout:      awscdk.Duration_Minutes(jsii.Number(15)),
		Environment: map[string]*string{
			"GRAPH_BUCKET":      bucket.BucketName(),
			"LAYOUT_ITERATIONS": jsii.String(fmt.Sprint(publish.Layout.Iterations)),
			"LAYOUT_SEED":       jsii.String(fmt.Sprint(publish.Layout.Seed)),
		},
	})
	bucket.GrantReadWrite(layoutFn, nil)

	redeployFn := newGoFunction(stack, "RedeployAmplify", cfg, goFunctionProps{
		Handler:      "redeploy",
		FunctionName: cfg.name("redeployAmplify"),
		MemorySize:   512,
		Timeout:      awscdk.Duration_Seconds(jsii.Number(300)),
	})

	dist := newGraphDistribution(stack, cfg, bucket, auth)

	sm := newGraphStateMachine(stack, cfg, publish, layoutFn, redeployFn, dist)

	awsssm.NewStringParameter(stack, jsii.String("CloudfrontURL"), &awsssm.StringParameterProps{
		ParameterName: jsii.String(types.ParamCloudfrontURL),
		StringValue:   jsii.String("https://" + *dist.DistributionDomainName() + "/"),
	})

	awscdk.NewCfnOutput(stack, jsii.String("GraphBucketName"), &awscdk.CfnOutputProps{
		Value: bucket.BucketName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("DistributionId"), &awscdk.CfnOutputProps{
		Value: dist.DistributionId(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("StateMachineArn"), &awscdk.CfnOutputProps{
		Value: sm.StateMachineArn(),
	})

	return stack
}

func newGlueJobs(stack awscdk.Stack, cfg StackConfig, publish graphpublish.Config) {
	role := awsiam.NewRole(stack, jsii.String("GlueRole"), &awsiam.RoleProps{
		RoleName:    jsii.String("AWSGlueServiceRole-GraphData"),
		AssumedBy:   awsiam.NewServicePrincipal(jsii.String("glue.amazonaws.com"), nil),
		Description: jsii.String("Glue Service Role for Graph ETL"),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("service-role/AWSGlueServiceRole")),
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("SecretsManagerReadWrite")),
		},
	})
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: &[]*string{
			jsii.String("dms:StartReplicationTask"),
			jsii.String("dms:DescribeReplicationTasks"),
		},
		Resources: &[]*string{jsii.String("*")},
	}))

	scripts := awss3.Bucket_FromBucketName(stack, jsii.String("GlueScriptBucket"), jsii.String(cfg.GlueScriptBucket))
	scripts.GrantReadWrite(role, nil)

	args := map[string]interface{}{
		"--extra-py-files": fmt.Sprintf("s3://%[1]s/extra-python-libs/pyjarowinkler-1.8-py2.py3-none-any.whl,s3://%[1]s/extra-python-libs/custom_utils-0.1-py3-none-any.whl",
			cfg.GlueScriptBucket),
		"library-set":                 "analytics",
		"--DB_SECRET_NAME":            cfg.DBSecretName,
		"--FILE_PATH":                 "",
		"--EQUIVALENT":                "false",
		"--additional-python-modules": "psycopg2-binary",
	}
	if cfg.DMSTaskArn != "" {
		args["--DMS_TASK_ARN"] = cfg.DMSTaskArn
	}
	var connections *awsglue.CfnJob_ConnectionsListProperty
	if cfg.GlueConnection != "" {
		connections = &awsglue.CfnJob_ConnectionsListProperty{
			Connections: &[]*string{jsii.String(cfg.GlueConnection)},
		}
	}

	for _, job := range []struct{ id, name, script string }{
		{"CreateEdgesJob", publish.CreateEdgesJob.JobName, "createEdges"},
		{"CreateSimilarResearchersJob", publish.SimilarResearchersJob.JobName, "CreateSimilarResearchers"},
	} {
		j := awsglue.NewCfnJob(stack, jsii.String(job.id), &awsglue.CfnJobProps{
			Name: jsii.String(job.name),
			Role: role.RoleArn(),
			Command: &awsglue.CfnJob_JobCommandProperty{
				Name:           jsii.String("pythonshell"),
				PythonVersion:  jsii.String(gluePythonVersion),
				ScriptLocation: jsii.String(fmt.Sprintf("s3://%s/scripts/graph-etl/%s.py", cfg.GlueScriptBucket, job.script)),
			},
			ExecutionProperty: &awsglue.CfnJob_ExecutionPropertyProperty{
				MaxConcurrentRuns: jsii.Number(glueMaxConcurrentRuns),
			},
			Connections:      connections,
			MaxRetries:       jsii.Number(0),
			MaxCapacity:      jsii.Number(glueMaxCapacity),
			Timeout:          jsii.Number(glueTimeoutMinutes),
			GlueVersion:      jsii.String(glueVersion),
			DefaultArguments: args,
		})
		j.ApplyRemovalPolicy(awscdk.RemovalPolicy_DESTROY, nil)
	}
	role.ApplyRemovalPolicy(awscdk.RemovalPolicy_DESTROY)
}

func newGraphDistribution(stack awscdk.Stack, cfg StackConfig, bucket awss3.Bucket, auth CloudfrontAuthStack) awscloudfront.Distribution {
	cachePolicy := awscloudfront.NewCachePolicy(stack, jsii.String("GraphCachePolicy"), &awscloudfront.CachePolicyProps{
		CachePolicyName: jsii.String(cfg.name("GraphCachePolicy")),
		HeaderBehavior: awscloudfront.CacheHeaderBehavior_AllowList(
			jsii.String("Authorization"), jsii.String("clientId"), jsii.String("region")),
		EnableAcceptEncodingGzip:   jsii.Bool(true),
		EnableAcceptEncodingBrotli: jsii.Bool(true),
		MinTtl:                     awscdk.Duration_Seconds(jsii.Number(1)),
		MaxTtl:                     awscdk.Duration_Seconds(jsii.Number(31536000)),
		DefaultTtl:                 awscdk.Duration_Seconds(jsii.Number(86400)),
	})

	cors := awscloudfront.NewResponseHeadersPolicy(stack, jsii.String("GraphCORS"), &awscloudfront.ResponseHeadersPolicyProps{
		ResponseHeadersPolicyName: jsii.String(cfg.name("GraphCORSPolicy")),
		CorsBehavior: &awscloudfront.ResponseHeadersCorsBehavior{
			AccessControlAllowCredentials: jsii.Bool(false),
			AccessControlAllowHeaders:     jsii.Strings("Content-Type", "authorization", "clientid", "region"),
			AccessControlAllowMethods:     jsii.Strings("GET", "POST", "OPTIONS"),
			AccessControlAllowOrigins:     jsii.Strings("*"),
			OriginOverride:                jsii.Bool(true),
		},
	})

	behavior := &awscloudfront.BehaviorOptions{
		Origin:                awscloudfrontorigins.S3BucketOrigin_WithOriginAccessControl(bucket, nil),
		AllowedMethods:        awscloudfront.AllowedMethods_ALLOW_GET_HEAD_OPTIONS(),
		ViewerProtocolPolicy:  awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
		OriginRequestPolicy:   awscloudfront.OriginRequestPolicy_CORS_S3_ORIGIN(),
		CachePolicy:           cachePolicy,
		ResponseHeadersPolicy: cors,
	}
	if cfg.EdgeAuth && auth.Authorizer != nil {
		behavior.EdgeLambdas = &[]*awscloudfront.EdgeLambda{{
			EventType:       awscloudfront.LambdaEdgeEventType_VIEWER_REQUEST,
			FunctionVersion: auth.Authorizer.CurrentVersion(),
		}}
	}

	return awscloudfront.NewDistribution(stack, jsii.String("GraphDistribution"), &awscloudfront.DistributionProps{
		DefaultBehavior: behavior,
		Comment:         jsii.String("Expertise dashboard graph artifacts"),
	})
}

// newGraphStateMachine mirrors the in-process graph-publish chain. A failed
// redeploy still deletes the webhook before the execution fails.
func newGraphStateMachine(stack awscdk.Stack, cfg StackConfig, publish graphpublish.Config,
	layoutFn, redeployFn awslambda.IFunction, dist awscloudfront.Distribution) awsstepfunctions.StateMachine {
	discard := awsstepfunctions.JsonPath_DISCARD()

	glueStep := func(id, job string) awsstepfunctionstasks.GlueStartJobRun {
		return awsstepfunctionstasks.NewGlueStartJobRun(stack, jsii.String(id), &awsstepfunctionstasks.GlueStartJobRunProps{
			GlueJobName:        jsii.String(job),
			IntegrationPattern: awsstepfunctions.IntegrationPattern_RUN_JOB,
			ResultPath:         discard,
		})
	}
	createEdges := glueStep("createEdgesStep", publish.CreateEdgesJob.JobName)
	similar := glueStep("createSimilarResearchersStep", publish.SimilarResearchersJob.JobName)

	nodesFn := awslambda.Function_FromFunctionName(stack, jsii.String("NodesFunction"), jsii.String(cfg.NodesFunctionName))
	edgesFn := awslambda.Function_FromFunctionName(stack, jsii.String("EdgesFunction"), jsii.String(cfg.EdgesFunctionName))

	fetchNodes := awsstepfunctionstasks.NewLambdaInvoke(stack, jsii.String("fetchNodesStep"), &awsstepfunctionstasks.LambdaInvokeProps{
		LambdaFunction: nodesFn,
		Payload: awsstepfunctions.TaskInput_FromObject(&map[string]interface{}{
			"facultiesToFilterOn": jsii.Strings(),
			"keyword":             "",
			"stepFunctionCall":    true,
		}),
		PayloadResponseOnly: jsii.Bool(true),
		ResultPath:          jsii.String("$.nodes"),
	})
	fetchEdges := awsstepfunctionstasks.NewLambdaInvoke(stack, jsii.String("fetchEdgesStep"), &awsstepfunctionstasks.LambdaInvokeProps{
		LambdaFunction:      edgesFn,
		Payload:             awsstepfunctions.TaskInput_FromObject(&map[string]interface{}{}),
		PayloadResponseOnly: jsii.Bool(true),
		ResultPath:          jsii.String("$.edges"),
	})
	layout := awsstepfunctionstasks.NewLambdaInvoke(stack, jsii.String("createXYStep"), &awsstepfunctionstasks.LambdaInvokeProps{
		LambdaFunction:      layoutFn,
		PayloadResponseOnly: jsii.Bool(true),
		// The artifact summary replaces the node and edge payloads.
		ResultSelector: &map[string]interface{}{
			"artifacts": map[string]interface{}{
				"bucket": awsstepfunctions.JsonPath_StringAt(jsii.String("$.bucket")),
				"nodes":  awsstepfunctions.JsonPath_NumberAt(jsii.String("$.nodes")),
				"edges":  awsstepfunctions.JsonPath_NumberAt(jsii.String("$.edges")),
			},
		},
		ResultPath: jsii.String("$"),
	})

	paths := make([]*string, 0, len(publish.InvalidationPaths))
	for _, p := range publish.InvalidationPaths {
		paths = append(paths, jsii.String(p))
	}
	invalidate := awsstepfunctionstasks.NewCallAwsService(stack, jsii.String("invalidateCloudfront"), &awsstepfunctionstasks.CallAwsServiceProps{
		Service:      jsii.String("cloudfront"),
		Action:       jsii.String("createInvalidation"),
		IamResources: jsii.Strings("*"),
		IamAction:    jsii.String("cloudfront:CreateInvalidation"),
		Parameters: &map[string]interface{}{
			"DistributionId": dist.DistributionId(),
			"InvalidationBatch": map[string]interface{}{
				"CallerReference": awsstepfunctions.JsonPath_StringAt(jsii.String("$$.Execution.Id")),
				"Paths": map[string]interface{}{
					"Items":    &paths,
					"Quantity": jsii.Number(float64(len(paths))),
				},
			},
		},
		ResultPath: discard,
	})

	readParam := func(id, name, into string) awsstepfunctionstasks.CallAwsService {
		return awsstepfunctionstasks.NewCallAwsService(stack, jsii.String(id), &awsstepfunctionstasks.CallAwsServiceProps{
			Service:      jsii.String("ssm"),
			Action:       jsii.String("getParameter"),
			IamResources: jsii.Strings("*"),
			IamAction:    jsii.String("ssm:GetParameter"),
			Parameters:   &map[string]interface{}{"Name": name},
			ResultSelector: &map[string]interface{}{
				"value": awsstepfunctions.JsonPath_StringAt(jsii.String("$.Parameter.Value")),
			},
			ResultPath: jsii.String(into),
		})
	}
	readAppID := readParam("getAppIdStep", types.ParamAppID, "$.appId")
	readBranch := readParam("getBranchNameStep", types.ParamBranchName, "$.branchName")

	createWebhook := awsstepfunctionstasks.NewCallAwsService(stack, jsii.String("createWebhookStep"), &awsstepfunctionstasks.CallAwsServiceProps{
		Service:      jsii.String("amplify"),
		Action:       jsii.String("createWebhook"),
		IamResources: jsii.Strings("*"),
		IamAction:    jsii.String("amplify:CreateWebhook"),
		Parameters: &map[string]interface{}{
			"AppId":      awsstepfunctions.JsonPath_StringAt(jsii.String("$.appId.value")),
			"BranchName": awsstepfunctions.JsonPath_StringAt(jsii.String("$.branchName.value")),
		},
		ResultPath: jsii.String("$.hook"),
	})

	redeploy := awsstepfunctionstasks.NewLambdaInvoke(stack, jsii.String("redeployAmplifyStep"), &awsstepfunctionstasks.LambdaInvokeProps{
		LambdaFunction: redeployFn,
		Payload: awsstepfunctions.TaskInput_FromObject(&map[string]interface{}{
			"Webhook": map[string]interface{}{
				"WebhookUrl": awsstepfunctions.JsonPath_StringAt(jsii.String("$.hook.Webhook.WebhookUrl")),
				"WebhookId":  awsstepfunctions.JsonPath_StringAt(jsii.String("$.hook.Webhook.WebhookId")),
			},
		}),
		PayloadResponseOnly: jsii.Bool(true),
		ResultPath:          jsii.String("$.redeploy"),
	})

	deleteWebhook := func(id string) awsstepfunctionstasks.CallAwsService {
		return awsstepfunctionstasks.NewCallAwsService(stack, jsii.String(id), &awsstepfunctionstasks.CallAwsServiceProps{
			Service:      jsii.String("amplify"),
			Action:       jsii.String("deleteWebhook"),
			IamResources: jsii.Strings("*"),
			IamAction:    jsii.String("amplify:DeleteWebhook"),
			Parameters: &map[string]interface{}{
				"WebhookId": awsstepfunctions.JsonPath_StringAt(jsii.String("$.hook.Webhook.WebhookId")),
			},
			ResultPath: discard,
		})
	}

	failed := awsstepfunctions.NewFail(stack, jsii.String("redeployFailed"), &awsstepfunctions.FailProps{
		Error: jsii.String("RedeployFailed"),
		Cause: jsii.String("front-end redeploy failed; webhook deleted"),
	})
	redeploy.AddCatch(deleteWebhook("deleteWebhookOnFailure").Next(failed), &awsstepfunctions.CatchProps{
		ResultPath: jsii.String("$.error"),
	})

	definition := awsstepfunctions.Chain_Start(createEdges).
		Next(similar).
		Next(fetchNodes).
		Next(fetchEdges).
		Next(layout).
		Next(invalidate).
		Next(readAppID).
		Next(readBranch).
		Next(createWebhook).
		Next(redeploy).
		Next(deleteWebhook("deleteWebhookStep"))

	return awsstepfunctions.NewStateMachine(stack, jsii.String("GraphStateMachine"), &awsstepfunctions.StateMachineProps{
		StateMachineName: jsii.String(cfg.name("graphStepFunction")),
		DefinitionBody:   awsstepfunctions.DefinitionBody_FromChainable(definition),
		RemovalPolicy:    removalPolicy(cfg.DestroyOnDelete),
	})
}
