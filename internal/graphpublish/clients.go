package graphpublish

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/amplify"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ubc-cic/expertise-dashboard/internal/jobs"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// GlueRunner runs a Glue job to completion.
type GlueRunner interface {
	RunGlue(ctx context.Context, cfg types.GlueJobConfig) (jobs.StatusResult, error)
}

// Invoker calls a function synchronously.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload, out any) error
}

// S3API is the subset of the S3 client used to publish artifacts.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CloudFrontAPI is the subset of the CloudFront client used for invalidation.
type CloudFrontAPI interface {
	CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// SSMAPI is the subset of the SSM client used to read app parameters.
type SSMAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// AmplifyAPI is the subset of the Amplify client used to manage webhooks.
type AmplifyAPI interface {
	CreateWebhook(ctx context.Context, params *amplify.CreateWebhookInput, optFns ...func(*amplify.Options)) (*amplify.CreateWebhookOutput, error)
	DeleteWebhook(ctx context.Context, params *amplify.DeleteWebhookInput, optFns ...func(*amplify.Options)) (*amplify.DeleteWebhookOutput, error)
}

// Redeployer fires a deployment webhook.
type Redeployer interface {
	Trigger(ctx context.Context, in types.RedeployRequest) (types.RedeployResponse, error)
}

// Deps are the collaborators the publish tasks call.
type Deps struct {
	Glue       GlueRunner
	Functions  Invoker
	S3         S3API
	CloudFront CloudFrontAPI
	SSM        SSMAPI
	Amplify    AmplifyAPI
	Redeploy   Redeployer
}
