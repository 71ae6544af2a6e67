package graphpublish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/amplify"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// AppParameters identifies the Amplify branch to redeploy.
type AppParameters struct {
	AppID      string `json:"appId"`
	BranchName string `json:"branchName"`
}

// ReadAppParameters looks up the app id and branch name. Results are
// matched by parameter name, not by position.
func ReadAppParameters(ctx context.Context, client SSMAPI) (AppParameters, error) {
	out, err := client.GetParameters(ctx, &ssm.GetParametersInput{
		Names: []string{types.ParamBranchName, types.ParamAppID},
	})
	if err != nil {
		return AppParameters{}, fmt.Errorf("ssm: GetParameters failed: %w", err)
	}
	if len(out.InvalidParameters) > 0 {
		return AppParameters{}, fmt.Errorf("ssm: parameters not found: %v", out.InvalidParameters)
	}

	var p AppParameters
	for _, param := range out.Parameters {
		switch aws.ToString(param.Name) {
		case types.ParamAppID:
			p.AppID = aws.ToString(param.Value)
		case types.ParamBranchName:
			p.BranchName = aws.ToString(param.Value)
		}
	}
	if p.AppID == "" || p.BranchName == "" {
		return AppParameters{}, fmt.Errorf("ssm: %s and %s must both be set", types.ParamAppID, types.ParamBranchName)
	}
	return p, nil
}

// CreateWebhook creates a single-use deployment webhook for the branch.
func CreateWebhook(ctx context.Context, client AmplifyAPI, p AppParameters, description string) (types.Webhook, error) {
	in := &amplify.CreateWebhookInput{
		AppId:      aws.String(p.AppID),
		BranchName: aws.String(p.BranchName),
	}
	if description != "" {
		in.Description = aws.String(description)
	}
	out, err := client.CreateWebhook(ctx, in)
	if err != nil {
		return types.Webhook{}, fmt.Errorf("amplify: CreateWebhook failed: %w", err)
	}
	if out.Webhook == nil || aws.ToString(out.Webhook.WebhookId) == "" {
		return types.Webhook{}, fmt.Errorf("amplify: CreateWebhook returned no webhook")
	}
	return types.Webhook{
		WebhookURL: aws.ToString(out.Webhook.WebhookUrl),
		WebhookID:  aws.ToString(out.Webhook.WebhookId),
	}, nil
}

// DeleteWebhook removes a webhook by id.
func DeleteWebhook(ctx context.Context, client AmplifyAPI, id string) error {
	if id == "" {
		return fmt.Errorf("amplify: webhook id is required")
	}
	if _, err := client.DeleteWebhook(ctx, &amplify.DeleteWebhookInput{WebhookId: aws.String(id)}); err != nil {
		return fmt.Errorf("amplify: DeleteWebhook %s failed: %w", id, err)
	}
	return nil
}

// Invalidate creates a CloudFront invalidation and returns its id.
func Invalidate(ctx context.Context, client CloudFrontAPI, distributionID, callerReference string, paths []string) (string, error) {
	if distributionID == "" {
		return "", fmt.Errorf("cloudfront: distribution id is required")
	}
	out, err := client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(callerReference),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("cloudfront: CreateInvalidation failed: %w", err)
	}
	if out.Invalidation == nil {
		return "", nil
	}
	return aws.ToString(out.Invalidation.Id), nil
}

// DecodeNodes accepts either a bare array of nodes or an object with a
// "nodes" array, the two shapes the node function has returned.
func DecodeNodes(raw json.RawMessage) ([]types.Node, error) {
	var nodes []types.Node
	if err := json.Unmarshal(raw, &nodes); err == nil {
		return nodes, nil
	}
	var wrapped struct {
		Nodes []types.Node `json:"nodes"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding nodes: %w", err)
	}
	return wrapped.Nodes, nil
}

// DecodeEdges is DecodeNodes for edges.
func DecodeEdges(raw json.RawMessage) ([]types.Edge, error) {
	var edges []types.Edge
	if err := json.Unmarshal(raw, &edges); err == nil {
		return edges, nil
	}
	var wrapped struct {
		Edges []types.Edge `json:"edges"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding edges: %w", err)
	}
	return wrapped.Edges, nil
}
