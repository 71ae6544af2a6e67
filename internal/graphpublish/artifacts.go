package graphpublish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Artifacts records where a run wrote the graph.
type Artifacts struct {
	Bucket   string `json:"bucket"`
	NodesKey string `json:"nodesKey"`
	EdgesKey string `json:"edgesKey"`
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
}

// WriteArtifacts replaces nodes.json and edges.json in bucket.
func WriteArtifacts(ctx context.Context, client S3API, bucket string, nodes []types.Node, edges []types.Edge) (Artifacts, error) {
	if bucket == "" {
		return Artifacts{}, fmt.Errorf("graph bucket is required")
	}
	if nodes == nil {
		nodes = []types.Node{}
	}
	if edges == nil {
		edges = []types.Edge{}
	}
	if err := putJSON(ctx, client, bucket, types.NodesObjectKey, nodes); err != nil {
		return Artifacts{}, err
	}
	if err := putJSON(ctx, client, bucket, types.EdgesObjectKey, edges); err != nil {
		return Artifacts{}, err
	}
	return Artifacts{
		Bucket:   bucket,
		NodesKey: types.NodesObjectKey,
		EdgesKey: types.EdgesObjectKey,
		Nodes:    len(nodes),
		Edges:    len(edges),
	}, nil
}

func putJSON(ctx context.Context, client S3API, bucket, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3: PutObject %s/%s failed: %w", bucket, key, err)
	}
	return nil
}
