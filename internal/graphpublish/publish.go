package graphpublish

import (
	"context"
	"encoding/json"

	"github.com/ubc-cic/expertise-dashboard/internal/layout"
)

// LayoutRequest is the input of the managed layout step: the raw outputs of
// the node and edge functions.
type LayoutRequest struct {
	Nodes json.RawMessage `json:"nodes"`
	Edges json.RawMessage `json:"edges"`
}

// PublishLayout decodes the function outputs, places the nodes and writes
// the graph artifacts to bucket.
func PublishLayout(ctx context.Context, client S3API, bucket string, req LayoutRequest, opts layout.Options) (Artifacts, error) {
	nodes, err := DecodeNodes(req.Nodes)
	if err != nil {
		return Artifacts{}, err
	}
	edges, err := DecodeEdges(req.Edges)
	if err != nil {
		return Artifacts{}, err
	}
	placed, err := layout.Apply(nodes, edges, opts)
	if err != nil {
		return Artifacts{}, err
	}
	return WriteArtifacts(ctx, client, bucket, placed, edges)
}
