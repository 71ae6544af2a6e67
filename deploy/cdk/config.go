package main

import (
	"os"
	"strconv"
)

// StackConfig holds configuration for the expertise dashboard stacks.
type StackConfig struct {
	Prefix           string
	LambdaDistDir    string
	FetchCodeDir     string
	LogRetentionDays float64
	DestroyOnDelete  bool

	// Bundle builds the Go functions from source with awscdklambdagoalpha
	// instead of packaging the prebuilt bootstrap binaries in LambdaDistDir.
	Bundle    bool
	SourceDir string

	// Region the data stacks deploy to. The authorizer stack always deploys
	// to EdgeRegion. Empty leaves the stacks environment-agnostic.
	Account    string
	Region     string
	EdgeRegion string
	// EdgeAuth associates the authorizer with the distribution as its
	// viewer-request function. Off by default: CloudFront only accepts
	// Node.js and Python runtimes for edge functions.
	EdgeAuth bool

	GraphBucketName   string
	GlueScriptBucket  string
	GlueConnection    string
	DBSecretName      string
	DMSTaskArn        string
	NodesFunctionName string
	EdgesFunctionName string
}

// DefaultConfig returns a StackConfig with the deployed names.
func DefaultConfig() StackConfig {
	return StackConfig{
		Prefix:            "expertiseDashboard",
		LambdaDistDir:     "../dist/lambda",
		FetchCodeDir:      "../dist/fetch",
		LogRetentionDays:  7,
		SourceDir:         "../..",
		EdgeRegion:        "us-east-1",
		GraphBucketName:   "expertise-dashboard-graph-bucket",
		GlueScriptBucket:  "expertise-dashboard-glue-scripts",
		DBSecretName:      "expertiseDashboard/credentials/dbCredentials",
		NodesFunctionName: "expertiseDashboard-getResearcherNodes",
		EdgesFunctionName: "expertiseDashboard-getEdges",
	}
}

// ConfigFromEnv applies EXPERTISE_* overrides to DefaultConfig.
func ConfigFromEnv() StackConfig {
	cfg := DefaultConfig()
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
			*dst = v
		}
	}

	str("EXPERTISE_PREFIX", &cfg.Prefix)
	str("EXPERTISE_LAMBDA_DIST_DIR", &cfg.LambdaDistDir)
	str("EXPERTISE_FETCH_CODE_DIR", &cfg.FetchCodeDir)
	str("EXPERTISE_SOURCE_DIR", &cfg.SourceDir)
	str("EXPERTISE_GRAPH_BUCKET", &cfg.GraphBucketName)
	str("EXPERTISE_GLUE_SCRIPT_BUCKET", &cfg.GlueScriptBucket)
	str("EXPERTISE_GLUE_CONNECTION", &cfg.GlueConnection)
	str("EXPERTISE_DB_SECRET_NAME", &cfg.DBSecretName)
	str("EXPERTISE_DMS_TASK_ARN", &cfg.DMSTaskArn)
	str("EXPERTISE_NODES_FUNCTION", &cfg.NodesFunctionName)
	str("EXPERTISE_EDGES_FUNCTION", &cfg.EdgesFunctionName)
	str("EXPERTISE_EDGE_REGION", &cfg.EdgeRegion)
	str("CDK_DEFAULT_ACCOUNT", &cfg.Account)
	str("CDK_DEFAULT_REGION", &cfg.Region)
	boolean("EXPERTISE_BUNDLE", &cfg.Bundle)
	boolean("EXPERTISE_EDGE_AUTH", &cfg.EdgeAuth)
	boolean("EXPERTISE_DESTROY_ON_DELETE", &cfg.DestroyOnDelete)
	if v, err := strconv.ParseFloat(os.Getenv("EXPERTISE_LOG_RETENTION_DAYS"), 64); err == nil {
		cfg.LogRetentionDays = v
	}
	return cfg
}

func (c StackConfig) name(s string) string {
	return c.Prefix + "-" + s
}
