package types

// Parameter store names shared by the stacks, the edge function and the
// graph-publish pipeline.
const (
	ParamEnvName       = "/amplify/appInfo/envName"
	ParamUserPool      = "/amplify/userPool"
	ParamBranchName    = "/amplify/branchName"
	ParamAppID         = "/amplify/appId"
	ParamCloudfrontURL = "/amplify/cloudfront"
)

// Graph artifact object keys in the graph bucket.
const (
	NodesObjectKey = "nodes.json"
	EdgesObjectKey = "edges.json"
)

// Identity headers required on requests for graph artifacts.
const (
	HeaderAuthorization = "authorization"
	HeaderClientID      = "clientid"
	HeaderRegion        = "region"
)

// FanOutConfig bounds a fan-out task.
type FanOutConfig struct {
	MaxConcurrency int `yaml:"maxConcurrency" json:"maxConcurrency" koanf:"max_concurrency"`
}

// GlueJobConfig names a Glue job and its run arguments.
type GlueJobConfig struct {
	JobName   string            `yaml:"jobName" json:"jobName" koanf:"job_name"`
	Arguments map[string]string `yaml:"arguments,omitempty" json:"arguments,omitempty" koanf:"arguments"`
}
