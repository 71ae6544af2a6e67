// Package config loads the CLI and local server configuration: an optional
// YAML file overridden by EXPERTISE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ubc-cic/expertise-dashboard/internal/datafetch"
	"github.com/ubc-cic/expertise-dashboard/internal/graphpublish"
	"github.com/ubc-cic/expertise-dashboard/internal/metrics"
)

// DefaultFile is read when no path is given. It may be absent.
const DefaultFile = "expertise.yaml"

// EnvPrefix marks environment overrides. A double underscore separates
// levels: EXPERTISE_SERVER__ADDR sets server.addr.
const EnvPrefix = "EXPERTISE_"

// Config is the CLI configuration. Sections other than Server and Telemetry
// are checked with Validate by the commands that need them.
type Config struct {
	Region       string                  `koanf:"region"`
	Server       ServerConfig            `koanf:"server"`
	Auth         AuthConfig              `koanf:"auth" validate:"-"`
	Portal       PortalConfig            `koanf:"portal" validate:"-"`
	Pipelines    PipelinesConfig         `koanf:"pipelines" validate:"-"`
	DataFetch    datafetch.Config        `koanf:"data_fetch" validate:"-"`
	GraphPublish graphpublish.Config     `koanf:"graph_publish" validate:"-"`
	Telemetry    metrics.TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig configures the local edge emulator.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// ArtifactDir holds the files served for allowed requests.
	ArtifactDir string `koanf:"artifact_dir" validate:"required"`
}

// AuthConfig configures edge authorization.
type AuthConfig struct {
	// UserPoolID pins the pool. Leave empty to resolve it from the
	// parameter store of the region a request declares.
	UserPoolID   string        `koanf:"user_pool_id"`
	PoolCacheTTL time.Duration `koanf:"pool_cache_ttl" validate:"gte=0"`
	FallbackURI  string        `koanf:"fallback_uri" validate:"required,startswith=/"`
	Skew         time.Duration `koanf:"skew" validate:"gte=0"`
}

// ParameterStore reports whether the pool is resolved per region.
func (a AuthConfig) ParameterStore() bool {
	return a.UserPoolID == ""
}

// PortalConfig locates the portal's CDN and GraphQL API.
type PortalConfig struct {
	CDNURL          string `koanf:"cdn_url" validate:"required,url"`
	GraphQLEndpoint string `koanf:"graphql_endpoint" validate:"required,url"`
	GraphQLAPIKey   string `koanf:"graphql_api_key"`
}

// PipelinesConfig locates the managed pipelines and their notifications.
type PipelinesConfig struct {
	DataFetchStateMachine string        `koanf:"data_fetch_state_machine"`
	GraphStateMachine     string        `koanf:"graph_state_machine"`
	EventBus              string        `koanf:"event_bus"`
	PollInterval          time.Duration `koanf:"poll_interval" validate:"gte=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Region: "ca-central-1",
		Server: ServerConfig{
			Addr:        ":3000",
			ArtifactDir: ".",
		},
		Auth: AuthConfig{
			FallbackURI: "/",
		},
		Pipelines: PipelinesConfig{
			PollInterval: 15 * time.Second,
		},
		DataFetch:    datafetch.DefaultConfig(),
		GraphPublish: graphpublish.DefaultConfig(),
		Telemetry: metrics.TelemetryConfig{
			ServiceName: "expertise-dashboard",
			Interval:    30 * time.Second,
		},
	}
}

var validate = validator.New()

// Load reads path (DefaultFile when empty) and applies environment
// overrides on top of Default. A missing DefaultFile is not an error; a
// missing explicit path is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks a configuration section's constraints.
func Validate(section any) error {
	if err := validate.Struct(section); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
