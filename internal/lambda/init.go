// Package lambda provides shared initialization for the Lambda handlers.
package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"

	"github.com/ubc-cic/expertise-dashboard/internal/metrics"
)

// Base holds the settings every handler reads. Handler configs embed it.
type Base struct {
	Region    string                  `env:"AWS_REGION"`
	LogLevel  slog.Level              `env:"LOG_LEVEL" envDefault:"INFO"`
	Telemetry metrics.TelemetryConfig
}

// Deps holds shared dependencies for Lambda handlers.
type Deps struct {
	Logger   *slog.Logger
	AWS      aws.Config
	Metrics  *metrics.Instruments
	Shutdown metrics.ShutdownFunc
}

var validate = validator.New()

// ParseEnv reads a handler config from the environment and validates it.
func ParseEnv[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validating environment: %w", err)
	}
	return cfg, nil
}

// NewLogger returns the JSON logger handlers write to stderr.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Init creates the logger, AWS config and telemetry shared by a handler.
func Init(ctx context.Context, base Base) (*Deps, error) {
	logger := NewLogger(base.LogLevel)
	slog.SetDefault(logger)

	var opts []func(*awsconfig.LoadOptions) error
	if base.Region != "" {
		opts = append(opts, awsconfig.WithRegion(base.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	shutdown, err := metrics.Setup(ctx, base.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	in, err := metrics.New(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("creating instruments: %w", err)
	}

	return &Deps{
		Logger:   logger,
		AWS:      awsCfg,
		Metrics:  in,
		Shutdown: shutdown,
	}, nil
}
