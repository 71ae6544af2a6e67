// Package commands implements the CLI subcommands for the expertise binary.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/ubc-cic/expertise-dashboard/internal/config"
	"github.com/ubc-cic/expertise-dashboard/internal/metrics"
)

// Flags shared by every subcommand. They are registered on the root command.
const (
	flagConfig  = "config"
	flagVerbose = "verbose"
)

// AddGlobalFlags registers the persistent flags subcommands read.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringP(flagConfig, "c", "", "config file (default "+config.DefaultFile+" if present)")
	root.PersistentFlags().BoolP(flagVerbose, "v", false, "debug logging")
}

// loadConfig loads the config named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a JSON logger writing to w.
func newLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if v, _ := cmd.Flags().GetBool(flagVerbose); v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func awsConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// startTelemetry installs the exporters from cfg and returns the instruments
// commands record on.
func startTelemetry(ctx context.Context, cfg metrics.TelemetryConfig) (*metrics.Instruments, metrics.ShutdownFunc, error) {
	shutdown, err := metrics.Setup(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	in, err := metrics.New(otel.GetMeterProvider())
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, fmt.Errorf("creating instruments: %w", err)
	}
	return in, shutdown, nil
}
