package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ubc-cic/expertise-dashboard/internal/config"
	"github.com/ubc-cic/expertise-dashboard/internal/edgeauth"
	"github.com/ubc-cic/expertise-dashboard/internal/metrics"
	"github.com/ubc-cic/expertise-dashboard/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve graph artifacts locally behind the edge authorizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("dir", "", "artifact directory (overrides server.artifact_dir)")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Server.ArtifactDir = dir
	}
	if err := config.Validate(cfg.Server); err != nil {
		return err
	}
	if err := config.Validate(cfg.Auth); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger := newLogger(cmd, os.Stderr)
	in, shutdown, err := startTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	awsCfg, err := awsConfig(ctx, cfg.Region)
	if err != nil {
		return err
	}
	auth, err := newEdgeAuthorizer(ctx, cfg.Auth, ssm.NewFromConfig(awsCfg), logger, in)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server.Addr, cfg.Server.ArtifactDir, auth, server.WithLogger(logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	mode := "parameter store"
	if !cfg.Auth.ParameterStore() {
		mode = "pool " + cfg.Auth.UserPoolID
	}
	color.Green("Serving %s on %s (%s)", cfg.Server.ArtifactDir, cfg.Server.Addr, mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return srv.Stop(shutdownCtx)
	}
}

// newEdgeAuthorizer wires the edge handler the way the deployed function
// does, from explicit configuration instead of the environment.
func newEdgeAuthorizer(ctx context.Context, cfg config.AuthConfig, client edgeauth.SSMAPI, logger *slog.Logger, in *metrics.Instruments) (*edgeauth.Handler, error) {
	var pools edgeauth.PoolResolver
	if cfg.ParameterStore() {
		pools = edgeauth.NewParameterPool(client, edgeauth.WithCacheTTL(cfg.PoolCacheTTL))
	} else {
		static, err := edgeauth.NewStaticPool(cfg.UserPoolID)
		if err != nil {
			return nil, fmt.Errorf("user pool: %w", err)
		}
		pools = static
	}

	var opts []edgeauth.VerifierOption
	if cfg.Skew > 0 {
		opts = append(opts, edgeauth.WithAcceptableSkew(cfg.Skew))
	}
	verifier := edgeauth.NewCognitoVerifier(edgeauth.NewJWKSCache(ctx), opts...)

	return edgeauth.New(edgeauth.Config{
		RequireRegion: cfg.ParameterStore(),
		FallbackURI:   cfg.FallbackURI,
	}, pools, verifier,
		edgeauth.WithLogger(logger),
		edgeauth.WithMetrics(in),
	), nil
}
