package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/amplify"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/ubc-cic/expertise-dashboard/internal/config"
	"github.com/ubc-cic/expertise-dashboard/internal/datafetch"
	"github.com/ubc-cic/expertise-dashboard/internal/graphpublish"
	"github.com/ubc-cic/expertise-dashboard/internal/jobs"
	"github.com/ubc-cic/expertise-dashboard/internal/notify"
	"github.com/ubc-cic/expertise-dashboard/internal/pipeline"
	"github.com/ubc-cic/expertise-dashboard/internal/redeploy"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

var pipelineNames = []string{datafetch.PipelineName, graphpublish.PipelineName}

// NewPipelineCmd creates the pipeline command group.
func NewPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Describe, run or start the data pipelines",
		Long: `Pipelines: ` + strings.Join(pipelineNames, ", ") + `.

run executes the pipeline in-process, invoking the deployed functions and
Glue jobs directly. start hands the same work to the deployed state machine.`,
	}
	cmd.AddCommand(newPipelineDescribeCmd(), newPipelineRunCmd(), newPipelineStartCmd())
	return cmd
}

func newPipelineDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <pipeline>",
		Short: "Print the execution plan of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			g, err := buildGraph(args[0], cfg, graphpublish.Deps{}, nil)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			return describe(cmd.OutOrStdout(), g, asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "print JSON instead of YAML")
	return cmd
}

func newPipelineRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a pipeline in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0])
		},
	}
	cmd.Flags().StringP("input", "i", "", "JSON input file (data-fetch indices)")
	return cmd
}

func newPipelineStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <pipeline>",
		Short: "Start the deployed state machine for a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startPipeline(cmd, args[0])
		},
	}
	cmd.Flags().StringP("input", "i", "", "JSON input file")
	cmd.Flags().Bool("wait", false, "wait for the execution to finish")
	return cmd
}

// buildGraph returns the named pipeline's graph bound to the given
// collaborators. describe passes empty ones: tasks only reach them when run.
func buildGraph(name string, cfg *config.Config, deps graphpublish.Deps, inv datafetch.Invoker) (*pipeline.Graph, error) {
	switch name {
	case datafetch.PipelineName:
		return datafetch.NewGraph(cfg.DataFetch, inv), nil
	case graphpublish.PipelineName:
		return graphpublish.NewGraph(cfg.GraphPublish, deps), nil
	default:
		return nil, fmt.Errorf("unknown pipeline %q (want one of %s)", name, strings.Join(pipelineNames, ", "))
	}
}

func describe(w io.Writer, g *pipeline.Graph, asJSON bool) error {
	plan, err := g.Describe()
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	data, err := plan.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func runPipeline(cmd *cobra.Command, name string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := validatePipelineConfig(name, cfg); err != nil {
		return err
	}
	seed, err := readSeed(cmd, name)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
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

	runner := jobs.NewRunner(
		jobs.WithRegion(cfg.Region),
		jobs.WithPollInterval(cfg.Pipelines.PollInterval),
		jobs.WithLogger(logger),
	)
	deps := graphpublish.Deps{
		Glue:       runner,
		Functions:  runner,
		S3:         s3.NewFromConfig(awsCfg),
		CloudFront: cloudfront.NewFromConfig(awsCfg),
		SSM:        ssm.NewFromConfig(awsCfg),
		Amplify:    amplify.NewFromConfig(awsCfg),
		Redeploy:   redeploy.New(redeploy.WithLogger(logger), redeploy.WithMetrics(in)),
	}
	g, err := buildGraph(name, cfg, deps, runner)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(cfg.Pipelines, awsCfg, logger)
	if err != nil {
		return err
	}
	pr := pipeline.NewRunner(
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(in),
		pipeline.WithNotifier(notifier),
	)

	run, runErr := pr.RunWith(ctx, g, seed)
	if run != nil {
		printRun(cmd.OutOrStdout(), run)
	}
	return runErr
}

func validatePipelineConfig(name string, cfg *config.Config) error {
	switch name {
	case datafetch.PipelineName:
		return config.Validate(cfg.DataFetch)
	case graphpublish.PipelineName:
		return config.Validate(cfg.GraphPublish)
	default:
		_, err := buildGraph(name, cfg, graphpublish.Deps{}, nil)
		return err
	}
}

// readSeed loads --input for pipelines that take one.
func readSeed(cmd *cobra.Command, name string) (func(*pipeline.Run), error) {
	path, _ := cmd.Flags().GetString("input")
	if name != datafetch.PipelineName {
		if path != "" {
			return nil, fmt.Errorf("pipeline %s takes no input", name)
		}
		return nil, nil
	}
	if path == "" {
		return nil, fmt.Errorf("pipeline %s requires --input", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	var in datafetch.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parsing input: %w", err)
	}
	return datafetch.Seed(in), nil
}

func newNotifier(cfg config.PipelinesConfig, awsCfg aws.Config, logger *slog.Logger) (pipeline.Notifier, error) {
	if cfg.EventBus == "" {
		return notify.LogNotifier{Logger: logger}, nil
	}
	pub, err := notify.NewPublisher(eventbridge.NewFromConfig(awsCfg), cfg.EventBus)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func printRun(w io.Writer, run *pipeline.Run) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "%s run %s\n", run.Pipeline, run.ID)
	for _, r := range run.Results() {
		switch r.Status {
		case types.TaskSucceeded:
			_, _ = color.New(color.FgGreen).Fprintf(w, "  ✓ %s (%s)\n", r.Name, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		case types.TaskFailed:
			_, _ = color.New(color.FgRed).Fprintf(w, "  ✗ %s: %s\n", r.Name, r.Error)
		default:
			_, _ = color.New(color.FgYellow).Fprintf(w, "  ○ %s: skipped\n", r.Name)
		}
	}
	if run.Status() == types.RunCompleted {
		_, _ = color.New(color.FgGreen).Fprintln(w, "Status: COMPLETED")
	} else {
		_, _ = color.New(color.FgRed).Fprintf(w, "Status: %s\n", run.Status())
	}
}

func startPipeline(cmd *cobra.Command, name string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	arn, err := stateMachineFor(name, cfg.Pipelines)
	if err != nil {
		return err
	}

	var input any = struct{}{}
	if path, _ := cmd.Flags().GetString("input"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("input %s is not valid JSON", path)
		}
		input = json.RawMessage(data)
	}

	ctx := cmd.Context()
	logger := newLogger(cmd, os.Stderr)
	runner := jobs.NewRunner(
		jobs.WithRegion(cfg.Region),
		jobs.WithPollInterval(cfg.Pipelines.PollInterval),
		jobs.WithLogger(logger),
	)

	execName := jobs.ExecutionName(name + "-" + ulid.Make().String())
	execARN, err := runner.StartPipeline(ctx, arn, execName, input)
	if err != nil {
		return err
	}
	color.Green("Started %s", execARN)

	if wait, _ := cmd.Flags().GetBool("wait"); !wait {
		return nil
	}
	st, err := runner.WaitPipeline(ctx, execARN)
	if err != nil {
		return err
	}
	color.Green("Finished: %s", st.Message)
	return nil
}

func stateMachineFor(name string, cfg config.PipelinesConfig) (string, error) {
	var arn string
	switch name {
	case datafetch.PipelineName:
		arn = cfg.DataFetchStateMachine
	case graphpublish.PipelineName:
		arn = cfg.GraphStateMachine
	default:
		return "", fmt.Errorf("unknown pipeline %q (want one of %s)", name, strings.Join(pipelineNames, ", "))
	}
	if arn == "" {
		return "", fmt.Errorf("no state machine configured for %s", name)
	}
	return arn, nil
}
