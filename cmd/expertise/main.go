package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ubc-cic/expertise-dashboard/internal/commands"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "expertise",
		Short: "Operate the expertise dashboard backend",
		Long: `expertise runs the dashboard's data pipelines, serves the graph
artifacts locally behind the edge authorizer and works with portal search
routes and the collaboration graph from the command line.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	commands.AddGlobalFlags(root)

	root.AddCommand(
		commands.NewServeCmd(),
		commands.NewPipelineCmd(),
		commands.NewRouteCmd(),
		commands.NewRedeployCmd(),
		commands.NewGraphCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
