package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ubc-cic/expertise-dashboard/internal/config"
	"github.com/ubc-cic/expertise-dashboard/internal/graphql"
	"github.com/ubc-cic/expertise-dashboard/internal/portal"
)

// Token environment variables, read when the flags are not given.
const (
	envIDToken     = "EXPERTISE_ID_TOKEN"
	envAccessToken = "EXPERTISE_ACCESS_TOKEN"
)

// NewGraphCmd creates the graph command group.
func NewGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Load the collaboration graph as a signed-in portal user",
	}
	cmd.PersistentFlags().String("id-token", "", "Cognito ID token (default $"+envIDToken+")")
	cmd.PersistentFlags().String("access-token", "", "Cognito access token (default $"+envAccessToken+")")
	cmd.AddCommand(newGraphLoadCmd(), newGraphFacultiesCmd())
	return cmd
}

func newGraphLoadCmd() *cobra.Command {
	var f portal.GraphFilter
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch nodes and edges from the CDN, narrowed by faculty and keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tokens, err := readTokens(cmd)
			if err != nil {
				return err
			}
			gql, err := portalClient(cfg.Portal, tokens)
			if err != nil {
				return err
			}
			sess, err := portal.SessionFromTokens(tokens.id, tokens.access)
			if err != nil {
				return err
			}
			view, err := portal.NewGraphView(cfg.Portal.CDNURL, portal.StaticSession(sess), gql,
				portal.WithGraphLogger(newLogger(cmd, os.Stderr)))
			if err != nil {
				return err
			}
			if err := view.Load(cmd.Context(), f); err != nil {
				return err
			}

			st := view.State()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			color.Green("Loaded %d researchers and %d collaborations", len(st.Nodes), len(st.Edges))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&f.Faculties, "faculty", nil, "faculty filter (repeatable)")
	cmd.Flags().StringVarP(&f.Keyword, "keyword", "k", "", "keyword filter")
	cmd.Flags().Bool("json", false, "print the graph state as JSON")
	return cmd
}

func newGraphFacultiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "faculties",
		Short: "List faculties with their chart colours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tokens, _ := readTokens(cmd)
			gql, err := portalClient(cfg.Portal, tokens)
			if err != nil {
				return err
			}
			faculties, err := gql.AllFaculties(cmd.Context())
			if err != nil {
				return err
			}
			printLegend(cmd.OutOrStdout(), faculties, rand.New(rand.NewPCG(1, 2)))
			return nil
		},
	}
}

type tokenPair struct {
	id     string
	access string
}

func readTokens(cmd *cobra.Command) (tokenPair, error) {
	var t tokenPair
	t.id, _ = cmd.Flags().GetString("id-token")
	t.access, _ = cmd.Flags().GetString("access-token")
	if t.id == "" {
		t.id = os.Getenv(envIDToken)
	}
	if t.access == "" {
		t.access = os.Getenv(envAccessToken)
	}
	if t.id == "" || t.access == "" {
		return t, fmt.Errorf("both an ID token and an access token are required")
	}
	return t, nil
}

// portalClient builds the GraphQL client the portal uses, authorized with
// the API key when one is configured and the user's access token otherwise.
func portalClient(cfg config.PortalConfig, tokens tokenPair) (*graphql.Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var opts []graphql.Option
	switch {
	case cfg.GraphQLAPIKey != "":
		opts = append(opts, graphql.WithAPIKey(cfg.GraphQLAPIKey))
	case tokens.access != "":
		access := tokens.access
		opts = append(opts, graphql.WithToken(func(context.Context) (string, error) { return access, nil }))
	default:
		return nil, fmt.Errorf("an access token or a GraphQL API key is required")
	}
	return graphql.New(cfg.GraphQLEndpoint, opts...)
}

func printLegend(w io.Writer, labels []string, rng *rand.Rand) {
	colors := portal.Palette(len(labels), rng)
	for i, label := range labels {
		_, _ = fmt.Fprintf(w, "%-8s %s\n", colors[i], label)
	}
}
