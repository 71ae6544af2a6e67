package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ubc-cic/expertise-dashboard/internal/portal"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// NewRouteCmd creates the route command group.
func NewRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Build and parse portal search URLs",
	}
	cmd.AddCommand(newRouteEncodeCmd(), newRouteDecodeCmd(), newRouteAdvancedCmd())
	return cmd
}

func newRouteEncodeCmd() *cobra.Command {
	var (
		searchCtx string
		query     string
		filters   portal.Filters
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the search path for a context, filters and query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := portal.Route{
				Context: types.SearchContext(searchCtx),
				Filters: filters,
				Query:   query,
			}.Path()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&searchCtx, "context", string(types.SearchEverything), "search context")
	f.StringVarP(&query, "query", "q", "", "search query")
	f.StringArrayVar(&filters.Departments, "department", nil, "department filter (repeatable)")
	f.StringArrayVar(&filters.Faculties, "faculty", nil, "faculty filter (repeatable)")
	f.StringArrayVar(&filters.Journals, "journal", nil, "journal filter (repeatable)")
	f.StringArrayVar(&filters.GrantAgencies, "agency", nil, "grant agency filter (repeatable)")
	f.StringArrayVar(&filters.PatentClassifications, "classification", nil, "patent classification filter (repeatable)")
	return cmd
}

func newRouteDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <path>",
		Short: "Print the context, filters and query a search path selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := portal.ParseRoute(args[0])
			if err != nil {
				return err
			}
			printRoute(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

func newRouteAdvancedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advanced <context>",
		Short: "Print the advanced search path for a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := portal.AdvancedSearchPath(types.SearchContext(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func printRoute(w io.Writer, r portal.Route) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Context: %s\n", r.Context)
	_, _ = fmt.Fprintf(w, "Query: %q\n", r.Query)
	for _, row := range []struct {
		label string
		sel   []string
	}{
		{"Departments", r.Filters.Departments},
		{"Faculties", r.Filters.Faculties},
		{"Journals", r.Filters.Journals},
		{"Grant agencies", r.Filters.GrantAgencies},
		{"Patent classifications", r.Filters.PatentClassifications},
	} {
		if len(row.sel) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", row.label, strings.Join(row.sel, ", "))
	}
}
