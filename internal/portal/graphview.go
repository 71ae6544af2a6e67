package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// ErrSuperseded is returned by Load when a newer load started before it
// finished; its result is discarded.
var ErrSuperseded = errors.New("portal: graph load superseded")

// ResearcherSearch narrows the graph to researchers matching filters.
type ResearcherSearch interface {
	Researchers(ctx context.Context, faculties []string, keyword string) ([]types.Node, error)
}

// GraphFilter is the filter applied to the collaboration graph.
type GraphFilter struct {
	Faculties []string
	Keyword   string
}

// Active reports whether the filter narrows anything.
func (f GraphFilter) Active() bool {
	return len(f.Faculties) > 0 || f.Keyword != ""
}

// GraphState is what the graph view renders.
type GraphState struct {
	Nodes []types.Node
	Edges []types.Edge
	// Options feed the search bar autocomplete: node attributes plus id.
	Options []map[string]interface{}
	// Loading is true between a reset and the publish of its load.
	Loading bool
}

// GraphView loads the collaboration graph from the CDN.
type GraphView struct {
	base        *url.URL
	sessions    SessionProvider
	researchers ResearcherSearch
	http        *http.Client
	logger      *slog.Logger

	mu    sync.Mutex
	gen   uint64
	state GraphState
}

// GraphViewOption configures a GraphView.
type GraphViewOption func(*GraphView)

// WithGraphHTTPClient sets the client used for CDN fetches.
func WithGraphHTTPClient(c *http.Client) GraphViewOption {
	return func(v *GraphView) { v.http = c }
}

// WithGraphLogger sets the view's logger.
func WithGraphLogger(l *slog.Logger) GraphViewOption {
	return func(v *GraphView) { v.logger = l }
}

// NewGraphView creates a loader for the artifacts under cdnURL.
func NewGraphView(cdnURL string, sessions SessionProvider, researchers ResearcherSearch, opts ...GraphViewOption) (*GraphView, error) {
	base, err := url.Parse(cdnURL)
	if err != nil {
		return nil, fmt.Errorf("portal: invalid CDN URL %q: %w", cdnURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("portal: CDN URL %q must be absolute", cdnURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	v := &GraphView{
		base:        base,
		sessions:    sessions,
		researchers: researchers,
		http:        &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// State returns the current view state.
func (v *GraphView) State() GraphState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Load resets the view and fetches the graph for f. On error the view is
// left empty. Only the most recently started load publishes its result.
func (v *GraphView) Load(ctx context.Context, f GraphFilter) error {
	gen := v.reset()
	start := time.Now()

	state, err := v.fetch(ctx, f)
	if err != nil {
		v.logger.Error("graph load failed", "error", err)
		v.finish(gen, GraphState{})
		return err
	}
	if !v.finish(gen, state) {
		v.logger.Debug("graph load superseded", "generation", gen)
		return ErrSuperseded
	}
	v.logger.Info("graph loaded",
		"nodes", len(state.Nodes),
		"edges", len(state.Edges),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

func (v *GraphView) reset() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.state = GraphState{Loading: true}
	return v.gen
}

func (v *GraphView) finish(gen uint64, s GraphState) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return false
	}
	v.state = s
	return true
}

func (v *GraphView) fetch(ctx context.Context, f GraphFilter) (GraphState, error) {
	sess, err := v.sessions.Session(ctx)
	if err != nil {
		return GraphState{}, fmt.Errorf("portal: session: %w", err)
	}

	var (
		nodes []types.Node
		edges []types.Edge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return v.getJSON(gctx, sess, types.NodesObjectKey, &nodes) })
	g.Go(func() error { return v.getJSON(gctx, sess, types.EdgesObjectKey, &edges) })
	if err := g.Wait(); err != nil {
		return GraphState{}, err
	}

	keyword := strings.ToLower(f.Keyword)
	if len(f.Faculties) > 0 || keyword != "" {
		matches, err := v.researchers.Researchers(ctx, f.Faculties, keyword)
		if err != nil {
			return GraphState{}, fmt.Errorf("portal: getResearchers: %w", err)
		}
		nodes, edges = narrow(nodes, edges, matches)
	}

	return GraphState{
		Nodes:   nodes,
		Edges:   edges,
		Options: autocompleteOptions(nodes),
	}, nil
}

func (v *GraphView) getJSON(ctx context.Context, sess types.Session, name string, out any) error {
	target := v.base.ResolveReference(&url.URL{Path: name})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("portal: building request for %s: %w", name, err)
	}
	req.Header.Set(types.HeaderAuthorization, sess.AccessToken)
	req.Header.Set(types.HeaderClientID, sess.ClientID)
	req.Header.Set(types.HeaderRegion, sess.Region)

	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("portal: fetching %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("portal: fetching %s: status %d", name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("portal: decoding %s: %w", name, err)
	}
	return nil
}

// narrow keeps the nodes whose key matched and the edges between them.
func narrow(nodes []types.Node, edges []types.Edge, matches []types.Node) ([]types.Node, []types.Edge) {
	keep := lo.Associate(matches, func(n types.Node) (string, bool) { return n.Key, true })
	nodes = lo.Filter(nodes, func(n types.Node, _ int) bool { return keep[n.Key] })
	edges = lo.Filter(edges, func(e types.Edge, _ int) bool { return keep[e.Source] && keep[e.Target] })
	return nodes, edges
}

func autocompleteOptions(nodes []types.Node) []map[string]interface{} {
	return lo.Map(nodes, func(n types.Node, _ int) map[string]interface{} {
		return lo.Assign(n.Attributes, map[string]interface{}{"id": n.Key})
	})
}
