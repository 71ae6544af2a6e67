// Package graphql is a small client for the portal's GraphQL API. The
// queries it sends are validated against the embedded schema when the client
// is created, so a drifted query fails at start-up rather than on first use.
package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

//go:embed schema.graphql
var schemaSource string

// Error is one entry of a GraphQL error response.
type Error struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Errors is a non-empty GraphQL error response.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// TokenFunc returns the value of the Authorization header for a call.
type TokenFunc func(ctx context.Context) (string, error)

// Client sends queries to a GraphQL endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	token    TokenFunc
	apiKey   string
	schema   *ast.Schema
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithToken authorizes calls with a user pool token.
func WithToken(fn TokenFunc) Option {
	return func(cl *Client) { cl.token = fn }
}

// WithAPIKey authorizes calls with an API key.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

// New creates a client for endpoint after validating every known query
// against the schema.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("graphql: endpoint is required")
	}
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSource})
	if err != nil {
		return nil, fmt.Errorf("graphql: loading schema: %w", err)
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		schema:   schema,
	}
	for _, o := range opts {
		o(c)
	}
	for name, q := range queries {
		if err := c.Validate(q); err != nil {
			return nil, fmt.Errorf("graphql: query %s: %w", name, err)
		}
	}
	return c, nil
}

// Validate checks a query document against the schema.
func (c *Client) Validate(query string) error {
	if _, errs := gqlparser.LoadQuery(c.schema, query); len(errs) > 0 {
		return errs
	}
	return nil
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors,omitempty"`
}

// Do posts query with vars and decodes the data member into out.
func (c *Client) Do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("graphql: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphql: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("graphql: token: %w", err)
		}
		req.Header.Set("Authorization", tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql: request failed: %w", err)
	}
	defer resp.Body.Close()

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("graphql: decoding response (status %d): %w", resp.StatusCode, err)
	}
	if len(r.Errors) > 0 {
		return r.Errors
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql: unexpected status %d", resp.StatusCode)
	}
	if out == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("graphql: decoding data: %w", err)
	}
	return nil
}

// Researchers returns the researchers matching the faculty and keyword
// filters. It satisfies the portal's researcher search.
func (c *Client) Researchers(ctx context.Context, faculties []string, keyword string) ([]types.Node, error) {
	var out struct {
		GetResearchers []types.Node `json:"getResearchers"`
	}
	if err := c.Do(ctx, queryGetResearchers, filterVars(faculties, keyword), &out); err != nil {
		return nil, err
	}
	return out.GetResearchers, nil
}

// Edges returns the collaboration edges among matching researchers.
func (c *Client) Edges(ctx context.Context, faculties []string, keyword string) ([]types.Edge, error) {
	var out struct {
		GetEdges []types.Edge `json:"getEdges"`
	}
	if err := c.Do(ctx, queryGetEdges, filterVars(faculties, keyword), &out); err != nil {
		return nil, err
	}
	return out.GetEdges, nil
}

// AllFaculties returns every faculty name.
func (c *Client) AllFaculties(ctx context.Context) ([]string, error) {
	var out struct {
		GetAllFaculty []string `json:"getAllFaculty"`
	}
	if err := c.Do(ctx, queryGetAllFaculty, nil, &out); err != nil {
		return nil, err
	}
	return out.GetAllFaculty, nil
}

// AllDepartments returns every department name.
func (c *Client) AllDepartments(ctx context.Context) ([]string, error) {
	var out struct {
		GetAllDepartments []string `json:"getAllDepartments"`
	}
	if err := c.Do(ctx, queryGetAllDepartments, nil, &out); err != nil {
		return nil, err
	}
	return out.GetAllDepartments, nil
}

func filterVars(faculties []string, keyword string) map[string]any {
	if faculties == nil {
		faculties = []string{}
	}
	return map[string]any{
		"facultiesToFilterOn": faculties,
		"keyword":             keyword,
	}
}
