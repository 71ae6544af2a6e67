// Package redeploy fires an Amplify incoming webhook so the front end is
// rebuilt against freshly published graph data.
package redeploy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ubc-cic/expertise-dashboard/internal/metrics"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

var emptyBody = []byte("{}")

// Client posts to deployment webhooks.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Instruments
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithMetrics sets the instruments POSTs are counted on.
func WithMetrics(m *metrics.Instruments) Option {
	return func(cl *Client) { cl.metrics = m }
}

// New creates a Client. Without WithHTTPClient it uses a traced client with
// no timeout of its own; the caller's context bounds each call.
func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Target returns the request target for a webhook URL: its path followed
// by its query string, if any.
func Target(u *url.URL) string {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}

// Trigger sends a single POST with an empty JSON object to the webhook and
// reports the status it answered with. Any HTTP status is a result, not an
// error; only transport failures are returned as errors. There is no retry.
func (c *Client) Trigger(ctx context.Context, in types.RedeployRequest) (types.RedeployResponse, error) {
	if in.Webhook.WebhookURL == "" {
		return types.RedeployResponse{}, fmt.Errorf("redeploy: webhook url is required")
	}
	u, err := url.Parse(in.Webhook.WebhookURL)
	if err != nil {
		return types.RedeployResponse{}, fmt.Errorf("redeploy: invalid webhook url: %w", err)
	}
	if u.Host == "" {
		return types.RedeployResponse{}, fmt.Errorf("redeploy: webhook url %q has no host", in.Webhook.WebhookURL)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	endpoint := scheme + "://" + u.Host + Target(u)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(emptyBody))
	if err != nil {
		return types.RedeployResponse{}, fmt.Errorf("redeploy: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(emptyBody))

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRedeploy(ctx, "error")
		c.logger.Error("webhook POST failed", "webhookId", in.Webhook.WebhookID, "host", u.Host, "error", err)
		return types.RedeployResponse{}, fmt.Errorf("redeploy: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	status := strconv.Itoa(resp.StatusCode)
	c.metrics.RecordRedeploy(ctx, status)
	c.logger.Info("webhook POST sent", "webhookId", in.Webhook.WebhookID, "host", u.Host, "status", status)

	return types.RedeployResponse{ID: in.Webhook.WebhookID, StatusCode: status}, nil
}
