// Package edgeauth implements the viewer-request authorization function that
// guards the graph CDN. Requests carrying a valid Cognito access token pass
// through untouched; everything else is rewritten to the fallback URI so the
// distribution serves the site root instead of the protected artifact.
package edgeauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ubc-cic/expertise-dashboard/internal/metrics"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// DefaultFallbackURI is where unauthorized requests are sent.
const DefaultFallbackURI = "/"

// ErrEmptyEvent is returned for an event without records.
var ErrEmptyEvent = errors.New("edgeauth: event has no records")

// Config is the explicitly constructed configuration of a Handler.
type Config struct {
	// RequireRegion makes the region header mandatory. It is set when the
	// pool is resolved from the parameter store of the declared region.
	RequireRegion bool
	// FallbackURI replaces the URI of unauthorized requests.
	FallbackURI string
}

// Handler authorizes CloudFront viewer requests.
type Handler struct {
	cfg      Config
	pools    PoolResolver
	verifier Verifier
	logger   *slog.Logger
	metrics  *metrics.Instruments
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics sets the instruments decisions are recorded on.
func WithMetrics(m *metrics.Instruments) Option {
	return func(h *Handler) { h.metrics = m }
}

// New creates a Handler.
func New(cfg Config, pools PoolResolver, verifier Verifier, opts ...Option) *Handler {
	if cfg.FallbackURI == "" {
		cfg.FallbackURI = DefaultFallbackURI
	}
	h := &Handler{
		cfg:      cfg,
		pools:    pools,
		verifier: verifier,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Handle processes a viewer-request event.
func (h *Handler) Handle(ctx context.Context, evt types.CloudFrontEvent) (types.EdgeResult, error) {
	if len(evt.Records) == 0 {
		return types.EdgeResult{}, ErrEmptyEvent
	}
	req := evt.Records[0].CF.Request
	if req.Headers == nil {
		req.Headers = types.Headers{}
	}

	decision := h.Authorize(ctx, &req)
	if decision == types.AuthPreflight {
		return types.EdgeResult{Response: PreflightResponse()}, nil
	}
	return types.EdgeResult{Request: &req}, nil
}

// Authorize decides a single request, rewriting its URI in place when it is
// not allowed through.
func (h *Handler) Authorize(ctx context.Context, req *types.CloudFrontRequest) types.AuthDecision {
	decision := h.decide(ctx, req)
	h.metrics.RecordAuth(ctx, decision)

	switch decision {
	case types.AuthPreflight, types.AuthAllowed:
	default:
		req.URI = h.cfg.FallbackURI
	}
	return decision
}

func (h *Handler) decide(ctx context.Context, req *types.CloudFrontRequest) types.AuthDecision {
	if req.Method == http.MethodOptions {
		h.logger.Debug("preflight call", "uri", req.URI)
		return types.AuthPreflight
	}

	token, hasToken := req.Headers.Get(types.HeaderAuthorization)
	clientID, hasClient := req.Headers.Get(types.HeaderClientID)
	region, hasRegion := req.Headers.Get(types.HeaderRegion)
	if !hasToken || !hasClient || (h.cfg.RequireRegion && !hasRegion) {
		h.logger.Info("missing identity headers",
			"uri", req.URI,
			"authorization", hasToken,
			"clientId", hasClient,
			"region", hasRegion,
		)
		return types.AuthMissingHeaders
	}

	pool, err := h.pools.Resolve(ctx, region)
	if err != nil {
		h.logger.Error("user pool lookup failed", "region", region, "error", err)
		return types.AuthPoolError
	}

	if err := h.verifier.Verify(ctx, token, pool, clientID); err != nil {
		h.logger.Info("token not valid", "uri", req.URI, "pool", pool.ID, "clientId", clientID, "error", err)
		return types.AuthDenied
	}

	h.logger.Debug("token valid", "uri", req.URI, "pool", pool.ID, "clientId", clientID)
	return types.AuthAllowed
}
