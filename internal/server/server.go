// Package server emulates the graph distribution locally: every request is
// turned into a viewer-request event, passed through the edge authorizer and
// then served from the artifact directory at the URI the authorizer returns.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Authorizer handles viewer-request events. *edgeauth.Handler satisfies it.
type Authorizer interface {
	Handle(ctx context.Context, evt types.CloudFrontEvent) (types.EdgeResult, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, evt types.CloudFrontEvent) (types.EdgeResult, error)

// Handle calls f.
func (f AuthorizerFunc) Handle(ctx context.Context, evt types.CloudFrontEvent) (types.EdgeResult, error) {
	return f(ctx, evt)
}

// Server is the local edge emulator.
type Server struct {
	auth   Authorizer
	fs     http.FileSystem
	files  http.Handler
	router chi.Router
	addr   string
	logger *slog.Logger
	srv    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server that serves artifactDir behind auth.
func New(addr, artifactDir string, auth Authorizer, opts ...Option) *Server {
	fs := indexOnlyFS{http.Dir(artifactDir)}
	s := &Server{
		auth:   auth,
		fs:     fs,
		files:  http.FileServer(fs),
		addr:   addr,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(ReadOnlyMiddleware)

	r.Get("/healthz", s.health)
	r.Handle("/*", http.HandlerFunc(s.edge))

	s.router = r
	return s
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "edge")
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("edge emulator listening", "addr", s.addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) edge(w http.ResponseWriter, r *http.Request) {
	res, err := s.auth.Handle(r.Context(), ViewerRequest(r))
	if err != nil {
		s.logger.Error("edge function failed", "uri", r.URL.Path, "error", err)
		http.Error(w, "edge function failed", http.StatusBadGateway)
		return
	}

	if res.Response != nil {
		writeEdgeResponse(w, res.Response)
		return
	}
	if res.Request == nil {
		http.Error(w, "edge function returned nothing", http.StatusBadGateway)
		return
	}

	if res.Request.URI != r.URL.Path {
		s.logger.Debug("request rewritten", "from", r.URL.Path, "to", res.Request.URI)
	}
	u := *r.URL
	u.Path = res.Request.URI
	u.RawPath = ""
	if strings.HasSuffix(u.Path, "/") && !s.hasIndex(u.Path) {
		w.WriteHeader(http.StatusOK)
		return
	}
	r2 := r.Clone(r.Context())
	r2.URL = &u
	s.files.ServeHTTP(w, r2)
}

func (s *Server) hasIndex(dir string) bool {
	f, err := s.fs.Open(path.Join(dir, "index.html"))
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// indexOnlyFS hides directories that have no index.html so the file server
// never lists the artifact directory.
type indexOnlyFS struct {
	http.FileSystem
}

func (fsys indexOnlyFS) Open(name string) (http.File, error) {
	f, err := fsys.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		idx, err := fsys.FileSystem.Open(path.Join(name, "index.html"))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		_ = idx.Close()
	}
	return f, nil
}

// ViewerRequest builds the viewer-request event CloudFront would raise for r.
func ViewerRequest(r *http.Request) types.CloudFrontEvent {
	headers := types.Headers{}
	for key, vals := range r.Header {
		name := strings.ToLower(key)
		for _, v := range vals {
			headers[name] = append(headers[name], types.HeaderValue{Key: key, Value: v})
		}
	}
	if r.Host != "" {
		headers.Set("Host", r.Host)
	}

	clientIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		clientIP = host
	}

	return types.CloudFrontEvent{Records: []types.CloudFrontRecord{{CF: types.CloudFrontPayload{
		Config: types.CloudFrontConfig{
			DistributionDomainName: r.Host,
			EventType:              "viewer-request",
			RequestID:              RequestIDFromContext(r.Context()),
		},
		Request: types.CloudFrontRequest{
			ClientIP:    clientIP,
			Method:      r.Method,
			URI:         r.URL.Path,
			QueryString: r.URL.RawQuery,
			Headers:     headers,
		},
	}}}}
}

func writeEdgeResponse(w http.ResponseWriter, resp *types.CloudFrontResponse) {
	for _, vals := range resp.Headers {
		for _, v := range vals {
			w.Header().Add(v.Key, v.Value)
		}
	}
	status, err := strconv.Atoi(resp.Status)
	if err != nil {
		status = http.StatusBadGateway
	}
	w.WriteHeader(status)
}
