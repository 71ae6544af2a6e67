package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubc-cic/expertise-dashboard/internal/edgeauth"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

type fixedPool struct{}

func (fixedPool) Resolve(_ context.Context, region string) (edgeauth.Pool, error) {
	return edgeauth.Pool{ID: "ca-central-1_test", Region: "ca-central-1"}, nil
}

type tokenVerifier struct{ valid string }

func (v tokenVerifier) Verify(_ context.Context, token string, _ edgeauth.Pool, _ string) error {
	if token != v.valid {
		return errors.New("bad token")
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(t *testing.T, auth Authorizer) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("home"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nodes.json"), []byte(`[{"key":"1"}]`), 0o644))

	srv := New(":0", dir, auth, WithLogger(quietLogger()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func edgeAuthorizer() Authorizer {
	return edgeauth.New(edgeauth.Config{}, fixedPool{}, tokenVerifier{valid: "good"},
		edgeauth.WithLogger(quietLogger()))
}

func get(t *testing.T, ts *httptest.Server, path string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, edgeAuthorizer())

	resp, body := get(t, ts, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "ok", out["status"])
}

func TestEdge_AuthorizedServesArtifact(t *testing.T) {
	ts := setupTestServer(t, edgeAuthorizer())

	resp, body := get(t, ts, "/nodes.json", map[string]string{
		"Authorization": "good",
		"clientid":      "client",
		"region":        "ca-central-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[{"key":"1"}]`, body)
}

func TestEdge_MissingHeadersServesFallback(t *testing.T) {
	ts := setupTestServer(t, edgeAuthorizer())

	resp, body := get(t, ts, "/nodes.json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "home", body)
}

func TestEdge_InvalidTokenServesFallback(t *testing.T) {
	ts := setupTestServer(t, edgeAuthorizer())

	_, body := get(t, ts, "/nodes.json", map[string]string{
		"Authorization": "forged",
		"clientid":      "client",
	})
	assert.Equal(t, "home", body)
}

func TestEdge_FallbackNeverListsArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nodes.json"), []byte(`[]`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive", "edges.json"), []byte(`[]`), 0o644))
	ts := httptest.NewServer(New(":0", dir, edgeAuthorizer(), WithLogger(quietLogger())).Handler())
	t.Cleanup(ts.Close)

	resp, body := get(t, ts, "/nodes.json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)

	authed := map[string]string{"Authorization": "good", "clientid": "client", "region": "ca-central-1"}
	resp, body = get(t, ts, "/archive/", authed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "edges.json")

	resp, body = get(t, ts, "/archive", authed)
	assert.NotContains(t, body, "edges.json")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestEdge_Preflight(t *testing.T) {
	ts := setupTestServer(t, edgeAuthorizer())

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/nodes.json", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestEdge_AuthorizerError(t *testing.T) {
	ts := setupTestServer(t, AuthorizerFunc(func(context.Context, types.CloudFrontEvent) (types.EdgeResult, error) {
		return types.EdgeResult{}, errors.New("boom")
	}))

	resp, _ := get(t, ts, "/nodes.json", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestEdge_RejectsWrites(t *testing.T) {
	ts := setupTestServer(t, edgeAuthorizer())

	resp, err := http.Post(ts.URL+"/nodes.json", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	seen := make(chan string, 2)
	ts := setupTestServer(t, AuthorizerFunc(func(_ context.Context, evt types.CloudFrontEvent) (types.EdgeResult, error) {
		seen <- evt.Records[0].CF.Config.RequestID
		req := evt.Records[0].CF.Request
		return types.EdgeResult{Request: &req}, nil
	}))

	resp, _ := get(t, ts, "/nodes.json", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "abc", <-seen)

	resp, _ = get(t, ts, "/nodes.json", nil)
	id := resp.Header.Get("X-Request-ID")
	assert.Len(t, id, 26)
	assert.Equal(t, id, <-seen)
}

func TestViewerRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://cdn.local/graph/edges.json?v=2", nil)
	r.Header.Set("Authorization", "tok")
	r.Header.Add("Accept", "a")
	r.Header.Add("Accept", "b")

	evt := ViewerRequest(r)
	require.Len(t, evt.Records, 1)
	req := evt.Records[0].CF.Request
	assert.Equal(t, "/graph/edges.json", req.URI)
	assert.Equal(t, "v=2", req.QueryString)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "192.0.2.1", req.ClientIP)

	tok, ok := req.Headers.Get("authorization")
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
	assert.Len(t, req.Headers["accept"], 2)
	host, _ := req.Headers.Get("host")
	assert.Equal(t, "cdn.local", host)
	assert.Equal(t, "viewer-request", evt.Records[0].CF.Config.EventType)
}
