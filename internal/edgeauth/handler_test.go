package edgeauth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

type spyVerifier struct {
	err    error
	calls  int
	tokens []string
}

func (s *spyVerifier) Verify(_ context.Context, token string, _ Pool, _ string) error {
	s.calls++
	s.tokens = append(s.tokens, token)
	return s.err
}

type stubPools struct {
	pool  Pool
	err   error
	calls int
}

func (s *stubPools) Resolve(context.Context, string) (Pool, error) {
	s.calls++
	return s.pool, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func viewerEvent(method, uri string, headers map[string]string) types.CloudFrontEvent {
	h := types.Headers{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return types.CloudFrontEvent{Records: []types.CloudFrontRecord{{
		CF: types.CloudFrontPayload{Request: types.CloudFrontRequest{
			Method:  method,
			URI:     uri,
			Headers: h,
		}},
	}}}
}

func identityHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": token,
		"clientId":      testClient,
		"region":        "ca-central-1",
	}
}

func TestHandle_Preflight(t *testing.T) {
	v := &spyVerifier{}
	pools := &stubPools{pool: testPool}
	h := New(Config{}, pools, v, WithLogger(quietLogger()))

	res, err := h.Handle(context.Background(), viewerEvent("OPTIONS", "/nodes.json", nil))
	require.NoError(t, err)
	require.NotNil(t, res.Response)
	assert.Nil(t, res.Request)
	assert.Equal(t, "204", res.Response.Status)

	origin, ok := res.Response.Headers.Get("Access-Control-Allow-Origin")
	assert.True(t, ok)
	assert.Equal(t, "*", origin)
	methods, _ := res.Response.Headers.Get("access-control-request-method")
	assert.Equal(t, "PUT, GET, OPTIONS, DELETE", methods)
	allowed, _ := res.Response.Headers.Get("access-control-allow-headers")
	assert.Equal(t, "*", allowed)

	assert.Zero(t, v.calls)
	assert.Zero(t, pools.calls)
}

func TestHandle_MissingHeadersShortCircuit(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		headers map[string]string
	}{
		{"no headers", Config{}, nil},
		{"no client id", Config{}, map[string]string{"authorization": "tok"}},
		{"no token", Config{}, map[string]string{"clientid": testClient}},
		{"no region when required", Config{RequireRegion: true}, map[string]string{"authorization": "tok", "clientid": testClient}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &spyVerifier{}
			pools := &stubPools{pool: testPool}
			h := New(tt.cfg, pools, v, WithLogger(quietLogger()))

			res, err := h.Handle(context.Background(), viewerEvent("GET", "/edges.json", tt.headers))
			require.NoError(t, err)
			require.NotNil(t, res.Request)
			assert.Equal(t, "/", res.Request.URI)
			assert.Zero(t, v.calls)
			assert.Zero(t, pools.calls)
		})
	}
}

func TestHandle_RegionOptionalWhenNotRequired(t *testing.T) {
	v := &spyVerifier{}
	h := New(Config{}, &stubPools{pool: testPool}, v, WithLogger(quietLogger()))

	res, err := h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", map[string]string{
		"authorization": "tok",
		"clientid":      testClient,
	}))
	require.NoError(t, err)
	assert.Equal(t, "/nodes.json", res.Request.URI)
	assert.Equal(t, 1, v.calls)
}

func TestHandle_PoolErrorRewrites(t *testing.T) {
	v := &spyVerifier{}
	h := New(Config{}, &stubPools{err: assert.AnError}, v, WithLogger(quietLogger()))

	res, err := h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", identityHeaders("tok")))
	require.NoError(t, err)
	assert.Equal(t, "/", res.Request.URI)
	assert.Zero(t, v.calls)
}

func TestHandle_DeniedRewrites(t *testing.T) {
	v := &spyVerifier{err: assert.AnError}
	h := New(Config{FallbackURI: "/index.html"}, &stubPools{pool: testPool}, v, WithLogger(quietLogger()))

	res, err := h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", identityHeaders("bad")))
	require.NoError(t, err)
	assert.Equal(t, "/index.html", res.Request.URI)
	assert.Equal(t, []string{"bad"}, v.tokens)
}

func TestHandle_AllowedPassesThrough(t *testing.T) {
	v := &spyVerifier{}
	h := New(Config{}, &stubPools{pool: testPool}, v, WithLogger(quietLogger()))

	evt := viewerEvent("GET", "/nodes.json", identityHeaders("good"))
	evt.Records[0].CF.Request.QueryString = "v=2"

	res, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	require.NotNil(t, res.Request)
	assert.Equal(t, "/nodes.json", res.Request.URI)
	assert.Equal(t, "v=2", res.Request.QueryString)
	tok, _ := res.Request.Headers.Get("authorization")
	assert.Equal(t, "good", tok)
}

func TestHandle_EmptyEvent(t *testing.T) {
	h := New(Config{}, &stubPools{}, &spyVerifier{}, WithLogger(quietLogger()))
	_, err := h.Handle(context.Background(), types.CloudFrontEvent{})
	assert.ErrorIs(t, err, ErrEmptyEvent)
}

func TestHandle_WithCognitoVerifier(t *testing.T) {
	s := newSigner(t, "kid-1")
	client := &mockSSMClient{value: testPool.ID}
	h := New(Config{RequireRegion: true}, NewParameterPool(client), s.verifier(), WithLogger(quietLogger()))

	res, err := h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", identityHeaders(s.token(t, nil))))
	require.NoError(t, err)
	assert.Equal(t, "/nodes.json", res.Request.URI)
	assert.Equal(t, []string{"ca-central-1"}, client.regions)

	res, err = h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", identityHeaders(s.token(t, claims{"token_use": "id"}))))
	require.NoError(t, err)
	assert.Equal(t, "/", res.Request.URI)
}

func TestEdgeResult_JSON(t *testing.T) {
	h := New(Config{}, &stubPools{pool: testPool}, &spyVerifier{}, WithLogger(quietLogger()))

	res, err := h.Handle(context.Background(), viewerEvent("OPTIONS", "/nodes.json", nil))
	require.NoError(t, err)
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"204"`)

	res, err = h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", nil))
	require.NoError(t, err)
	b, err = json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"uri":"/"`)
	assert.Contains(t, string(b), `"method":"GET"`)
}

func TestHandle_FailingRegionDoesNotBlockOthers(t *testing.T) {
	client := &regionalSSMClient{values: map[string]string{"ca-central-1": testPool.ID}}
	v := &spyVerifier{}
	h := New(Config{RequireRegion: true}, NewParameterPool(client), v, WithLogger(quietLogger()))

	bogus := identityHeaders("good")
	bogus["region"] = "xx-bogus-1"
	for i := 0; i < 6; i++ {
		res, err := h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", bogus))
		require.NoError(t, err)
		assert.Equal(t, "/", res.Request.URI)
	}

	res, err := h.Handle(context.Background(), viewerEvent("GET", "/nodes.json", identityHeaders("good")))
	require.NoError(t, err)
	assert.Equal(t, "/nodes.json", res.Request.URI)
	assert.Equal(t, 1, v.calls)
}
