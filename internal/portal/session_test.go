package portal

import (
	"math/rand/v2"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	tok := jwt.New()
	for k, v := range claims {
		require.NoError(t, tok.Set(k, v))
	}
	raw, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("test-secret")))
	require.NoError(t, err)
	return string(raw)
}

func TestSessionFromTokens(t *testing.T) {
	id := signed(t, map[string]interface{}{
		jwt.IssuerKey: "https://cognito-idp.ca-central-1.amazonaws.com/ca-central-1_abc",
	})
	access := signed(t, map[string]interface{}{"client_id": "client-1", "token_use": "access"})

	sess, err := SessionFromTokens(id, access)
	require.NoError(t, err)
	assert.Equal(t, "ca-central-1", sess.Region)
	assert.Equal(t, "client-1", sess.ClientID)
	assert.Equal(t, access, sess.AccessToken)
}

func TestSessionFromTokens_Errors(t *testing.T) {
	good := signed(t, map[string]interface{}{"client_id": "c"})

	_, err := SessionFromTokens("not-a-jwt", good)
	assert.Error(t, err)

	noRegion := signed(t, map[string]interface{}{jwt.IssuerKey: "issuer"})
	_, err = SessionFromTokens(noRegion, good)
	assert.ErrorContains(t, err, "region")

	id := signed(t, map[string]interface{}{jwt.IssuerKey: "https://cognito-idp.us-west-2.amazonaws.com/p"})
	_, err = SessionFromTokens(id, signed(t, map[string]interface{}{"token_use": "access"}))
	assert.ErrorContains(t, err, "client_id")
}

func TestPalette(t *testing.T) {
	base := BaseColors()
	require.Len(t, base, 17)
	assert.Equal(t, "#79a9bf", base[0])
	assert.Equal(t, "#9c1348", base[16])

	assert.Equal(t, base, Palette(3, nil))

	rng := rand.New(rand.NewPCG(1, 2))
	got := Palette(20, rng)
	require.Len(t, got, 20)
	assert.Equal(t, base, got[:17])
	for _, c := range got[17:] {
		assert.Regexp(t, `^#[0-9a-f]{6}$`, c)
	}

	again := Palette(20, rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, got, again)
}
