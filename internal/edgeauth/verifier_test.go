package edgeauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	testPool = Pool{ID: "ca-central-1_TestPool", Region: "ca-central-1"}
)

const testClient = "client-123"

type signer struct {
	priv jwk.Key
	set  jwk.Set
}

func newSigner(t *testing.T, kid string) *signer {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, kid))
	require.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(priv)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return &signer{priv: priv, set: set}
}

type claims map[string]interface{}

func (s *signer) token(t *testing.T, override claims) string {
	t.Helper()
	c := claims{
		jwt.IssuerKey:     testPool.Issuer(),
		jwt.SubjectKey:    "user-1",
		jwt.IssuedAtKey:   testNow.Add(-time.Minute),
		jwt.ExpirationKey: testNow.Add(time.Hour),
		"token_use":       "access",
		"client_id":       testClient,
	}
	for k, v := range override {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}

	tok := jwt.New()
	for k, v := range c {
		require.NoError(t, tok.Set(k, v))
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, s.priv))
	require.NoError(t, err)
	return string(signed)
}

func (s *signer) verifier() *CognitoVerifier {
	return NewCognitoVerifier(StaticKeys{Set: s.set}, WithVerifierClock(func() time.Time { return testNow }))
}

func TestCognitoVerifier_Valid(t *testing.T) {
	s := newSigner(t, "kid-1")
	err := s.verifier().Verify(context.Background(), s.token(t, nil), testPool, testClient)
	assert.NoError(t, err)
}

func TestCognitoVerifier_Rejects(t *testing.T) {
	s := newSigner(t, "kid-1")
	other := newSigner(t, "kid-1")

	tests := []struct {
		name     string
		token    string
		clientID string
	}{
		{"empty token", "", testClient},
		{"empty client", s.token(t, nil), ""},
		{"garbage", "not.a.jwt", testClient},
		{"wrong signer", other.token(t, nil), testClient},
		{"wrong issuer", s.token(t, claims{jwt.IssuerKey: "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_Other"}), testClient},
		{"expired", s.token(t, claims{jwt.ExpirationKey: testNow.Add(-time.Minute)}), testClient},
		{"no expiry", s.token(t, claims{jwt.ExpirationKey: nil}), testClient},
		{"id token", s.token(t, claims{"token_use": "id"}), testClient},
		{"other client", s.token(t, claims{"client_id": "client-999"}), testClient},
	}

	v := s.verifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.Verify(context.Background(), tt.token, testPool, tt.clientID))
		})
	}
}

func TestCognitoVerifier_AcceptableSkew(t *testing.T) {
	s := newSigner(t, "kid-1")
	tok := s.token(t, claims{jwt.ExpirationKey: testNow.Add(-10 * time.Second)})

	strict := s.verifier()
	assert.Error(t, strict.Verify(context.Background(), tok, testPool, testClient))

	lenient := NewCognitoVerifier(StaticKeys{Set: s.set},
		WithVerifierClock(func() time.Time { return testNow }),
		WithAcceptableSkew(time.Minute),
	)
	assert.NoError(t, lenient.Verify(context.Background(), tok, testPool, testClient))
}

type failingKeys struct{}

func (failingKeys) KeySet(context.Context, string) (jwk.Set, error) {
	return nil, assert.AnError
}

func TestCognitoVerifier_KeySourceError(t *testing.T) {
	s := newSigner(t, "kid-1")
	v := NewCognitoVerifier(failingKeys{})
	err := v.Verify(context.Background(), s.token(t, nil), testPool, testClient)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "loading JWKS")
}
