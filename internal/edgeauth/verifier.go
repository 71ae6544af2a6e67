package edgeauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenUseAccess is the only token_use accepted at the edge.
const TokenUseAccess = "access"

// Verifier checks a bearer token against a user pool and app client.
type Verifier interface {
	Verify(ctx context.Context, token string, pool Pool, clientID string) error
}

// KeySource supplies the signing keys published at a JWKS URL.
type KeySource interface {
	KeySet(ctx context.Context, url string) (jwk.Set, error)
}

// CognitoVerifier validates Cognito access tokens: signature against the
// pool's JWKS, issuer, expiry, token_use and client_id.
type CognitoVerifier struct {
	keys KeySource
	now  func() time.Time
	skew time.Duration
}

// VerifierOption configures a CognitoVerifier.
type VerifierOption func(*CognitoVerifier)

// WithVerifierClock overrides the clock used for expiry checks.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *CognitoVerifier) { v.now = now }
}

// WithAcceptableSkew tolerates clock drift when checking exp/nbf/iat.
func WithAcceptableSkew(d time.Duration) VerifierOption {
	return func(v *CognitoVerifier) { v.skew = d }
}

// NewCognitoVerifier creates a verifier that loads keys from src.
func NewCognitoVerifier(src KeySource, opts ...VerifierOption) *CognitoVerifier {
	v := &CognitoVerifier{keys: src, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify returns nil if token is a valid access token for pool and clientID.
func (v *CognitoVerifier) Verify(ctx context.Context, token string, pool Pool, clientID string) error {
	if token == "" {
		return fmt.Errorf("edgeauth: empty token")
	}
	if clientID == "" {
		return fmt.Errorf("edgeauth: empty client id")
	}

	set, err := v.keys.KeySet(ctx, pool.JWKSURL())
	if err != nil {
		return fmt.Errorf("edgeauth: loading JWKS for %s: %w", pool.ID, err)
	}

	tok, err := jwt.Parse([]byte(token), jwt.WithKeySet(set), jwt.WithValidate(false))
	if err != nil {
		return fmt.Errorf("edgeauth: parsing token: %w", err)
	}

	if err := jwt.Validate(tok,
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithIssuer(pool.Issuer()),
		jwt.WithClaimValue("token_use", TokenUseAccess),
		jwt.WithClaimValue("client_id", clientID),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	); err != nil {
		return fmt.Errorf("edgeauth: validating token: %w", err)
	}
	return nil
}

// JWKSCache fetches key sets on first use and refreshes them in the
// background for the lifetime of ctx passed to NewJWKSCache.
type JWKSCache struct {
	mu    sync.Mutex
	cache *jwk.Cache
}

// NewJWKSCache creates a cache whose refresh goroutine stops with ctx.
func NewJWKSCache(ctx context.Context) *JWKSCache {
	return &JWKSCache{cache: jwk.NewCache(ctx)}
}

// KeySet returns the cached key set for url, registering it on first use.
func (c *JWKSCache) KeySet(ctx context.Context, url string) (jwk.Set, error) {
	c.mu.Lock()
	if !c.cache.IsRegistered(url) {
		if err := c.cache.Register(url, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("registering %s: %w", url, err)
		}
	}
	c.mu.Unlock()
	return c.cache.Get(ctx, url)
}

// StaticKeys serves a fixed key set regardless of URL.
type StaticKeys struct {
	Set jwk.Set
}

// KeySet returns the fixed set.
func (s StaticKeys) KeySet(context.Context, string) (jwk.Set, error) {
	return s.Set, nil
}
