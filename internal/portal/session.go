package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// SessionProvider yields the identity presented to the graph CDN.
type SessionProvider interface {
	Session(ctx context.Context) (types.Session, error)
}

// StaticSession always returns the same session.
type StaticSession types.Session

// Session returns s.
func (s StaticSession) Session(context.Context) (types.Session, error) {
	return types.Session(s), nil
}

// SessionFromTokens builds a session from a signed-in user's Cognito
// tokens. The region is read from the ID token issuer and the client id from
// the access token. Signatures are not checked here; the edge does that.
func SessionFromTokens(idToken, accessToken string) (types.Session, error) {
	id, err := jwt.ParseInsecure([]byte(idToken))
	if err != nil {
		return types.Session{}, fmt.Errorf("portal: parsing id token: %w", err)
	}
	region, err := issuerRegion(id.Issuer())
	if err != nil {
		return types.Session{}, err
	}

	access, err := jwt.ParseInsecure([]byte(accessToken))
	if err != nil {
		return types.Session{}, fmt.Errorf("portal: parsing access token: %w", err)
	}
	v, ok := access.Get("client_id")
	clientID, _ := v.(string)
	if !ok || clientID == "" {
		return types.Session{}, fmt.Errorf("portal: access token has no client_id")
	}

	return types.Session{
		AccessToken: accessToken,
		ClientID:    clientID,
		Region:      region,
	}, nil
}

// issuerRegion extracts the region from
// https://cognito-idp.<region>.amazonaws.com/<pool>.
func issuerRegion(iss string) (string, error) {
	parts := strings.Split(iss, ".")
	if len(parts) < 3 || parts[1] == "" {
		return "", fmt.Errorf("portal: cannot read region from issuer %q", iss)
	}
	return parts[1], nil
}
