package identity

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Identity is the authenticated user as seen by the controller.
// Supplied externally; immutable here.
type Identity struct {
	UID   string
	Label string
}

// Event is one transition of the provider's auth state stream. A
// non-empty Token means signed in; an empty Token means signed out.
// Err reports a provider-side sign-in failure.
type Event struct {
	Token string
	Err   error
}

// Provider abstracts the external identity provider: a stream of auth
// transitions plus the two imperative actions. Its internal sign-in
// protocol is not our concern.
type Provider interface {
	Events() <-chan Event
	BeginSignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// AuthError reports an identity-provider failure during sign-in. It is
// surfaced in a dedicated slot, never in the conversation log.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Reason
}

// FromToken projects the provider's signed ID token into an Identity.
// The provider already authenticated the user; only the claims are
// extracted here, the signature is its business.
func FromToken(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "parse identity token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("identity token has no subject")
	}

	label := sub
	if name, ok := claims["name"].(string); ok && name != "" {
		label = name
	}

	return &Identity{UID: sub, Label: label}, nil
}
