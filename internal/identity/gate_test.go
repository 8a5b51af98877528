package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/narekokr/text-guided-audio-split/internal/identity"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestFromTokenExtractsClaims(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "u1", "name": "Narek"})

	id, err := identity.FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, "Narek", id.Label)
}

func TestFromTokenFallsBackToSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "u1"})

	id, err := identity.FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.Label)
}

func TestFromTokenRejectsGarbage(t *testing.T) {
	_, err := identity.FromToken("not-a-token")
	require.Error(t, err)

	_, err = identity.FromToken(signedToken(t, jwt.MapClaims{"name": "no subject"}))
	require.Error(t, err)
}

func collectTransitions(t *testing.T, gate *identity.Gate) (chan *identity.Identity, chan error) {
	t.Helper()
	changes := make(chan *identity.Identity, 4)
	errs := make(chan error, 4)
	gate.Notify(
		func(id *identity.Identity) { changes <- id },
		func(err error) { errs <- err },
	)
	return changes, errs
}

func TestGateSignInSignOut(t *testing.T) {
	provider := identity.NewTokenProvider(signedToken(t, jwt.MapClaims{"sub": "u1", "name": "Narek"}))
	gate := identity.NewGate(provider, zap.NewNop())
	changes, _ := collectTransitions(t, gate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gate.Run(ctx)

	require.NoError(t, gate.BeginSignIn(ctx))
	select {
	case id := <-changes:
		require.NotNil(t, id)
		assert.Equal(t, "u1", id.UID)
	case <-time.After(time.Second):
		t.Fatal("no sign-in transition")
	}
	require.NotNil(t, gate.Current())

	require.NoError(t, gate.SignOut(ctx))
	select {
	case id := <-changes:
		assert.Nil(t, id)
	case <-time.After(time.Second):
		t.Fatal("no sign-out transition")
	}
	assert.Nil(t, gate.Current())
}

func TestGateSurfacesAuthError(t *testing.T) {
	provider := identity.NewTokenProvider("") // nothing to sign in with
	gate := identity.NewGate(provider, zap.NewNop())
	_, errs := collectTransitions(t, gate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gate.Run(ctx)

	require.Error(t, gate.BeginSignIn(ctx))
	select {
	case err := <-errs:
		var authErr *identity.AuthError
		require.ErrorAs(t, err, &authErr)
	case <-time.After(time.Second):
		t.Fatal("no auth error surfaced")
	}
}
