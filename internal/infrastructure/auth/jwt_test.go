package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T, issuer string) *TokenVerifier {
	t.Helper()
	v, err := NewTokenVerifier(&configloader.Server{Auth: configloader.Auth{JWTSecret: "s3cret", Issuer: issuer}})
	require.NoError(t, err)
	return v
}

func TestVerify_RoundTrip(t *testing.T) {
	v := newVerifier(t, "lingo")
	token, err := v.Sign("user-1", time.Minute)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestVerify_Rejects(t *testing.T) {
	v := newVerifier(t, "lingo")

	_, err := v.Verify("")
	require.ErrorIs(t, err, ErrMissingToken)

	expired, err := v.Sign("user-1", -time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	other := newVerifier(t, "someone-else")
	foreign, err := other.Sign("user-1", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := v.Sign("", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(noSub)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(none)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestNewTokenVerifier_RequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier(&configloader.Server{})
	require.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	require.Equal(t, "from-query", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	require.Empty(t, TokenFromRequest(r))
}
