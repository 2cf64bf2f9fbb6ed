package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmart/realtime/pkg/apperr"
)

func TestTokenRoundTrip(t *testing.T) {
	a := New("secret", time.Hour)

	token, err := a.GenerateToken("alice", "Alice", "user")
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "Alice", claims.UserName)
	assert.Equal(t, "user", claims.Role)
}

func TestExpiredTokenIsUnauthenticated(t *testing.T) {
	a := New("secret", -time.Minute)
	token, err := a.GenerateToken("alice", "Alice", "user")
	require.NoError(t, err)

	_, err = a.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.CodeOf(err))
}

func TestMissingAndMalformedTokens(t *testing.T) {
	a := New("secret", time.Hour)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := a.ValidateToken(token)
		require.Error(t, err, "token %q", token)
		assert.Equal(t, apperr.Unauthenticated, apperr.CodeOf(err))
	}
}

func TestWrongSecretIsRejected(t *testing.T) {
	issuer := New("secret-a", time.Hour)
	verifier := New("secret-b", time.Hour)

	token, err := issuer.GenerateToken("alice", "Alice", "user")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.CodeOf(err))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc123token", BearerToken("Bearer abc123token"))
	assert.Equal(t, "raw", BearerToken("raw"))
	assert.Equal(t, "", BearerToken(""))
}
