package identity

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s, err := Static{UserID: "alice"}.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "alice", s.UserID)

	s, err = Static{}.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Authenticated)
}

func TestTokenProvider(t *testing.T) {
	const secret = "test-secret"

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "alice"})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	s, err := TokenProvider{Secret: secret, Token: signed}.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "alice", s.UserID)
}

func TestTokenProvider_NoToken(t *testing.T) {
	s, err := TokenProvider{Secret: "test-secret"}.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Authenticated)
}

func TestTokenProvider_BadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "alice"})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = TokenProvider{Secret: "test-secret", Token: signed}.CurrentSession(context.Background())
	assert.Error(t, err)
}
