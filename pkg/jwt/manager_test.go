package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", 60)

	token, err := m.GenerateAccessToken("u1", "Alice")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Alice", claims.Nickname)
}

func TestManager_WrongSecret(t *testing.T) {
	token, err := NewManager("secret", 60).GenerateAccessToken("u1", "")
	require.NoError(t, err)

	_, err = NewManager("other", 60).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("secret", -60)
	token, err := m.GenerateAccessToken("u1", "")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_Garbage(t *testing.T) {
	_, err := NewManager("secret", 60).VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
