package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatToken_RoundTrip(t *testing.T) {
	m := NewChatTokenManager("secret", 1)

	tok, err := m.GenerateToken("chat-123")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "chat-123", claims.ChatID)
}

func TestChatToken_RejectsWrongSecret(t *testing.T) {
	tok, err := NewChatTokenManager("secret-a", 1).GenerateToken("chat-123")
	require.NoError(t, err)

	_, err = NewChatTokenManager("secret-b", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestChatToken_RejectsGarbage(t *testing.T) {
	_, err := NewChatTokenManager("secret", 1).VerifyToken("not.a.token")
	assert.Error(t, err)
}

func TestChatToken_RejectsExpired(t *testing.T) {
	m := NewChatTokenManager("secret", -1)
	tok, err := m.GenerateToken("chat-123")
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.Error(t, err)
}
