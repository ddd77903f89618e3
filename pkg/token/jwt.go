// Package token issues and verifies the JWTs that gate the chat WebSocket.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ChatTokenManager signs short-lived tokens that bind a WebSocket connection
// to a chat identifier.
type ChatTokenManager struct {
	secretKey []byte
	tokenDur  time.Duration
}

// ChatClaims carries the chat identifier plus the standard registered claims.
type ChatClaims struct {
	ChatID string `json:"chatId"`
	jwt.RegisteredClaims
}

// NewChatTokenManager creates a manager with the given signing secret and
// token lifetime in hours.
func NewChatTokenManager(secret string, expireHours int) *ChatTokenManager {
	return &ChatTokenManager{
		secretKey: []byte(secret),
		tokenDur:  time.Duration(expireHours) * time.Hour,
	}
}

// GenerateToken signs a new token for the given chat identifier.
func (m *ChatTokenManager) GenerateToken(chatID string) (string, error) {
	claims := ChatClaims{
		ChatID: chatID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secretKey)
}

// VerifyToken validates a token string and returns its claims.
func (m *ChatTokenManager) VerifyToken(tokenString string) (*ChatClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &ChatClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*ChatClaims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
