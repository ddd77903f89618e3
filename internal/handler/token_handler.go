package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"miba-assist-go/pkg/token"
)

// TokenHandler issues chat tokens for new WebSocket sessions.
type TokenHandler struct {
	jwtManager *token.ChatTokenManager
}

func NewTokenHandler(jwtManager *token.ChatTokenManager) *TokenHandler {
	return &TokenHandler{jwtManager: jwtManager}
}

// GetChatToken mints a fresh chat identifier and a signed token binding to
// it. Every call starts an independent session.
func (h *TokenHandler) GetChatToken(c *gin.Context) {
	chatID := uuid.NewString()
	tokenString, err := h.jwtManager.GenerateToken(chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "failed to issue token", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"token": tokenString, "chatId": chatID},
	})
}
