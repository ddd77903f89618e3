package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"miba-assist-go/pkg/es"
)

// HealthHandler reports process liveness and search backend reachability.
type HealthHandler struct {
	store es.SearchStore
}

func NewHealthHandler(store es.SearchStore) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := "up"
	code := http.StatusOK
	if err := h.store.Ping(c.Request.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "hybrid": h.store.HybridEnabled()})
}
