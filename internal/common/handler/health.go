package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks reachability of an external collaborator.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints. chain may be nil when the
// on-chain pathway is not deployed.
type HealthHandler struct {
	chain Pinger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(chain Pinger) *HealthHandler {
	return &HealthHandler{chain: chain}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Status string `json:"status"`
	Chain  string `json:"chain"`
}

// Health returns server health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready returns server readiness including chain RPC connectivity when the
// on-chain pathway is configured.
func (h *HealthHandler) Ready(c *gin.Context) {
	response := ReadyResponse{
		Status: "ok",
		Chain:  "disabled",
	}
	statusCode := http.StatusOK

	if h.chain != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		response.Chain = "ok"
		if err := h.chain.Ping(ctx); err != nil {
			response.Chain = "error"
			response.Status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, response)
}
