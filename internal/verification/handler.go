package verification

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/zkgate/proof-verification-gateway/internal/common/errors"
	"github.com/zkgate/proof-verification-gateway/internal/common/middleware"
)

// Handler handles HTTP requests for proof verification
type Handler struct {
	service *Service
}

// NewHandler creates a new verification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers verification routes on the router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	verify := rg.Group("/verify")
	{
		verify.POST("", h.Verify)
		verify.GET("/stats", h.Stats)
	}
}

// Verify handles POST /verify
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, apperrors.InvalidInput(err.Error()))
		return
	}

	result, err := h.service.Verify(c.Request.Context(), &req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	middleware.RespondOK(c, result)
}

// Stats handles GET /verify/stats
func (h *Handler) Stats(c *gin.Context) {
	middleware.RespondOK(c, h.service.Stats())
}
