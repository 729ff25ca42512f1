package payout

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/handler"
	payoutService "github.com/homebase/referral-api/internal/service/payout"
)

type Handler struct {
	service *payoutService.Service
}

func NewHandler(service *payoutService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/agent-payouts/:id", h.ListByAgent)
}

// RegisterAdminRoutes mounts the payout retry behind the admin group.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/agent-payouts/:id/retry", h.Retry)
}

func (h *Handler) ListByAgent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid agent ID"))
		return
	}

	payouts, err := h.service.ListByAgent(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(payouts))
}

func (h *Handler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid payout ID"))
		return
	}

	payout, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(payout))
}
