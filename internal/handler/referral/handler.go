package referral

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/handler"
	referralService "github.com/homebase/referral-api/internal/service/referral"
)

type Handler struct {
	service *referralService.Service
}

func NewHandler(service *referralService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/referrals", h.Register)
	r.GET("/referral-summary/:id", h.Summary)
	r.GET("/referrals", h.ListByReferrer)
}

// RegisterAdminRoutes mounts the fraud void behind the admin group.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/referrals/:id/void", h.Void)
}

type registerRequest struct {
	RefereeID    uuid.UUID `json:"referee_id" binding:"required"`
	ReferralCode string    `json:"referral_code" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	rel, err := h.service.Register(c.Request.Context(), req.RefereeID, req.ReferralCode)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(rel))
}

func (h *Handler) Summary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user ID"))
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) ListByReferrer(c *gin.Context) {
	id, err := uuid.Parse(c.Query("referrer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid referrer_id"))
		return
	}

	rels, err := h.service.ListByReferrer(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(rels))
}

type voidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) Void(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid relationship ID"))
		return
	}

	var req voidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.Void(c.Request.Context(), id, req.Reason); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"voided": true}))
}
