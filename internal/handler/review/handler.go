package review

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/handler"
	"github.com/homebase/referral-api/internal/model"
	reviewService "github.com/homebase/referral-api/internal/service/review"
)

type Handler struct {
	service *reviewService.Service
}

func NewHandler(service *reviewService.Service) *Handler {
	return &Handler{service: service}
}

// RegisterAdminRoutes mounts flag resolution behind the admin group.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	flags := r.Group("/review-flags")
	{
		flags.GET("/:id", h.Get)
		flags.PATCH("/:id", h.Resolve)
	}
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid flag ID"))
		return
	}

	flag, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(flag))
}

type resolveRequest struct {
	Status string `json:"status" binding:"required,flag_status"`
	Notes  string `json:"notes" binding:"required"`
}

func (h *Handler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid flag ID"))
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	flag, err := h.service.Resolve(c.Request.Context(), id, model.ReviewFlagStatus(req.Status), req.Notes)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(flag))
}
