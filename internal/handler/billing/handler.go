package billing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/handler"
	"github.com/homebase/referral-api/internal/model"
	billingService "github.com/homebase/referral-api/internal/service/billing"
)

type Handler struct {
	service *billingService.Service
}

func NewHandler(service *billingService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	events := r.Group("/billing-events")
	{
		events.POST("", h.ProcessEvent)
		events.POST("/batch", h.ProcessBatch)
	}
}

// RegisterAdminRoutes mounts the audit-trail read behind the admin group.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/accounts/:id/billing-history", h.History)
}

type billingEventRequest struct {
	AccountID   uuid.UUID `json:"account_id" binding:"required"`
	InvoiceID   string    `json:"invoice_id" binding:"required"`
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
	Status      string    `json:"status" binding:"required,cycle_result"`
	AmountCents int64     `json:"amount_cents" binding:"min=0"`
}

func (r *billingEventRequest) toModel() *model.BillingEvent {
	return &model.BillingEvent{
		AccountID:   r.AccountID,
		InvoiceID:   r.InvoiceID,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		Status:      model.CycleResult(r.Status),
		AmountCents: r.AmountCents,
	}
}

func (h *Handler) ProcessEvent(c *gin.Context) {
	var req billingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	hist, err := h.service.ProcessEvent(c.Request.Context(), req.toModel())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(hist))
}

type batchRequest struct {
	Events []billingEventRequest `json:"events" binding:"required,min=1,dive"`
}

type batchResponse struct {
	Processed int               `json:"processed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// ProcessBatch applies a provider batch. One account's bad event never blocks
// the rest; per-account failures come back in the body with a 207.
func (h *Handler) ProcessBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	events := make([]*model.BillingEvent, 0, len(req.Events))
	for i := range req.Events {
		events = append(events, req.Events[i].toModel())
	}

	failures := h.service.ProcessBatch(c.Request.Context(), events)
	resp := batchResponse{Processed: len(events) - len(failures)}
	if len(failures) > 0 {
		resp.Failed = make(map[string]string, len(failures))
		for accountID, err := range failures {
			resp.Failed[accountID] = err.Error()
		}
		c.JSON(http.StatusMultiStatus, handler.NewSuccessResponse(resp))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid account ID"))
		return
	}

	hist, err := h.service.HistoryByAccount(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(hist))
}
