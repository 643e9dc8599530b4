package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curbwise/alerts-api/internal/handler"
	"github.com/curbwise/alerts-api/internal/service/schedule"
	"github.com/curbwise/alerts-api/internal/service/sender"
)

// Handler is the operator surface. Re-opening a failed delivery is the
// one sanctioned way a failed record ever becomes eligible again.
type Handler struct {
	sender  sender.Service
	digests *schedule.DigestBuilder
}

func NewHandler(sendSvc sender.Service, digests *schedule.DigestBuilder) *Handler {
	return &Handler{sender: sendSvc, digests: digests}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	{
		admin.POST("/deliveries/retry", h.RetryDelivery)
	}
}

type retryDeliveryRequest struct {
	Recipient        string `json:"recipient" binding:"required,email"`
	NotificationType string `json:"notification_type" binding:"required"`
	TargetDate       string `json:"target_date" binding:"required,datetime=2006-01-02"`
}

func (h *Handler) RetryDelivery(c *gin.Context) {
	var req retryDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	targetDate, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid target date"))
		return
	}

	subject, body, ok, err := h.digests.Build(c.Request.Context(), req.Recipient, req.NotificationType, targetDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, handler.NewErrorResponse("no digest content available for this recipient"))
		return
	}

	result, err := h.sender.Retry(c.Request.Context(), req.Recipient, req.NotificationType, targetDate, &sender.Message{
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
