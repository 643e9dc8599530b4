package trigger

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/curbwise/alerts-api/internal/handler"
	"github.com/curbwise/alerts-api/internal/service/schedule"
	"github.com/curbwise/alerts-api/internal/worker"
)

// Handler exposes the job entry points called by the external cron
// provider. Completed runs, even partially failed ones, are 200s with
// a JSON summary; only unhandled errors are 500s.
type Handler struct {
	scheduler   schedule.Service
	reconciler  *worker.Reconciler
	healthSweep *worker.HealthSweepJob
}

func NewHandler(scheduler schedule.Service, reconciler *worker.Reconciler, healthSweep *worker.HealthSweepJob) *Handler {
	return &Handler{
		scheduler:   scheduler,
		reconciler:  reconciler,
		healthSweep: healthSweep,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	{
		// Cron providers differ on verb; accept both.
		jobs.POST("/timeslots/:slot", h.RunTimeSlot)
		jobs.GET("/timeslots/:slot", h.RunTimeSlot)
		jobs.POST("/reconcile", h.RunReconcile)
		jobs.GET("/reconcile", h.RunReconcile)
		jobs.POST("/health-sweep", h.RunHealthSweep)
		jobs.GET("/health-sweep", h.RunHealthSweep)
	}
}

func (h *Handler) RunTimeSlot(c *gin.Context) {
	slot := schedule.Slot(c.Param("slot"))
	if _, err := schedule.SlotConfigFor(slot); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	summary, err := h.scheduler.Run(c.Request.Context(), slot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) RunReconcile(c *gin.Context) {
	result, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) RunHealthSweep(c *gin.Context) {
	result, skipped, err := h.healthSweep.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	if skipped {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"outcome": "skipped_no_lock"}))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
