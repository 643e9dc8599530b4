package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curbwise/alerts-api/internal/handler"
	healthsvc "github.com/curbwise/alerts-api/internal/service/health"
)

type Handler struct {
	db       *sqlx.DB
	monitor  *healthsvc.Monitor
	registry *healthsvc.Registry
}

func NewHandler(db *sqlx.DB, monitor *healthsvc.Monitor, registry *healthsvc.Registry) *Handler {
	return &Handler{db: db, monitor: monitor, registry: registry}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

// RegisterJobRoutes exposes per-job health snapshots; mounted behind
// the trigger credential because they leak operational detail.
func (h *Handler) RegisterJobRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs/health", h.JobHealth)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "alive"}))
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, handler.NewErrorResponse("database unreachable"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "ready"}))
}

func (h *Handler) JobHealth(c *gin.Context) {
	snapshots, err := h.monitor.ComputeAll(c.Request.Context(), h.registry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(snapshots))
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
