package router

import (
	"github.com/gin-gonic/gin"

	healthHandler "github.com/curbwise/alerts-api/internal/handler/health"
	"github.com/curbwise/alerts-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.TriggerAuthMiddleware
	triggerH Handler
	adminH   Handler
	healthH  *healthHandler.Handler
}

func NewRouter(
	auth *middleware.TriggerAuthMiddleware,
	triggerH Handler,
	adminH Handler,
	healthH *healthHandler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   config.RateLimitRPS,
		Burst: config.RateLimitBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:   engine,
		auth:     auth,
		triggerH: triggerH,
		adminH:   adminH,
		healthH:  healthH,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	// Liveness, readiness, metrics stay open for the platform.
	r.healthH.RegisterRoutes(api)
	r.engine.GET("/metrics", healthHandler.MetricsHandler())

	// Everything a cron provider or operator touches needs the shared
	// secret.
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.triggerH.RegisterRoutes(protected)
	r.adminH.RegisterRoutes(protected)
	r.healthH.RegisterJobRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
