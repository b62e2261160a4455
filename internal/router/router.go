package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/healthtrack-api/internal/handler/health"
	"github.com/jwalitptl/healthtrack-api/internal/handler/prometheus"
	"github.com/jwalitptl/healthtrack-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	MetricsPath    string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   *health.Handler
	metrics  *prometheus.Handler
	handlers []Handler
	config   RouterConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	config RouterConfig,
	handlers ...Handler,
) *Router {
	engine := gin.New() // Use New() instead of Default() for more control

	return &Router{
		engine:   engine,
		auth:     auth,
		health:   healthH,
		metrics:  metricsH,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	// Add core middlewares
	r.engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metrics.Middleware(),
		middleware.CORS(r.config.AllowedOrigins),
		middleware.SizeLimit(r.config.MaxBodyBytes),
		middleware.Timeout(r.config.RequestTimeout),
		middleware.ErrorHandler(),
	)

	// Public routes
	r.health.RegisterRoutes(r.engine)
	r.engine.GET(r.config.MetricsPath, r.metrics.Handler())

	// Protected routes
	api := r.engine.Group("/api/v1")
	api.Use(r.auth.Authenticate())
	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
