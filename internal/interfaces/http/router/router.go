// Package router wires HTTP routes onto the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/storepulse/backend/internal/infrastructure/logger"
	"github.com/storepulse/backend/internal/infrastructure/metrics"
	"github.com/storepulse/backend/internal/interfaces/http/handler"
	"github.com/storepulse/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	health     *handler.HealthHandler
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, health *handler.HealthHandler) *Router {
	return &Router{
		engine:     engine,
		apiVersion: "v1",
		health:     health,
	}
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	metrics.Register()

	r.engine.GET("/health", r.health.Health)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// NewEngine builds a gin engine with the standard middleware stack:
// request-id, access log, panic recovery, request metrics and a body limit.
func NewEngine(log *zap.Logger, maxBodyBytes int64) *gin.Engine {
	engine := gin.New()
	engine.Use(
		logger.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Metrics(),
		middleware.BodyLimit(maxBodyBytes),
	)
	return engine
}
