package http

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/delivery/http/middleware"
	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/usecase"
)

const defaultMaxBodyBytes = 16 << 20

// RouterDeps groups everything the router needs.
type RouterDeps struct {
	RunUC    *usecase.RunCodeUsecase
	GradeUC  *usecase.GradeCodeUsecase
	SubmitUC *usecase.SubmitGradingUsecase
	GetUC    *usecase.GetSubmissionUsecase
	Logger   *zap.Logger

	RateLimitPerMin int
	MaxBodyBytes    int64
	CORSOrigins     []string
	HealthChecks    map[string]HealthCheck

	Runtime        domain.RuntimeInfo
	RuntimeVersion VersionFunc
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(deps.CORSOrigins...))
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		runtimeHandler := NewRuntimeHandler(deps.Runtime, deps.RuntimeVersion, deps.Logger)
		v1.GET("/runtime", runtimeHandler.Get)

		limited := v1.Group("", middleware.RateLimiter(deps.RateLimitPerMin), middleware.BodySizeLimit(maxBody))

		// Synchronous run and grade
		execHandler := NewExecutionHandler(deps.RunUC, deps.GradeUC, deps.Logger)
		limited.POST("/run", execHandler.Run)
		limited.POST("/grade", execHandler.Grade)

		// Asynchronous submissions
		subHandler := NewSubmissionHandler(deps.SubmitUC, deps.GetUC, deps.Logger)
		limited.POST("/submissions", subHandler.Submit)
		v1.GET("/submissions/:id", subHandler.GetByID)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.GetUC, originChecker(deps.CORSOrigins), deps.Logger)
		v1.GET("/submissions/:id/stream", wsHandler.Stream)
	}

	return router
}

// originChecker mirrors the CORS policy for websocket upgrades.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
