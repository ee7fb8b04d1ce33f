package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "intellidoc-backend/internal/auth"
	"intellidoc-backend/internal/documents"
	"intellidoc-backend/internal/services/health"
	"intellidoc-backend/internal/shared/config"
	"intellidoc-backend/internal/shared/metrics"
	"intellidoc-backend/internal/shared/server/middleware"
	"intellidoc-backend/internal/shared/server/respond"
	"intellidoc-backend/internal/users"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	Health          *health.Service
	DocumentHandler *documents.Handler
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
	FilesDir        string
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil, deps.Config.ObjectStoreType, deps.Config.LLMProvider, false)
	}
	r.GET("/api-health", func(c *gin.Context) {
		respond.OK(c, healthSvc.Liveness())
	})
	r.GET("/metrics", metrics.Handler())
	if deps.FilesDir != "" {
		r.Static("/files", deps.FilesDir)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if report.Status != health.StatusOK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	if deps.UserHandler != nil {
		deps.UserHandler.RegisterPublicRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(
		middleware.Auth(deps.Verifier),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor:     middleware.LLMRouteGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 30},
				"LLM":     {Rate: 0.2, Burst: 5},
			},
		}),
	)
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(protected)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(protected)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":5000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
