package v1

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/internal/lesson"
	logicv1 "github.com/duynhne/learning-platform/internal/logic/v1"
	"github.com/duynhne/learning-platform/middleware"
)

// RouterOptions carries everything the HTTP surface depends on.
type RouterOptions struct {
	Logger      *zap.Logger
	ServiceName string

	// AdminKey guards /api/admin. Empty makes every admin call SERVER_MISCONFIG.
	AdminKey string
	// ExposeInternal adds exception type and message to INTERNAL_ERROR
	// responses. Only set in development.
	ExposeInternal bool

	Store         domain.Store
	Generator     lesson.Generator
	LessonTimeout time.Duration

	// Draining is flipped by the shutdown sequence; may be nil.
	Draining *atomic.Bool

	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string
}

// NewRouter builds the gin engine with the full middleware chain and all routes.
// No gin.Recovery: ErrorTranslator recovers handler panics, and the
// http.ErrAbortHandler it raises for started responses must reach net/http.
func NewRouter(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	users := NewUserHandler(logicv1.NewUserService(opts.Store))
	categories := NewCategoryHandler(logicv1.NewCategoryService(opts.Store))
	prompts := NewPromptHandler(logicv1.NewPromptService(opts.Store, opts.Store, opts.Store, opts.Generator, opts.LessonTimeout))
	admin := NewAdminHandler(logicv1.NewAdminService(opts.Store, opts.Store))
	health := NewHealthHandler(opts.Store, opts.Draining)

	r := gin.New()

	// Tracing first for context propagation, logging before metrics, the
	// translator innermost so every middleware sees the final status.
	r.Use(middleware.TracingMiddleware(opts.ServiceName))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.ErrorTranslator(logger, opts.ExposeInternal))

	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(domain.RouteNotFound(c.Request.Method, c.Request.URL.Path))
	})

	r.GET("/health", health.Live)
	r.GET("/ready", health.Ready)
	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/users/register", Bind[domain.RegisterRequest](), users.Register)
		api.POST("/users/login", Bind[domain.LoginRequest](), users.Login)
		api.GET("/users/:id", users.GetUser)

		api.GET("/categories", categories.List)
		api.GET("/categories/by-name/:name", categories.GetByName)

		api.POST("/prompts", Bind[domain.CreatePromptRequest](), prompts.Create)
		api.GET("/prompts/history", prompts.History)

		api.GET("/ai/test", prompts.Preview)
		api.GET("/health/db", health.Database)

		adminGroup := api.Group("/admin")
		adminGroup.Use(middleware.AdminKeyMiddleware(opts.AdminKey))
		{
			adminGroup.GET("/users", admin.Users)
			adminGroup.GET("/users/:userId/prompts", admin.UserPrompts)
		}
	}

	return r
}
