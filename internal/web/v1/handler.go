package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/internal/core/domain"
	logicv1 "github.com/duynhne/learning-platform/internal/logic/v1"
	"github.com/duynhne/learning-platform/middleware"
)

// startSpan opens the web-layer span of a handler.
func startSpan(c *gin.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("route", c.FullPath()),
	}, attrs...)
	return middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(attrs...))
}

// fail hands err to the ErrorTranslator and records it on the span.
func fail(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	_ = c.Error(err)
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	service *logicv1.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(service *logicv1.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Register handles POST /api/users/register. Expects Bind[domain.RegisterRequest].
func (h *UserHandler) Register(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	logger := middleware.GetLoggerFromGinContext(c)

	user, err := h.service.Register(ctx, Payload[domain.RegisterRequest](c))
	if err != nil {
		fail(c, span, err)
		return
	}

	logger.Info("User registered", zap.Int("user_id", user.ID))
	c.Header("Location", "/api/users/"+strconv.Itoa(user.ID))
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /api/users/login. Expects Bind[domain.LoginRequest].
func (h *UserHandler) Login(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	logger := middleware.GetLoggerFromGinContext(c)

	user, err := h.service.Login(ctx, Payload[domain.LoginRequest](c).Phone)
	if err != nil {
		fail(c, span, err)
		return
	}

	logger.Info("User logged in", zap.Int("user_id", user.ID))
	c.JSON(http.StatusOK, user)
}

// GetUser handles GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	id, err := pathInt(c, "id")
	if err != nil {
		fail(c, span, err)
		return
	}
	span.SetAttributes(attribute.Int("user.id", id))

	user, err := h.service.GetUser(ctx, id)
	if err != nil {
		fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
