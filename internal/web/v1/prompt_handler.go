package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/internal/core/domain"
	logicv1 "github.com/duynhne/learning-platform/internal/logic/v1"
	"github.com/duynhne/learning-platform/middleware"
)

// PromptHandler handles lesson requests and their history.
type PromptHandler struct {
	service *logicv1.PromptService
}

func NewPromptHandler(service *logicv1.PromptService) *PromptHandler {
	return &PromptHandler{service: service}
}

// Create handles POST /api/prompts. Expects Bind[domain.CreatePromptRequest].
func (h *PromptHandler) Create(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	logger := middleware.GetLoggerFromGinContext(c)

	prompt, err := h.service.Create(ctx, Payload[domain.CreatePromptRequest](c))
	if err != nil {
		fail(c, span, err)
		return
	}

	logger.Info("Prompt stored",
		zap.Int("prompt_id", prompt.ID),
		zap.Int("user_id", prompt.UserID),
	)
	c.JSON(http.StatusOK, prompt)
}

// History handles GET /api/prompts/history?userId=
// A missing userId reads as 0 and is rejected by the service.
func (h *PromptHandler) History(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	userID, err := queryInt(c, "userId", 0)
	if err != nil {
		fail(c, span, err)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	history, err := h.service.History(ctx, userID)
	if err != nil {
		fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type previewResponse struct {
	Topic  string `json:"topic"`
	Prompt string `json:"prompt"`
	Lesson string `json:"lesson"`
}

// Preview handles GET /api/ai/test?topic=&prompt=. The lesson is not stored.
func (h *PromptHandler) Preview(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	topic := strings.TrimSpace(c.Query("topic"))
	prompt := strings.TrimSpace(c.Query("prompt"))

	missing := map[string][]string{}
	if topic == "" {
		missing["topic"] = []string{"topic is required"}
	}
	if prompt == "" {
		missing["prompt"] = []string{"prompt is required"}
	}
	if len(missing) > 0 {
		fail(c, span, domain.ValidationFailed(missing))
		return
	}

	text, err := h.service.Preview(ctx, topic, prompt)
	if err != nil {
		fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, previewResponse{Topic: topic, Prompt: prompt, Lesson: text})
}
