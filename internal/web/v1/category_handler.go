package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	logicv1 "github.com/duynhne/learning-platform/internal/logic/v1"
)

type CategoryHandler struct {
	service *logicv1.CategoryService
}

func NewCategoryHandler(service *logicv1.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// List handles GET /api/categories
func (h *CategoryHandler) List(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	categories, err := h.service.List(ctx)
	if err != nil {
		fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// GetByName handles GET /api/categories/by-name/:name
func (h *CategoryHandler) GetByName(c *gin.Context) {
	name := c.Param("name")
	ctx, span := startSpan(c, attribute.String("category.name", name))
	defer span.End()

	category, err := h.service.GetByName(ctx, name)
	if err != nil {
		fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, category)
}
