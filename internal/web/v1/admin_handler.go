package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/duynhne/learning-platform/internal/core/domain"
	logicv1 "github.com/duynhne/learning-platform/internal/logic/v1"
)

// AdminHandler serves the admin listings. Routes must sit behind
// middleware.AdminKeyMiddleware.
type AdminHandler struct {
	service *logicv1.AdminService
}

func NewAdminHandler(service *logicv1.AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// pageQuery reads page, pageSize and search. Out-of-range numbers are
// clamped later; only unparsable ones fail here.
func pageQuery(c *gin.Context) (domain.PageQuery, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return domain.PageQuery{}, err
	}
	size, err := queryInt(c, "pageSize", domain.DefaultPageSize)
	if err != nil {
		return domain.PageQuery{}, err
	}
	return domain.PageQuery{Page: page, PageSize: size, Search: c.Query("search")}, nil
}

// Users handles GET /api/admin/users
func (h *AdminHandler) Users(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	q, err := pageQuery(c)
	if err != nil {
		fail(c, span, err)
		return
	}

	page, err := h.service.Users(ctx, q)
	if err != nil {
		fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// UserPrompts handles GET /api/admin/users/:userId/prompts
func (h *AdminHandler) UserPrompts(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	userID, err := pathInt(c, "userId")
	if err != nil {
		fail(c, span, err)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	q, err := pageQuery(c)
	if err != nil {
		fail(c, span, err)
		return
	}

	page, err := h.service.UserPrompts(ctx, userID, q)
	if err != nil {
		fail(c, span, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
