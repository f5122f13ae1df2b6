package v1

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/middleware"
)

// AdminService backs the key-protected admin listing endpoints.
type AdminService struct {
	users   domain.UserRepository
	prompts domain.PromptRepository
}

func NewAdminService(users domain.UserRepository, prompts domain.PromptRepository) *AdminService {
	return &AdminService{users: users, prompts: prompts}
}

// Users pages through users, newest first.
func (s *AdminService) Users(ctx context.Context, q domain.PageQuery) (*domain.Page[domain.User], error) {
	q = q.Normalize()
	q.Search = strings.TrimSpace(q.Search)

	ctx, span := middleware.StartSpan(ctx, "admin.users", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("page", q.Page),
		attribute.Int("page_size", q.PageSize),
	))
	defer span.End()

	users, total, err := s.users.ListUsers(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &domain.Page[domain.User]{Items: users, Page: q.Page, PageSize: q.PageSize, TotalCount: total}, nil
}

// UserPrompts pages through one user's prompts, newest first. An unknown
// user yields an empty page.
func (s *AdminService) UserPrompts(ctx context.Context, userID int, q domain.PageQuery) (*domain.Page[domain.Prompt], error) {
	if userID <= 0 {
		return nil, domain.InvalidParameter("userId", userID, "userId must be a positive integer.")
	}
	q = q.Normalize()
	q.Search = strings.TrimSpace(q.Search)

	ctx, span := middleware.StartSpan(ctx, "admin.user_prompts", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("user.id", userID),
	))
	defer span.End()

	prompts, total, err := s.prompts.SearchPromptsByUser(ctx, userID, q)
	if err != nil {
		return nil, fmt.Errorf("search prompts: %w", err)
	}
	return &domain.Page[domain.Prompt]{Items: prompts, Page: q.Page, PageSize: q.PageSize, TotalCount: total}, nil
}
