package v1

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/internal/lesson"
	"github.com/duynhne/learning-platform/middleware"
)

// PromptService creates lessons for learner prompts and serves their history.
type PromptService struct {
	users      domain.UserRepository
	categories domain.CategoryRepository
	prompts    domain.PromptRepository
	generator  lesson.Generator
	timeout    time.Duration
}

// NewPromptService wires the service. A zero timeout leaves generation
// bounded only by the request context.
func NewPromptService(
	users domain.UserRepository,
	categories domain.CategoryRepository,
	prompts domain.PromptRepository,
	generator lesson.Generator,
	timeout time.Duration,
) *PromptService {
	return &PromptService{
		users:      users,
		categories: categories,
		prompts:    prompts,
		generator:  generator,
		timeout:    timeout,
	}
}

// Create validates references in a fixed order (user, category,
// sub-category, parent match), stopping at the first failure, then
// generates and stores the lesson.
func (s *PromptService) Create(ctx context.Context, req domain.CreatePromptRequest) (*domain.Prompt, error) {
	ctx, span := middleware.StartSpan(ctx, "prompt.create", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("user.id", req.UserID),
		attribute.Int("category.id", req.CategoryID),
		attribute.Int("subcategory.id", req.SubCategoryID),
	))
	defer span.End()

	ok, err := s.users.UserExists(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return nil, domain.UserNotFound(req.UserID)
	}

	ok, err = s.categories.CategoryExists(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return nil, domain.CategoryNotFound(req.CategoryID)
	}

	sub, err := s.categories.GetSubCategory(ctx, req.SubCategoryID)
	if err != nil {
		return nil, fmt.Errorf("get sub-category: %w", err)
	}
	if sub == nil {
		return nil, domain.SubCategoryNotFound(req.SubCategoryID)
	}
	if sub.CategoryID != req.CategoryID {
		return nil, domain.SubCategoryMismatch(req.SubCategoryID, req.CategoryID, sub.CategoryID)
	}

	text, err := s.generate(ctx, sub.Name, req.Prompt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate lesson: %w", err)
	}

	p := &domain.Prompt{
		UserID:        req.UserID,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		Prompt:        req.Prompt,
		Response:      text,
	}
	if err := s.prompts.CreatePrompt(ctx, p); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save prompt: %w", err)
	}

	middleware.AddSpanAttributes(ctx, attribute.Int("prompt.id", p.ID))
	return p, nil
}

// History returns every prompt of an existing user, newest first.
func (s *PromptService) History(ctx context.Context, userID int) ([]domain.Prompt, error) {
	ctx, span := middleware.StartSpan(ctx, "prompt.history", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("user.id", userID),
	))
	defer span.End()

	if userID <= 0 {
		return nil, domain.InvalidParameter("userId", userID, "userId must be a positive integer.")
	}

	ok, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return nil, domain.UserNotFound(userID)
	}

	history, err := s.prompts.ListPromptsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	middleware.AddSpanAttributes(ctx, attribute.Int("prompt.count", len(history)))
	return history, nil
}

// Preview generates a lesson without storing it.
func (s *PromptService) Preview(ctx context.Context, topic, prompt string) (string, error) {
	ctx, span := middleware.StartSpan(ctx, "prompt.preview", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("lesson.topic", topic),
	))
	defer span.End()

	return s.generate(ctx, topic, prompt)
}

func (s *PromptService) generate(ctx context.Context, topic, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.generator.Generate(ctx, topic, prompt)
}
