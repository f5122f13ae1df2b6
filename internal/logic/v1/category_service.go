package v1

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/middleware"
)

type CategoryService struct {
	categories domain.CategoryRepository
}

func NewCategoryService(categories domain.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// List returns the whole catalog.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	ctx, span := middleware.StartSpan(ctx, "category.list", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	middleware.AddSpanAttributes(ctx, attribute.Int("category.count", len(cats)))
	return cats, nil
}

func (s *CategoryService) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	ctx, span := middleware.StartSpan(ctx, "category.get_by_name", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("category.name", name),
	))
	defer span.End()

	cat, err := s.categories.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get category %q: %w", name, err)
	}
	if cat == nil {
		return nil, domain.CategoryNameNotFound(name)
	}
	return cat, nil
}
