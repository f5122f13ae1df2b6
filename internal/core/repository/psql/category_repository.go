package psql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

// CategoryRepository implements domain.CategoryRepository using PostgreSQL
type CategoryRepository struct {
	pool *pgxpool.Pool
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// ListCategories returns every category with its sub-categories, ordered by id.
func (r *CategoryRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, s.id, s.name
		FROM categories c
		LEFT JOIN sub_categories s ON s.category_id = c.id
		ORDER BY c.id, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var (
			catID   int
			catName string
			subID   *int
			subName *string
		)
		if err := rows.Scan(&catID, &catName, &subID, &subName); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if n := len(categories); n == 0 || categories[n-1].ID != catID {
			categories = append(categories, domain.Category{ID: catID, Name: catName, SubCategories: []domain.SubCategory{}})
		}
		if subID != nil {
			last := &categories[len(categories)-1]
			last.SubCategories = append(last.SubCategories, domain.SubCategory{ID: *subID, Name: *subName, CategoryID: catID})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// GetCategoryByName looks a category up by exact name.
func (r *CategoryRepository) GetCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	var c domain.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM categories WHERE name = $1`, name).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query category by name: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM sub_categories WHERE category_id = $1 ORDER BY id`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("query sub-categories: %w", err)
	}
	defer rows.Close()

	c.SubCategories = []domain.SubCategory{}
	for rows.Next() {
		s := domain.SubCategory{CategoryID: c.ID}
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan sub-category: %w", err)
		}
		c.SubCategories = append(c.SubCategories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sub-categories: %w", err)
	}
	return &c, nil
}

func (r *CategoryRepository) CategoryExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check category exists: %w", err)
	}
	return exists, nil
}

func (r *CategoryRepository) GetSubCategory(ctx context.Context, id int) (*domain.SubCategory, error) {
	var s domain.SubCategory
	err := r.pool.QueryRow(ctx, `SELECT id, name, category_id FROM sub_categories WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query sub-category %d: %w", id, err)
	}
	return &s, nil
}
