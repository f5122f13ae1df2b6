package psql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

// PromptRepository implements domain.PromptRepository using PostgreSQL
type PromptRepository struct {
	pool *pgxpool.Pool
}

func NewPromptRepository(pool *pgxpool.Pool) *PromptRepository {
	return &PromptRepository{pool: pool}
}

// CreatePrompt persists p and fills in its ID and CreatedAt.
func (r *PromptRepository) CreatePrompt(ctx context.Context, p *domain.Prompt) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO prompts (user_id, category_id, sub_category_id, input, response)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.UserID, p.CategoryID, p.SubCategoryID, p.Prompt, p.Response,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

const promptColumns = `
	SELECT p.id, p.user_id, p.category_id, p.sub_category_id, p.input, p.response, p.created_at,
	       c.name, s.name
	FROM prompts p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN sub_categories s ON s.id = p.sub_category_id`

// ListPromptsByUser returns the user's full history, newest first.
func (r *PromptRepository) ListPromptsByUser(ctx context.Context, userID int) ([]domain.Prompt, error) {
	rows, err := r.pool.Query(ctx, promptColumns+`
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return collectPrompts(rows)
}

// SearchPromptsByUser returns one page of the user's prompts, newest first,
// optionally filtered by a substring of the prompt or the response.
func (r *PromptRepository) SearchPromptsByUser(ctx context.Context, userID int, q domain.PageQuery) ([]domain.Prompt, int, error) {
	where := ` WHERE p.user_id = $1`
	args := []any{userID}
	if q.Search != "" {
		where += ` AND (p.input ILIKE $2 OR p.response ILIKE $2)`
		args = append(args, "%"+q.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prompts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`%s%s ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d`, promptColumns, where, n+1, n+2)
	rows, err := r.pool.Query(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("search prompts: %w", err)
	}
	prompts, err := collectPrompts(rows)
	if err != nil {
		return nil, 0, err
	}
	return prompts, total, nil
}

func collectPrompts(rows pgx.Rows) ([]domain.Prompt, error) {
	defer rows.Close()

	prompts := []domain.Prompt{}
	for rows.Next() {
		var p domain.Prompt
		if err := rows.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.SubCategoryID, &p.Prompt, &p.Response, &p.CreatedAt,
			&p.CategoryName, &p.SubCategoryName); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompts: %w", err)
	}
	return prompts, nil
}
