// Package psql implements the domain repositories on PostgreSQL via pgx.
package psql

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

// Store bundles the PostgreSQL repositories behind domain.Store.
type Store struct {
	*UserRepository
	*CategoryRepository
	*PromptRepository
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		UserRepository:     NewUserRepository(pool),
		CategoryRepository: NewCategoryRepository(pool),
		PromptRepository:   NewPromptRepository(pool),
		pool:               pool,
	}
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
