package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/learning-platform/config"
	"github.com/duynhne/learning-platform/internal/core/migrations"
	"github.com/duynhne/learning-platform/internal/core/seed"
)

// Connect establishes database connection pool using pgx/v5.
// pgx is used instead of lib/pq for PgBouncer/PgCat compatibility.
//
// IMPORTANT: We use SimpleProtocol mode and disable statement caching to work correctly
// with transaction-mode connection poolers (PgCat/PgBouncer). Without this, you may see:
//
//	"prepared statement stmtcache_* does not exist"
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	return ConnectDSN(ctx, cfg.BuildDSN())
}

// ConnectDSN is Connect for a ready-made connection string (tests, TEST_DATABASE_URL).
func ConnectDSN(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure for transaction-mode poolers (PgCat/PgBouncer):
	// - Use simple protocol to avoid server-side prepared statements
	// - Disable statement cache (prepared statements are connection-scoped)
	// - Disable description cache
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	poolCfg.ConnConfig.StatementCacheCapacity = 0
	poolCfg.ConnConfig.DescriptionCacheCapacity = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies the embedded schema files in lexical order.
// Every statement is idempotent, so Migrate runs on each startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sql, err := fs.ReadFile(migrations.FS, entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Seed inserts the default catalog. Existing categories and sub-categories are kept.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	catalog, err := seed.Catalog()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, cat := range catalog {
		if _, err := tx.Exec(ctx,
			`INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, cat.Name); err != nil {
			return fmt.Errorf("seed category %q: %w", cat.Name, err)
		}

		var categoryID int
		if err := tx.QueryRow(ctx, `SELECT id FROM categories WHERE name = $1`, cat.Name).Scan(&categoryID); err != nil {
			return fmt.Errorf("lookup category %q: %w", cat.Name, err)
		}

		for _, sub := range cat.SubCategories {
			if _, err := tx.Exec(ctx,
				`INSERT INTO sub_categories (name, category_id) VALUES ($1, $2)
				 ON CONFLICT (category_id, name) DO NOTHING`, sub, categoryID); err != nil {
				return fmt.Errorf("seed sub-category %q: %w", sub, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
