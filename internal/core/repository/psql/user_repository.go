package psql

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

// UserRepository implements domain.UserRepository using PostgreSQL
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id int) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil if not found, let service handle it
		}
		return nil, fmt.Errorf("query user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByPhone retrieves a user by phone number
func (r *UserRepository) GetUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone FROM users WHERE phone = $1`, phone).
		Scan(&u.ID, &u.Name, &u.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by phone: %w", err)
	}
	return &u, nil
}

// UserExists checks if a user with the given ID exists
func (r *UserRepository) UserExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// PhoneExists checks if a phone number is already registered
func (r *UserRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1)`, phone).Scan(&exists); err != nil {
		return false, fmt.Errorf("check phone exists: %w", err)
	}
	return exists, nil
}

// CreateUser inserts a user. A concurrent duplicate phone surfaces as the
// driver's unique_violation (*pgconn.PgError, SQLSTATE 23505).
func (r *UserRepository) CreateUser(ctx context.Context, name, phone string) (*domain.User, error) {
	u := domain.User{Name: name, Phone: phone}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, phone) VALUES ($1, $2) RETURNING id`, name, phone).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

// ListUsers returns one page of users, newest id first.
// A numeric search matches the exact id or a phone substring; any other
// search matches name or phone substrings.
func (r *UserRepository) ListUsers(ctx context.Context, q domain.PageQuery) ([]domain.User, int, error) {
	where, args := userFilter(q.Search)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT id, name, phone FROM users%s ORDER BY id DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.pool.Query(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, q.PageSize)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

func userFilter(search string) (string, []any) {
	if search == "" {
		return "", nil
	}
	like := "%" + search + "%"
	if id, err := strconv.Atoi(search); err == nil {
		return ` WHERE id = $1 OR phone LIKE $2`, []any{id, like}
	}
	return ` WHERE name ILIKE $1 OR phone LIKE $1`, []any{like}
}
