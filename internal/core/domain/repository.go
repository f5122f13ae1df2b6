package domain

import "context"

// UserRepository defines the interface for user data access.
// Lookups return (nil, nil) when the row does not exist.
type UserRepository interface {
	GetUser(ctx context.Context, id int) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	UserExists(ctx context.Context, id int) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	CreateUser(ctx context.Context, name, phone string) (*User, error)
	ListUsers(ctx context.Context, q PageQuery) ([]User, int, error)
}

// CategoryRepository defines read access to the category catalog.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryByName(ctx context.Context, name string) (*Category, error)
	CategoryExists(ctx context.Context, id int) (bool, error)
	GetSubCategory(ctx context.Context, id int) (*SubCategory, error)
}

// PromptRepository defines the interface for prompt history.
type PromptRepository interface {
	CreatePrompt(ctx context.Context, p *Prompt) error
	ListPromptsByUser(ctx context.Context, userID int) ([]Prompt, error)
	SearchPromptsByUser(ctx context.Context, userID int, q PageQuery) ([]Prompt, int, error)
}

// Store bundles the repositories with a connectivity probe.
type Store interface {
	UserRepository
	CategoryRepository
	PromptRepository
	Ping(ctx context.Context) error
}
