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

// UserService holds registration, login and profile lookup rules.
type UserService struct {
	users domain.UserRepository
}

// NewUserService creates a new user service
func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

// Register creates a user after trimming input. A phone already on file is
// PHONE_ALREADY_EXISTS; a concurrent insert that loses the race surfaces the
// store's constraint violation unchanged.
func (s *UserService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "user.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)

	exists, err := s.users.PhoneExists(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("check phone: %w", err)
	}
	if exists {
		middleware.AddSpanAttributes(ctx, attribute.Bool("user.created", false))
		return nil, domain.PhoneAlreadyExists(phone)
	}

	user, err := s.users.CreateUser(ctx, name, phone)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("register user: %w", err)
	}

	middleware.AddSpanAttributes(ctx,
		attribute.Int("user.id", user.ID),
		attribute.Bool("user.created", true),
	)
	return user, nil
}

// Login resolves a user by phone.
func (s *UserService) Login(ctx context.Context, phone string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "user.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	phone = strings.TrimSpace(phone)
	user, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if user == nil {
		middleware.AddSpanAttributes(ctx, attribute.Bool("user.found", false))
		return nil, domain.UserPhoneNotFound(phone)
	}

	middleware.AddSpanAttributes(ctx, attribute.Bool("user.found", true))
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id int) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "user.get", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("user.id", id),
	))
	defer span.End()

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if user == nil {
		middleware.AddSpanAttributes(ctx, attribute.Bool("user.found", false))
		return nil, domain.UserNotFound(id)
	}

	middleware.AddSpanAttributes(ctx, attribute.Bool("user.found", true))
	return user, nil
}
