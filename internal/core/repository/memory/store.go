// Package memory implements domain.Store in process memory. It backs local
// runs without DB_HOST and the service and handler tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/internal/core/seed"
)

// Store is a mutex-guarded domain.Store. The zero value is not usable; use New.
type Store struct {
	mu            sync.RWMutex
	users         []domain.User
	phones        map[string]int
	categories    []domain.Category
	subCategories map[int]domain.SubCategory
	prompts       []domain.Prompt
	nextUserID    int
	nextPromptID  int
	now           func() time.Time
}

var _ domain.Store = (*Store)(nil)

// New returns an empty store holding the given catalog.
func New(catalog []seed.CategorySeed) *Store {
	s := &Store{
		phones:        make(map[string]int),
		subCategories: make(map[int]domain.SubCategory),
		nextUserID:    1,
		nextPromptID:  1,
		now:           time.Now,
	}

	subID := 1
	for i, c := range catalog {
		cat := domain.Category{ID: i + 1, Name: c.Name, SubCategories: []domain.SubCategory{}}
		for _, name := range c.SubCategories {
			sub := domain.SubCategory{ID: subID, Name: name, CategoryID: cat.ID}
			cat.SubCategories = append(cat.SubCategories, sub)
			s.subCategories[subID] = sub
			subID++
		}
		s.categories = append(s.categories, cat)
	}
	return s
}

// NewSeeded returns a store holding the embedded default catalog.
func NewSeeded() (*Store, error) {
	catalog, err := seed.Catalog()
	if err != nil {
		return nil, err
	}
	return New(catalog), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetUser(_ context.Context, id int) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.phones[phone]
	if !ok {
		return nil, nil
	}
	for _, u := range s.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) UserExists(ctx context.Context, id int) (bool, error) {
	u, err := s.GetUser(ctx, id)
	return u != nil, err
}

func (s *Store) PhoneExists(_ context.Context, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.phones[phone]
	return ok, nil
}

// CreateUser enforces phone uniqueness the way the users_phone_key constraint does.
func (s *Store) CreateUser(_ context.Context, name, phone string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.phones[phone]; dup {
		return nil, fmt.Errorf("insert user: users_phone_key: %w", domain.ErrConstraintViolation)
	}

	u := domain.User{ID: s.nextUserID, Name: name, Phone: phone}
	s.nextUserID++
	s.users = append(s.users, u)
	s.phones[phone] = u.ID
	return &u, nil
}

// ListUsers mirrors the SQL repository: newest id first, numeric search
// matches id or phone, other searches match name (case-insensitive) or phone.
func (s *Store) ListUsers(_ context.Context, q domain.PageQuery) ([]domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.User, 0, len(s.users))
	for i := len(s.users) - 1; i >= 0; i-- {
		if u := s.users[i]; matchUser(u, q.Search) {
			matched = append(matched, u)
		}
	}
	return paginate(matched, q), len(matched), nil
}

func matchUser(u domain.User, search string) bool {
	if search == "" {
		return true
	}
	if id, err := strconv.Atoi(search); err == nil {
		return u.ID == id || strings.Contains(u.Phone, search)
	}
	return containsFold(u.Name, search) || strings.Contains(u.Phone, search)
}

func (s *Store) ListCategories(context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = cloneCategory(c)
	}
	return out, nil
}

func (s *Store) GetCategoryByName(_ context.Context, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.Name == name {
			c := cloneCategory(c)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) CategoryExists(_ context.Context, id int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.category(id)
	return ok, nil
}

func (s *Store) GetSubCategory(_ context.Context, id int) (*domain.SubCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subCategories[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

// CreatePrompt rejects dangling references like the SQL foreign keys do.
func (s *Store) CreatePrompt(_ context.Context, p *domain.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.phoneOf(p.UserID); !ok {
		return fmt.Errorf("insert prompt: user %d: %w", p.UserID, domain.ErrConstraintViolation)
	}
	if _, ok := s.category(p.CategoryID); !ok {
		return fmt.Errorf("insert prompt: category %d: %w", p.CategoryID, domain.ErrConstraintViolation)
	}
	if _, ok := s.subCategories[p.SubCategoryID]; !ok {
		return fmt.Errorf("insert prompt: sub-category %d: %w", p.SubCategoryID, domain.ErrConstraintViolation)
	}

	p.ID = s.nextPromptID
	p.CreatedAt = s.now().UTC()
	s.nextPromptID++
	s.prompts = append(s.prompts, *p)
	return nil
}

func (s *Store) ListPromptsByUser(_ context.Context, userID int) ([]domain.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userPrompts(userID, ""), nil
}

func (s *Store) SearchPromptsByUser(_ context.Context, userID int, q domain.PageQuery) ([]domain.Prompt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.userPrompts(userID, q.Search)
	return paginate(matched, q), len(matched), nil
}

// userPrompts returns the user's prompts newest first with category names
// attached. Caller holds at least the read lock.
func (s *Store) userPrompts(userID int, search string) []domain.Prompt {
	out := []domain.Prompt{}
	for _, p := range s.prompts {
		if p.UserID != userID {
			continue
		}
		if search != "" && !containsFold(p.Prompt, search) && !containsFold(p.Response, search) {
			continue
		}
		if c, ok := s.category(p.CategoryID); ok {
			name := c.Name
			p.CategoryName = &name
		}
		if sub, ok := s.subCategories[p.SubCategoryID]; ok {
			name := sub.Name
			p.SubCategoryName = &name
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) category(id int) (domain.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (s *Store) phoneOf(userID int) (string, bool) {
	for _, u := range s.users {
		if u.ID == userID {
			return u.Phone, true
		}
	}
	return "", false
}

func cloneCategory(c domain.Category) domain.Category {
	subs := make([]domain.SubCategory, len(c.SubCategories))
	copy(subs, c.SubCategories)
	c.SubCategories = subs
	return c
}

func paginate[T any](items []T, q domain.PageQuery) []T {
	start := q.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + q.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
