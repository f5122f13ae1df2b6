package domain

import (
	"math"
	"time"
)

// User is a learner identified by a unique phone number.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Category groups sub-categories of lesson topics.
type Category struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	SubCategories []SubCategory `json:"subCategories"`
}

// SubCategory belongs to exactly one Category.
type SubCategory struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	CategoryID int    `json:"-"`
}

// Prompt is a submitted learning request and the lesson generated for it.
type Prompt struct {
	ID              int       `json:"id"`
	UserID          int       `json:"userId"`
	CategoryID      int       `json:"categoryId"`
	SubCategoryID   int       `json:"subCategoryId"`
	Prompt          string    `json:"prompt"`
	Response        string    `json:"response"`
	CreatedAt       time.Time `json:"createdAt"`
	CategoryName    *string   `json:"categoryName,omitempty"`
	SubCategoryName *string   `json:"subCategoryName,omitempty"`
}

// Page is one page of a larger ordered result set.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

// PageQuery selects a page of results with an optional free-text search.
type PageQuery struct {
	Page     int
	PageSize int
	Search   string
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps Offset within int for every allowed page size.
	MaxPage = math.MaxInt / MaxPageSize
)

// Normalize clamps page to [1, MaxPage] and page size to [1, MaxPageSize].
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = 1
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset returns the number of rows preceding the page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

type RegisterRequest struct {
	Name  string `json:"name" binding:"required,min=2"`
	Phone string `json:"phone" binding:"required,phone"`
}

type LoginRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
}

type CreatePromptRequest struct {
	UserID        int    `json:"userId" binding:"required"`
	CategoryID    int    `json:"categoryId" binding:"required"`
	SubCategoryID int    `json:"subCategoryId" binding:"required"`
	Prompt        string `json:"prompt" binding:"required,min=5"`
}
