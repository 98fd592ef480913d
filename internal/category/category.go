package category

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("category not found")
	ErrDuplicateName = errors.New("category name already exists")
)

// UnknownName is the name of the distinguished fallback category. It always
// exists (created lazily on the first cache load) and is never auto-deleted.
const UnknownName = "Unknown"

// Category is a user-facing spending category. Keywords are matched in
// stored order against normalized transaction descriptions.
type Category struct {
	ID        uuid.UUID
	Name      string
	ParentID  *uuid.UUID
	Keywords  []string
	CreatedAt time.Time
}

//go:generate mockgen -source=category.go -destination=repository_mock.go -package=category
type Repository interface {
	ListCategories(ctx context.Context) ([]*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	UpdateKeywords(ctx context.Context, id uuid.UUID, keywords []string) error
}
