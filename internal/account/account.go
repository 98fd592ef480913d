package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("account not found")

// Account is one scrapable institution account owned by a user. Alias links
// the account to its stored credential.
type Account struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Number        string
	InstitutionID string
	Alias         string
	Active        bool
	LastScrapedAt *time.Time
	CreatedAt     time.Time
}

//go:generate mockgen -source=account.go -destination=repository_mock.go -package=account
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*Account, error)
	UpdateLastScraped(ctx context.Context, id uuid.UUID, at time.Time) error
}
