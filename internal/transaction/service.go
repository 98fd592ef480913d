package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	// InsertTransaction persists a transaction. It reports false without
	// error when a row with the same (account_id, hash) already exists, so
	// concurrent ingestions of the same record stay idempotent.
	InsertTransaction(ctx context.Context, tx *Transaction) (bool, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)
	UpdateCategory(ctx context.Context, id, categoryID uuid.UUID) error
	TotalsByCategory(ctx context.Context, accountIDs []uuid.UUID, start, end *time.Time) ([]CategoryTotal, error)
}

// ListFilter narrows ListTransactions. Nil fields are not applied.
type ListFilter struct {
	AccountIDs []uuid.UUID
	Status     *Status
	CategoryID *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

// CategoryTotal is one row of the per-category expense aggregate.
type CategoryTotal struct {
	CategoryID *uuid.UUID
	Category   string
	Total      int64
	Count      int
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Ingest persists a normalized transaction, reporting whether a row was
// created. A duplicate of an already-persisted transaction is a silent
// no-op with created=false.
func (s *Service) Ingest(ctx context.Context, tx *Transaction) (bool, error) {
	return s.repo.InsertTransaction(ctx, tx)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// SetCategory overrides the category of a persisted transaction. Category
// is the only mutable canonical field.
func (s *Service) SetCategory(ctx context.Context, id, categoryID uuid.UUID) error {
	return s.repo.UpdateCategory(ctx, id, categoryID)
}

func (s *Service) TotalsByCategory(ctx context.Context, accountIDs []uuid.UUID, start, end *time.Time) ([]CategoryTotal, error) {
	return s.repo.TotalsByCategory(ctx, accountIDs, start, end)
}
