package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/account"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectAccountColumns = `
	a.id, a.user_id, a.number, a.institution_id, a.alias, a.active, a.last_scraped_at, a.created_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*account.Account, error) {
	var a account.Account

	var lastScraped sql.NullTime

	if err := s.Scan(
		&a.ID, &a.UserID, &a.Number, &a.InstitutionID, &a.Alias, &a.Active,
		&lastScraped, &a.CreatedAt,
	); err != nil {
		return nil, err
	}

	if lastScraped.Valid {
		a.LastScrapedAt = &lastScraped.Time
	}

	return &a, nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts a WHERE a.id = $1`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, account.ErrNotFound
		}

		return nil, fmt.Errorf("finding account: %w", err)
	}

	return a, nil
}

func (s *Store) FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*account.Account, error) {
	query := `SELECT ` + selectAccountColumns + `
		FROM accounts a
		WHERE a.user_id = $1 AND a.active
		ORDER BY a.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing active accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}

	return accounts, nil
}

func (s *Store) UpdateLastScraped(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_scraped_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("updating last scraped: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrNotFound
	}

	return nil
}
