package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/credential"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindByUserAndAlias(ctx context.Context, userID uuid.UUID, alias string) (*credential.Encrypted, error) {
	query := `SELECT id, user_id, alias, ciphertext, created_at
		FROM credentials
		WHERE user_id = $1 AND alias = $2`

	var enc credential.Encrypted

	err := s.db.QueryRowContext(ctx, query, userID, alias).Scan(
		&enc.ID, &enc.UserID, &enc.Alias, &enc.Ciphertext, &enc.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, credential.ErrNotFound
		}

		return nil, fmt.Errorf("finding credentials: %w", err)
	}

	return &enc, nil
}

// Upsert stores a sealed credential blob for the user and alias, replacing
// any previous blob.
func (s *Store) Upsert(ctx context.Context, enc *credential.Encrypted) error {
	query := `INSERT INTO credentials (id, user_id, alias, ciphertext)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, alias) DO UPDATE SET ciphertext = EXCLUDED.ciphertext`

	if _, err := s.db.ExecContext(ctx, query, enc.ID, enc.UserID, enc.Alias, enc.Ciphertext); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}

	return nil
}
