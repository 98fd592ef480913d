package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yonatanw/ledgerscope/internal/category"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectCategoryColumns = `c.id, c.name, c.parent_id, c.keywords, c.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (*category.Category, error) {
	var c category.Category

	var keywords []byte

	if err := s.Scan(&c.ID, &c.Name, &c.ParentID, &keywords, &c.CreatedAt); err != nil {
		return nil, err
	}

	if len(keywords) > 0 {
		if err := decodeKeywords(keywords, &c.Keywords); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// ListCategories returns all categories in their stored order. The order is
// part of the categorization contract: the keyword strategy tries
// categories in exactly this sequence.
func (s *Store) ListCategories(ctx context.Context) ([]*category.Category, error) {
	query := `SELECT ` + selectCategoryColumns + `
		FROM categories c
		ORDER BY c.position ASC, c.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*category.Category

	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}

		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category rows: %w", err)
	}

	return categories, nil
}

func (s *Store) FindByName(ctx context.Context, name string) (*category.Category, error) {
	query := `SELECT ` + selectCategoryColumns + ` FROM categories c WHERE c.name = $1`

	c, err := scanCategory(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, category.ErrNotFound
		}

		return nil, fmt.Errorf("finding category by name: %w", err)
	}

	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *category.Category) error {
	keywords, err := encodeKeywords(c.Keywords)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO categories (id, name, parent_id, keywords, position, created_at)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(position), 0) + 1 FROM categories), NOW())
		RETURNING created_at
	`

	if err := s.db.QueryRowContext(ctx, query, c.ID, c.Name, c.ParentID, keywords).Scan(&c.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("category %q: %w", c.Name, category.ErrDuplicateName)
		}

		return fmt.Errorf("creating category: %w", err)
	}

	return nil
}

func (s *Store) UpdateKeywords(ctx context.Context, id uuid.UUID, keywords []string) error {
	encoded, err := encodeKeywords(keywords)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE categories SET keywords = $1 WHERE id = $2`, encoded, id)
	if err != nil {
		return fmt.Errorf("updating keywords: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return category.ErrNotFound
	}

	return nil
}
