package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectTransactionColumns = `
	t.id, t.account_id, t.hash, t.date, t.processed_date,
	t.original_amount, t.original_currency, t.charged_amount, t.charged_currency,
	t.description, t.memo, t.status, t.identifier,
	t.installment_number, t.installment_total,
	t.category_id, t.raw_payload, t.enrichment, t.created_at
`

// scanTransaction reads one row in selectTransactionColumns order.
func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction

	var (
		statusStr         string
		memo, identifier  sql.NullString
		instNum, instTot  sql.NullInt64
		categoryID        *uuid.UUID
		enrichmentPayload []byte
	)

	if err := s.Scan(
		&tx.ID, &tx.AccountID, &tx.Hash, &tx.Date, &tx.ProcessedDate,
		&tx.OriginalAmount, &tx.OriginalCurrency, &tx.ChargedAmount, &tx.ChargedCurrency,
		&tx.Description, &memo, &statusStr, &identifier,
		&instNum, &instTot,
		&categoryID, &tx.RawPayload, &enrichmentPayload, &tx.CreatedAt,
	); err != nil {
		return nil, err
	}

	tx.Status = transaction.Status(statusStr)
	tx.Memo = memo.String
	tx.Identifier = identifier.String
	tx.CategoryID = categoryID

	if instTot.Valid && instTot.Int64 > 0 {
		tx.Installments = &transaction.Installments{
			Number: int(instNum.Int64),
			Total:  int(instTot.Int64),
		}
	}

	if len(enrichmentPayload) > 0 {
		if err := json.Unmarshal(enrichmentPayload, &tx.Enrichment); err != nil {
			return nil, fmt.Errorf("decoding enrichment: %w", err)
		}
	}

	return &tx, nil
}

// InsertTransaction creates a transaction row. The unique constraint on
// (account_id, hash) makes re-ingestion idempotent: a conflicting insert is
// a no-op and is reported as created=false, never as an error.
func (s *Store) InsertTransaction(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	enrichment, err := json.Marshal(tx.Enrichment)
	if err != nil {
		return false, fmt.Errorf("encoding enrichment: %w", err)
	}

	var instNum, instTot sql.NullInt64
	if tx.Installments != nil {
		instNum = sql.NullInt64{Int64: int64(tx.Installments.Number), Valid: true}
		instTot = sql.NullInt64{Int64: int64(tx.Installments.Total), Valid: true}
	}

	query := `
		INSERT INTO transactions (
			account_id, hash, date, processed_date,
			original_amount, original_currency, charged_amount, charged_currency,
			description, memo, status, identifier,
			installment_number, installment_total,
			category_id, raw_payload, enrichment, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		ON CONFLICT (account_id, hash) DO NOTHING
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		tx.AccountID, tx.Hash, tx.Date, tx.ProcessedDate,
		tx.OriginalAmount, tx.OriginalCurrency, tx.ChargedAmount, tx.ChargedCurrency,
		tx.Description, nullString(tx.Memo), tx.Status, nullString(tx.Identifier),
		instNum, instTot,
		tx.CategoryID, tx.RawPayload, enrichment,
	).Scan(&tx.ID, &tx.CreatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("inserting transaction: %w", err)
	}

	return true, nil
}

func (s *Store) FindByHash(ctx context.Context, accountID uuid.UUID, hash string) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions t
		WHERE t.account_id = $1 AND t.hash = $2`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, accountID, hash))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("finding transaction by hash: %w", err)
	}

	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions t
		WHERE 1=1`

	var args []any

	argIdx := 1

	if len(filter.AccountIDs) > 0 {
		query += fmt.Sprintf(" AND t.account_id = ANY($%d::uuid[])", argIdx)

		args = append(args, uuidStrings(filter.AccountIDs))
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND t.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.CategoryID != nil {
		query += fmt.Sprintf(" AND t.category_id = $%d", argIdx)

		args = append(args, *filter.CategoryID)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND t.date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND t.date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
		argIdx++
	}

	query += " ORDER BY t.date ASC, t.created_at ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
		argIdx++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)

		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}

	return txs, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id, categoryID uuid.UUID) error {
	query := `UPDATE transactions SET category_id = $1 WHERE id = $2`

	res, err := s.db.ExecContext(ctx, query, categoryID, id)
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return transaction.ErrNotFound
	}

	return nil
}

// TotalsByCategory aggregates completed expense transactions per category.
// Uncategorized rows are reported under the Unknown label.
func (s *Store) TotalsByCategory(ctx context.Context, accountIDs []uuid.UUID, start, end *time.Time) ([]transaction.CategoryTotal, error) {
	query := `
		SELECT t.category_id, COALESCE(c.name, 'Unknown'), SUM(ABS(t.charged_amount)), COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id
		WHERE t.account_id = ANY($1::uuid[]) AND t.status = 'completed' AND t.charged_amount < 0`

	args := []any{uuidStrings(accountIDs)}
	argIdx := 2

	if start != nil {
		query += fmt.Sprintf(" AND t.date >= $%d", argIdx)

		args = append(args, *start)
		argIdx++
	}

	if end != nil {
		query += fmt.Sprintf(" AND t.date <= $%d", argIdx)

		args = append(args, *end)
	}

	query += `
		GROUP BY t.category_id, c.name
		ORDER BY SUM(ABS(t.charged_amount)) DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating category totals: %w", err)
	}
	defer rows.Close()

	var totals []transaction.CategoryTotal

	for rows.Next() {
		var row transaction.CategoryTotal
		if err := rows.Scan(&row.CategoryID, &row.Category, &row.Total, &row.Count); err != nil {
			return nil, fmt.Errorf("scanning category total: %w", err)
		}

		totals = append(totals, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category totals: %w", err)
	}

	return totals, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}
