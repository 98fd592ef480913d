// Package dump ingests saved scrape export files. A dump is the JSON a
// scrape runner writes to disk for one account; ingesting it runs the same
// normalize, deduplicate, categorize, persist path a live job uses, so
// replaying a dump twice never duplicates rows.
package dump

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/encoding"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

// Dump is one account's saved scrape export.
type Dump struct {
	InstitutionID string                  `json:"institutionId"`
	AccountNumber string                  `json:"accountNumber,omitempty"`
	Records       []transaction.RawRecord `json:"records"`
}

// Parse reads a dump file, decoding legacy single-byte or UTF-16 exports to
// UTF-8 first.
func Parse(r io.Reader) (*Dump, error) {
	utf8r, err := encoding.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	var d Dump
	if err := json.NewDecoder(utf8r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}

	if d.InstitutionID == "" {
		return nil, fmt.Errorf("dump has no institution id")
	}

	return &d, nil
}

// Sink persists normalized transactions, reporting whether a row was
// created.
type Sink interface {
	Ingest(ctx context.Context, tx *transaction.Transaction) (bool, error)
}

// Categorizer resolves a category for a normalized transaction.
type Categorizer interface {
	Categorize(tx *transaction.Transaction) uuid.UUID
}

// Stats summarizes one ingestion run.
type Stats struct {
	Saved      int
	Duplicates int
	Skipped    int
}

type Service struct {
	sink        Sink
	categorizer Categorizer
}

func NewService(sink Sink, categorizer Categorizer) *Service {
	return &Service{sink: sink, categorizer: categorizer}
}

// Ingest feeds every record of a dump into the pipeline for the given
// account. Records that fail normalization are logged and counted, not
// fatal; storage errors stop the run.
func (s *Service) Ingest(ctx context.Context, accountID uuid.UUID, d *Dump) (Stats, error) {
	var stats Stats

	for _, raw := range d.Records {
		payload, err := json.Marshal(raw)
		if err != nil {
			payload = []byte("{}")
		}

		tx, err := transaction.Normalize(raw, d.InstitutionID, accountID, string(payload))
		if err != nil {
			slog.Warn("skipping unnormalizable dump record",
				"institution", d.InstitutionID, "error", err)

			stats.Skipped++

			continue
		}

		categoryID := s.categorizer.Categorize(tx)
		tx.CategoryID = &categoryID

		created, err := s.sink.Ingest(ctx, tx)
		if err != nil {
			return stats, fmt.Errorf("persisting transaction: %w", err)
		}

		if created {
			stats.Saved++
		} else {
			stats.Duplicates++
		}
	}

	return stats, nil
}
