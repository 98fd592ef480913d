// Package scraper wraps the external scraping capability. The browser
// automation itself runs elsewhere; this package defines the batch contract
// the orchestrator consumes and a pool that bounds how many accounts are
// scraped at once.
package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/credential"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

// Request is one account to scrape, with its decrypted credentials.
type Request struct {
	AccountID     uuid.UUID
	InstitutionID string
	AccountNumber string
	Credentials   credential.Credentials
}

// Options apply to every account in a batch.
type Options struct {
	// StartDate bounds how far back transactions are fetched.
	StartDate time.Time
	// Timeout caps each account's scrape; zero means no per-account cap.
	Timeout time.Duration
	// ScreenshotOnError asks the runner to capture the page on failure.
	ScreenshotOnError bool
}

// Result is the outcome for one account. Failed accounts carry the error
// text; Records is populated only on success.
type Result struct {
	AccountID uuid.UUID
	Success   bool
	Records   []transaction.RawRecord
	Error     string
	Duration  time.Duration
}

// Scraper executes one batch, bounding concurrency to maxParallel and
// returning results in request order.
type Scraper interface {
	Scrape(ctx context.Context, reqs []Request, opts Options, maxParallel int) ([]Result, error)
}

// Client scrapes a single account. Implementations are expected to be safe
// for concurrent use; the pool calls them from multiple goroutines.
type Client interface {
	ScrapeAccount(ctx context.Context, req Request, opts Options) ([]transaction.RawRecord, error)
}
