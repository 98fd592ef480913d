package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/account"
	"github.com/yonatanw/ledgerscope/internal/credential"
	"github.com/yonatanw/ledgerscope/internal/scraper"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

var ErrNoValidAccounts = errors.New("no valid accounts to scrape")

//go:generate mockgen -source=orchestrator.go -destination=orchestrator_mock.go -package=job
type AccountDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	UpdateLastScraped(ctx context.Context, id uuid.UUID, at time.Time) error
}

type CredentialSource interface {
	FindByUserAndAlias(ctx context.Context, userID uuid.UUID, alias string) (*credential.Encrypted, error)
}

type Cipher interface {
	Decrypt(enc *credential.Encrypted) (credential.Credentials, error)
}

type Scraper interface {
	Scrape(ctx context.Context, reqs []scraper.Request, opts scraper.Options, maxParallel int) ([]scraper.Result, error)
}

type TransactionSink interface {
	Ingest(ctx context.Context, tx *transaction.Transaction) (bool, error)
}

type Categorizer interface {
	Categorize(tx *transaction.Transaction) uuid.UUID
}

// Orchestrator fans scrape work out across a job's accounts and funnels the
// raw results through normalization, deduplication and categorization into
// storage. Failures are isolated per account; only batch-wide problems fail
// the job as a whole.
type Orchestrator struct {
	accounts    AccountDirectory
	credentials CredentialSource
	cipher      Cipher
	scraper     Scraper
	sink        TransactionSink
	categorizer Categorizer
}

func NewOrchestrator(
	accounts AccountDirectory,
	credentials CredentialSource,
	cipher Cipher,
	scr Scraper,
	sink TransactionSink,
	categorizer Categorizer,
) *Orchestrator {
	return &Orchestrator{
		accounts:    accounts,
		credentials: credentials,
		cipher:      cipher,
		scraper:     scr,
		sink:        sink,
		categorizer: categorizer,
	}
}

// CreateJob builds a pending job for the given target accounts.
func (o *Orchestrator) CreateJob(userID uuid.UUID, accountIDs []uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		UserID:     userID,
		AccountIDs: accountIDs,
		Status:     StatusPending,
	}
}

// resolved is one account that survived resolution, remembering its slot in
// the original target list so the final report keeps the request order.
type resolved struct {
	slot    int
	account *account.Account
	request scraper.Request
}

// ExecuteJob runs a pending job to completion, mutating it in place. The
// job ends completed only if every account's result is a success; any
// per-account failure, including resolution failures, ends it failed. A
// panic inside the run is caught at this boundary: the job is marked failed
// and whatever results were already collected stay on it.
func (o *Orchestrator) ExecuteJob(ctx context.Context, job *Job, opts scraper.Options, maxParallel int) (err error) {
	if job.Status != StatusPending {
		return fmt.Errorf("job %s already started (status %s)", job.ID, job.Status)
	}

	job.Status = StatusRunning
	job.StartedAt = time.Now()

	slots := make([]*Result, len(job.AccountIDs))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape job panicked", "job_id", job.ID, "panic", r)

			job.Results = collect(slots)
			job.Error = fmt.Sprintf("job execution panicked: %v", r)
			job.Status = StatusFailed
			job.FinishedAt = time.Now()
			err = fmt.Errorf("job execution panicked: %v", r)
		}
	}()

	targets := o.resolveAccounts(ctx, job, slots)

	if len(targets) == 0 {
		job.Results = collect(slots)
		job.Error = ErrNoValidAccounts.Error()
		job.Status = StatusFailed
		job.FinishedAt = time.Now()

		return ErrNoValidAccounts
	}

	reqs := make([]scraper.Request, len(targets))
	for i, t := range targets {
		reqs[i] = t.request
	}

	results, scrapeErr := o.scraper.Scrape(ctx, reqs, opts, maxParallel)
	if scrapeErr != nil {
		job.Results = collect(slots)
		job.Error = scrapeErr.Error()
		job.Status = StatusFailed
		job.FinishedAt = time.Now()

		return fmt.Errorf("executing scrape batch: %w", scrapeErr)
	}

	for i, t := range targets {
		res := o.processAccount(ctx, t.account, results[i])
		slots[t.slot] = &res
	}

	job.Results = collect(slots)
	job.FinishedAt = time.Now()

	failed := 0

	for _, r := range job.Results {
		if !r.Success {
			failed++
		}
	}

	if failed > 0 {
		job.Status = StatusFailed
		job.Error = fmt.Sprintf("%d of %d accounts failed", failed, len(job.Results))
	} else {
		job.Status = StatusCompleted
	}

	return nil
}

// resolveAccounts checks every target account and its credential, filling
// failure results directly into the report slots. Resolution never aborts
// the job; an unresolvable account is just one failed line in the report.
func (o *Orchestrator) resolveAccounts(ctx context.Context, job *Job, slots []*Result) []resolved {
	var targets []resolved

	for i, accountID := range job.AccountIDs {
		fail := func(msg string) {
			slots[i] = &Result{AccountID: accountID, Success: false, Error: msg}
		}

		acc, err := o.accounts.FindByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				fail(ErrAccountNotFound)
			} else {
				fail(err.Error())
			}

			continue
		}

		// Another user's account is reported exactly like a missing one.
		if acc.UserID != job.UserID {
			fail(ErrAccountNotFound)
			continue
		}

		if !acc.Active {
			fail(ErrAccountInactive)
			continue
		}

		enc, err := o.credentials.FindByUserAndAlias(ctx, job.UserID, acc.Alias)
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				fail(ErrCredentialsMissing)
			} else {
				fail(err.Error())
			}

			continue
		}

		creds, err := o.cipher.Decrypt(enc)
		if err != nil {
			fail(fmt.Sprintf("decrypting credentials: %v", err))
			continue
		}

		targets = append(targets, resolved{
			slot:    i,
			account: acc,
			request: scraper.Request{
				AccountID:     acc.ID,
				InstitutionID: acc.InstitutionID,
				AccountNumber: acc.Number,
				Credentials:   creds,
			},
		})
	}

	return targets
}

// processAccount turns one scrape result into a report line, ingesting raw
// records on success. The last-scraped stamp follows the scrape success
// flag, not the saved count: a successful scrape that found nothing new
// still counts as a scrape.
func (o *Orchestrator) processAccount(ctx context.Context, acc *account.Account, res scraper.Result) Result {
	result := Result{AccountID: acc.ID, Duration: res.Duration}

	if !res.Success {
		result.Error = res.Error
		return result
	}

	saved, duplicates, skipped, err := o.ingestRecords(ctx, acc, res.Records)
	result.Saved = saved
	result.Duplicates = duplicates
	result.Skipped = skipped

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true

	if err := o.accounts.UpdateLastScraped(ctx, acc.ID, time.Now()); err != nil {
		slog.Warn("failed to update last scraped timestamp", "account_id", acc.ID, "error", err)
	}

	return result
}

// ingestRecords normalizes, categorizes and persists one account's raw
// records. A record that fails normalization is skipped and counted, not
// fatal; a storage failure stops the account because further inserts would
// likely fail the same way.
func (o *Orchestrator) ingestRecords(ctx context.Context, acc *account.Account, records []transaction.RawRecord) (saved, duplicates, skipped int, err error) {
	for _, raw := range records {
		payload, merr := json.Marshal(raw)
		if merr != nil {
			payload = []byte("{}")
		}

		tx, nerr := transaction.Normalize(raw, acc.InstitutionID, acc.ID, string(payload))
		if nerr != nil {
			slog.Warn("skipping unnormalizable record",
				"account_id", acc.ID, "institution", acc.InstitutionID, "error", nerr)

			skipped++

			continue
		}

		categoryID := o.categorizer.Categorize(tx)
		tx.CategoryID = &categoryID

		created, ierr := o.sink.Ingest(ctx, tx)
		if ierr != nil {
			return saved, duplicates, skipped, fmt.Errorf("persisting transaction: %w", ierr)
		}

		if created {
			saved++
		} else {
			duplicates++
		}
	}

	return saved, duplicates, skipped, nil
}

// collect flattens the report slots, dropping targets that never produced a
// result (possible only when execution stopped early).
func collect(slots []*Result) []Result {
	results := make([]Result, 0, len(slots))

	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	return results
}
