package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/yonatanw/ledgerscope/internal/account"
	"github.com/yonatanw/ledgerscope/internal/credential"
	"github.com/yonatanw/ledgerscope/internal/job"
	"github.com/yonatanw/ledgerscope/internal/scraper"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

type fixture struct {
	accounts    *job.MockAccountDirectory
	credentials *job.MockCredentialSource
	cipher      *job.MockCipher
	scraper     *job.MockScraper
	sink        *job.MockTransactionSink
	categorizer *job.MockCategorizer
	orch        *job.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	f := &fixture{
		accounts:    job.NewMockAccountDirectory(ctrl),
		credentials: job.NewMockCredentialSource(ctrl),
		cipher:      job.NewMockCipher(ctrl),
		scraper:     job.NewMockScraper(ctrl),
		sink:        job.NewMockTransactionSink(ctrl),
		categorizer: job.NewMockCategorizer(ctrl),
	}

	f.orch = job.NewOrchestrator(f.accounts, f.credentials, f.cipher, f.scraper, f.sink, f.categorizer)

	return f
}

func activeAccount(userID uuid.UUID, alias string) *account.Account {
	return &account.Account{
		ID:            uuid.New(),
		UserID:        userID,
		Number:        "12-345",
		InstitutionID: "leumi",
		Alias:         alias,
		Active:        true,
	}
}

// expectResolves wires the happy resolution path for an account.
func (f *fixture) expectResolves(userID uuid.UUID, acc *account.Account) {
	enc := &credential.Encrypted{UserID: userID, Alias: acc.Alias}

	f.accounts.EXPECT().FindByID(gomock.Any(), acc.ID).Return(acc, nil)
	f.credentials.EXPECT().FindByUserAndAlias(gomock.Any(), userID, acc.Alias).Return(enc, nil)
	f.cipher.EXPECT().Decrypt(enc).Return(credential.Credentials{"username": "u", "password": "p"}, nil)
}

func rawRecord(date, description string, amount float64) transaction.RawRecord {
	return transaction.RawRecord{
		Date:             date,
		OriginalAmount:   amount,
		OriginalCurrency: "ILS",
		Description:      description,
		Status:           "completed",
	}
}

// successFor builds scrape results mirroring the request order.
func successFor(records map[uuid.UUID][]transaction.RawRecord) func(context.Context, []scraper.Request, scraper.Options, int) ([]scraper.Result, error) {
	return func(_ context.Context, reqs []scraper.Request, _ scraper.Options, _ int) ([]scraper.Result, error) {
		results := make([]scraper.Result, len(reqs))
		for i, req := range reqs {
			results[i] = scraper.Result{
				AccountID: req.AccountID,
				Success:   true,
				Records:   records[req.AccountID],
				Duration:  25 * time.Millisecond,
			}
		}

		return results, nil
	}
}

func TestExecuteJob_AllAccountsSucceed(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	acc := activeAccount(userID, "main")
	categoryID := uuid.New()

	f.expectResolves(userID, acc)
	f.scraper.EXPECT().
		Scrape(gomock.Any(), gomock.Any(), gomock.Any(), 3).
		DoAndReturn(successFor(map[uuid.UUID][]transaction.RawRecord{
			acc.ID: {
				rawRecord("2024-01-05", "SUPER MARKET", -50),
				rawRecord("2024-01-06", "SALARY", 9000),
			},
		}))

	f.categorizer.EXPECT().Categorize(gomock.Any()).Return(categoryID).Times(2)

	// Second record is already persisted and is silently skipped as a
	// duplicate.
	first := f.sink.EXPECT().
		Ingest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *transaction.Transaction) (bool, error) {
			require.NotNil(t, tx.CategoryID)
			assert.Equal(t, categoryID, *tx.CategoryID)
			return true, nil
		})
	f.sink.EXPECT().Ingest(gomock.Any(), gomock.Any()).After(first).Return(false, nil)

	f.accounts.EXPECT().UpdateLastScraped(gomock.Any(), acc.ID, gomock.Any()).Return(nil)

	j := f.orch.CreateJob(userID, []uuid.UUID{acc.ID})
	require.Equal(t, job.StatusPending, j.Status)

	require.NoError(t, f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 3))

	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Empty(t, j.Error)
	require.Len(t, j.Results, 1)

	res := j.Results[0]
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 25*time.Millisecond, res.Duration)
}

func TestExecuteJob_MissingCredentialsIsolated(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	good := activeAccount(userID, "good")
	bad := activeAccount(userID, "bad")

	f.expectResolves(userID, good)
	f.accounts.EXPECT().FindByID(gomock.Any(), bad.ID).Return(bad, nil)
	f.credentials.EXPECT().
		FindByUserAndAlias(gomock.Any(), userID, "bad").
		Return(nil, credential.ErrNotFound)

	f.scraper.EXPECT().
		Scrape(gomock.Any(), gomock.Any(), gomock.Any(), 2).
		DoAndReturn(successFor(map[uuid.UUID][]transaction.RawRecord{
			good.ID: {rawRecord("2024-02-01", "CAFE", -20)},
		}))

	f.categorizer.EXPECT().Categorize(gomock.Any()).Return(uuid.New())
	f.sink.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(true, nil)
	f.accounts.EXPECT().UpdateLastScraped(gomock.Any(), good.ID, gomock.Any()).Return(nil)

	j := f.orch.CreateJob(userID, []uuid.UUID{good.ID, bad.ID})
	require.NoError(t, f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 2))

	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, "1 of 2 accounts failed", j.Error)
	require.Len(t, j.Results, 2)

	assert.Equal(t, good.ID, j.Results[0].AccountID)
	assert.True(t, j.Results[0].Success)
	assert.Equal(t, 1, j.Results[0].Saved)

	assert.Equal(t, bad.ID, j.Results[1].AccountID)
	assert.False(t, j.Results[1].Success)
	assert.Equal(t, job.ErrCredentialsMissing, j.Results[1].Error)
}

func TestExecuteJob_ResolutionReasons(t *testing.T) {
	userID := uuid.New()

	type testCase struct {
		name      string
		setupMock func(f *fixture, id uuid.UUID)
		wantError string
	}

	tests := []testCase{
		{
			name: "AccountNotFound",
			setupMock: func(f *fixture, id uuid.UUID) {
				f.accounts.EXPECT().FindByID(gomock.Any(), id).Return(nil, account.ErrNotFound)
			},
			wantError: job.ErrAccountNotFound,
		},
		{
			name: "AccountInactive",
			setupMock: func(f *fixture, id uuid.UUID) {
				acc := activeAccount(userID, "dormant")
				acc.ID = id
				acc.Active = false

				f.accounts.EXPECT().FindByID(gomock.Any(), id).Return(acc, nil)
			},
			wantError: job.ErrAccountInactive,
		},
		{
			name: "ForeignAccountReadsAsNotFound",
			setupMock: func(f *fixture, id uuid.UUID) {
				acc := activeAccount(uuid.New(), "theirs")
				acc.ID = id

				f.accounts.EXPECT().FindByID(gomock.Any(), id).Return(acc, nil)
			},
			wantError: job.ErrAccountNotFound,
		},
		{
			name: "CredentialsNotFound",
			setupMock: func(f *fixture, id uuid.UUID) {
				acc := activeAccount(userID, "orphan")
				acc.ID = id

				f.accounts.EXPECT().FindByID(gomock.Any(), id).Return(acc, nil)
				f.credentials.EXPECT().
					FindByUserAndAlias(gomock.Any(), userID, "orphan").
					Return(nil, credential.ErrNotFound)
			},
			wantError: job.ErrCredentialsMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := uuid.New()
			tt.setupMock(f, id)

			j := f.orch.CreateJob(userID, []uuid.UUID{id})

			err := f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 1)
			require.ErrorIs(t, err, job.ErrNoValidAccounts)

			assert.Equal(t, job.StatusFailed, j.Status)
			require.Len(t, j.Results, 1)
			assert.False(t, j.Results[0].Success)
			assert.Equal(t, tt.wantError, j.Results[0].Error)
		})
	}
}

func TestExecuteJob_ScrapeFailureIsolated(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	broken := activeAccount(userID, "broken")
	fine := activeAccount(userID, "fine")

	f.expectResolves(userID, broken)
	f.expectResolves(userID, fine)

	f.scraper.EXPECT().
		Scrape(gomock.Any(), gomock.Any(), gomock.Any(), 2).
		DoAndReturn(func(_ context.Context, reqs []scraper.Request, _ scraper.Options, _ int) ([]scraper.Result, error) {
			results := make([]scraper.Result, len(reqs))
			for i, req := range reqs {
				if req.AccountID == broken.ID {
					results[i] = scraper.Result{AccountID: req.AccountID, Error: "site layout changed"}
					continue
				}

				results[i] = scraper.Result{
					AccountID: req.AccountID,
					Success:   true,
					Records:   []transaction.RawRecord{rawRecord("2024-02-02", "PAZ", -200)},
				}
			}

			return results, nil
		})

	f.categorizer.EXPECT().Categorize(gomock.Any()).Return(uuid.New())
	f.sink.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(true, nil)

	// Only the successfully scraped account gets its timestamp bumped.
	f.accounts.EXPECT().UpdateLastScraped(gomock.Any(), fine.ID, gomock.Any()).Return(nil)

	j := f.orch.CreateJob(userID, []uuid.UUID{broken.ID, fine.ID})
	require.NoError(t, f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 2))

	assert.Equal(t, job.StatusFailed, j.Status)
	require.Len(t, j.Results, 2)
	assert.False(t, j.Results[0].Success)
	assert.Equal(t, "site layout changed", j.Results[0].Error)
	assert.True(t, j.Results[1].Success)
}

func TestExecuteJob_LastScrapedUpdatedOnZeroNewTransactions(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	acc := activeAccount(userID, "quiet")

	f.expectResolves(userID, acc)
	f.scraper.EXPECT().
		Scrape(gomock.Any(), gomock.Any(), gomock.Any(), 1).
		DoAndReturn(successFor(map[uuid.UUID][]transaction.RawRecord{acc.ID: nil}))

	// Success flag, not saved count, gates the timestamp update.
	f.accounts.EXPECT().UpdateLastScraped(gomock.Any(), acc.ID, gomock.Any()).Return(nil)

	j := f.orch.CreateJob(userID, []uuid.UUID{acc.ID})
	require.NoError(t, f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 1))

	assert.Equal(t, job.StatusCompleted, j.Status)
	require.Len(t, j.Results, 1)
	assert.True(t, j.Results[0].Success)
	assert.Equal(t, 0, j.Results[0].Saved)
}

func TestExecuteJob_UnnormalizableRecordSkipped(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	acc := activeAccount(userID, "main")

	f.expectResolves(userID, acc)
	f.scraper.EXPECT().
		Scrape(gomock.Any(), gomock.Any(), gomock.Any(), 1).
		DoAndReturn(successFor(map[uuid.UUID][]transaction.RawRecord{
			acc.ID: {
				rawRecord("garbage date", "BAD ROW", -10),
				rawRecord("2024-03-03", "GOOD ROW", -10),
			},
		}))

	f.categorizer.EXPECT().Categorize(gomock.Any()).Return(uuid.New())
	f.sink.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(true, nil)
	f.accounts.EXPECT().UpdateLastScraped(gomock.Any(), acc.ID, gomock.Any()).Return(nil)

	j := f.orch.CreateJob(userID, []uuid.UUID{acc.ID})
	require.NoError(t, f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 1))

	assert.Equal(t, job.StatusCompleted, j.Status)
	require.Len(t, j.Results, 1)
	assert.Equal(t, 1, j.Results[0].Saved)
	assert.Equal(t, 1, j.Results[0].Skipped)
}

func TestExecuteJob_RejectsNonPendingJob(t *testing.T) {
	f := newFixture(t)

	j := f.orch.CreateJob(uuid.New(), nil)
	j.Status = job.StatusCompleted

	err := f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 1)
	assert.Error(t, err)
	assert.Equal(t, job.StatusCompleted, j.Status)
}

func TestExecuteJob_PanicPreservesCollectedResults(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	missing := uuid.New()
	acc := activeAccount(userID, "main")

	f.accounts.EXPECT().FindByID(gomock.Any(), missing).Return(nil, account.ErrNotFound)
	f.expectResolves(userID, acc)

	f.scraper.EXPECT().
		Scrape(gomock.Any(), gomock.Any(), gomock.Any(), 2).
		DoAndReturn(func(context.Context, []scraper.Request, scraper.Options, int) ([]scraper.Result, error) {
			panic("runner exploded")
		})

	j := f.orch.CreateJob(userID, []uuid.UUID{missing, acc.ID})

	err := f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	assert.Equal(t, job.StatusFailed, j.Status)
	assert.False(t, j.FinishedAt.IsZero())

	// The resolution failure collected before the panic survives.
	require.Len(t, j.Results, 1)
	assert.Equal(t, missing, j.Results[0].AccountID)
	assert.Equal(t, job.ErrAccountNotFound, j.Results[0].Error)
}

func TestExecuteJob_StorageFailureFailsAccountOnly(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	acc := activeAccount(userID, "main")

	f.expectResolves(userID, acc)
	f.scraper.EXPECT().
		Scrape(gomock.Any(), gomock.Any(), gomock.Any(), 1).
		DoAndReturn(successFor(map[uuid.UUID][]transaction.RawRecord{
			acc.ID: {rawRecord("2024-04-04", "ANYTHING", -1)},
		}))

	f.categorizer.EXPECT().Categorize(gomock.Any()).Return(uuid.New())
	f.sink.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))

	j := f.orch.CreateJob(userID, []uuid.UUID{acc.ID})
	require.NoError(t, f.orch.ExecuteJob(context.Background(), j, scraper.Options{}, 1))

	assert.Equal(t, job.StatusFailed, j.Status)
	require.Len(t, j.Results, 1)
	assert.False(t, j.Results[0].Success)
	assert.Contains(t, j.Results[0].Error, "db down")
}
