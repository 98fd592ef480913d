package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonatanw/ledgerscope/internal/scraper"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

// clientFunc adapts a function to the Client interface.
type clientFunc func(ctx context.Context, req scraper.Request, opts scraper.Options) ([]transaction.RawRecord, error)

func (f clientFunc) ScrapeAccount(ctx context.Context, req scraper.Request, opts scraper.Options) ([]transaction.RawRecord, error) {
	return f(ctx, req, opts)
}

func requests(n int) []scraper.Request {
	reqs := make([]scraper.Request, n)
	for i := range reqs {
		reqs[i] = scraper.Request{AccountID: uuid.New(), InstitutionID: "leumi"}
	}

	return reqs
}

func TestPool_PreservesRequestOrder(t *testing.T) {
	reqs := requests(6)

	// Later requests finish first; results must still line up with input.
	client := clientFunc(func(ctx context.Context, req scraper.Request, _ scraper.Options) ([]transaction.RawRecord, error) {
		for i, r := range reqs {
			if r.AccountID == req.AccountID {
				time.Sleep(time.Duration(len(reqs)-i) * 2 * time.Millisecond)
			}
		}

		return []transaction.RawRecord{{Description: req.AccountID.String()}}, nil
	})

	results, err := scraper.NewPool(client).Scrape(context.Background(), reqs, scraper.Options{}, 6)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	for i, res := range results {
		assert.Equal(t, reqs[i].AccountID, res.AccountID)
		assert.True(t, res.Success)
		require.Len(t, res.Records, 1)
		assert.Equal(t, reqs[i].AccountID.String(), res.Records[0].Description)
	}
}

func TestPool_BoundsParallelism(t *testing.T) {
	const maxParallel = 2

	var current, peak atomic.Int32

	client := clientFunc(func(context.Context, scraper.Request, scraper.Options) ([]transaction.RawRecord, error) {
		n := current.Add(1)
		defer current.Add(-1)

		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)

		return nil, nil
	})

	_, err := scraper.NewPool(client).Scrape(context.Background(), requests(8), scraper.Options{}, maxParallel)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(maxParallel))
}

func TestPool_IsolatesFailures(t *testing.T) {
	reqs := requests(3)

	client := clientFunc(func(_ context.Context, req scraper.Request, _ scraper.Options) ([]transaction.RawRecord, error) {
		if req.AccountID == reqs[1].AccountID {
			return nil, errors.New("login blocked")
		}

		return []transaction.RawRecord{{Description: "ok"}}, nil
	})

	results, err := scraper.NewPool(client).Scrape(context.Background(), reqs, scraper.Options{}, 1)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "login blocked", results[1].Error)
	assert.True(t, results[2].Success)
}

func TestPool_AppliesPerAccountTimeout(t *testing.T) {
	client := clientFunc(func(ctx context.Context, _ scraper.Request, _ scraper.Options) ([]transaction.RawRecord, error) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("scrape aborted: %w", ctx.Err())
		case <-time.After(time.Second):
			return nil, nil
		}
	})

	opts := scraper.Options{Timeout: 5 * time.Millisecond}

	results, err := scraper.NewPool(client).Scrape(context.Background(), requests(1), opts, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "deadline exceeded")
}
