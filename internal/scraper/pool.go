package scraper

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool runs a batch of scrape requests against a single-account Client with
// bounded parallelism. Per-account failures become failed Results, never
// errors: one broken account must not take the batch down with it.
type Pool struct {
	client Client
}

func NewPool(client Client) *Pool {
	return &Pool{client: client}
}

// Scrape runs every request, at most maxParallel at a time, and returns one
// Result per request in the original order regardless of completion order.
func (p *Pool) Scrape(ctx context.Context, reqs []Request, opts Options, maxParallel int) ([]Result, error) {
	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make([]Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = p.scrapeOne(ctx, req, opts)
			return nil
		})
	}

	// Workers never return errors; Wait is only a barrier.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (p *Pool) scrapeOne(ctx context.Context, req Request, opts Options) Result {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := p.client.ScrapeAccount(ctx, req, opts)

	result := Result{
		AccountID: req.AccountID,
		Duration:  time.Since(start),
	}

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Records = records

	return result
}
