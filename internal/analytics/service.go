// Package analytics computes read-only aggregate views over persisted
// transactions. Every operation works on completed transactions for a set
// of accounts inside an inclusive date range and degrades to empty results
// on empty input rather than erroring.
package analytics

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/transaction"
)

const defaultRecurringLimit = 5

// merchantKeyMaxLen caps the normalized merchant key so near-identical long
// descriptions still group together.
const merchantKeyMaxLen = 50

type Service struct {
	transactions *transaction.Service
}

func NewService(transactions *transaction.Service) *Service {
	return &Service{transactions: transactions}
}

func (s *Service) list(ctx context.Context, accountIDs []uuid.UUID, start, end time.Time) ([]*transaction.Transaction, error) {
	// An empty account set scopes to nothing, not to every account.
	if len(accountIDs) == 0 {
		return nil, nil
	}

	completed := transaction.StatusCompleted

	txs, err := s.transactions.List(ctx, transaction.ListFilter{
		AccountIDs: accountIDs,
		Status:     &completed,
		StartDate:  &start,
		EndDate:    &end,
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return txs, nil
}

// Summary is the income/expense overview for a range.
type Summary struct {
	Income   int64
	Expenses int64
	Net      int64
	Count    int
}

func (s *Service) Summary(ctx context.Context, accountIDs []uuid.UUID, start, end time.Time) (*Summary, error) {
	txs, err := s.list(ctx, accountIDs, start, end)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Count: len(txs)}

	for _, tx := range txs {
		if tx.ChargedAmount >= 0 {
			summary.Income += tx.ChargedAmount
		} else {
			summary.Expenses += -tx.ChargedAmount
		}
	}

	summary.Net = summary.Income - summary.Expenses

	return summary, nil
}

// HighestExpense is the single largest expense in range, with the amount
// reported as a positive number.
type HighestExpense struct {
	Transaction *transaction.Transaction
	Amount      int64
}

// CalculateHighestExpense returns nil when the range holds no expenses.
func (s *Service) CalculateHighestExpense(ctx context.Context, accountIDs []uuid.UUID, start, end time.Time) (*HighestExpense, error) {
	txs, err := s.list(ctx, accountIDs, start, end)
	if err != nil {
		return nil, err
	}

	var highest *transaction.Transaction

	for _, tx := range txs {
		if tx.ChargedAmount >= 0 {
			continue
		}

		if highest == nil || tx.ChargedAmount < highest.ChargedAmount {
			highest = tx
		}
	}

	if highest == nil {
		return nil, nil
	}

	return &HighestExpense{Transaction: highest, Amount: -highest.ChargedAmount}, nil
}

// RecurringPayment is a group of repeated expenses to one merchant.
type RecurringPayment struct {
	Merchant         string
	Amount           int64
	Frequency        int
	TransactionCount int
	LastPaymentDate  time.Time
}

// DetectRecurringPayments groups expenses by normalized merchant key and
// reports groups of two or more, ranked by amount times frequency.
func (s *Service) DetectRecurringPayments(ctx context.Context, accountIDs []uuid.UUID, start, end time.Time, topN int) ([]RecurringPayment, error) {
	if topN <= 0 {
		topN = defaultRecurringLimit
	}

	txs, err := s.list(ctx, accountIDs, start, end)
	if err != nil {
		return nil, err
	}

	type group struct {
		first    string
		total    int64
		count    int
		lastDate time.Time
	}

	groups := make(map[string]*group)

	var order []string

	for _, tx := range txs {
		if tx.ChargedAmount >= 0 {
			continue
		}

		key := merchantKey(tx.Description)

		g, ok := groups[key]
		if !ok {
			g = &group{first: tx.Description}
			groups[key] = g

			order = append(order, key)
		}

		g.total += -tx.ChargedAmount
		g.count++

		if tx.Date.After(g.lastDate) {
			g.lastDate = tx.Date
		}
	}

	var payments []RecurringPayment

	for _, key := range order {
		g := groups[key]
		if g.count < 2 {
			continue
		}

		payments = append(payments, RecurringPayment{
			Merchant:         g.first,
			Amount:           int64(math.Round(float64(g.total) / float64(g.count))),
			Frequency:        g.count,
			TransactionCount: g.count,
			LastPaymentDate:  g.lastDate,
		})
	}

	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Amount*int64(payments[i].Frequency) > payments[j].Amount*int64(payments[j].Frequency)
	})

	if len(payments) > topN {
		payments = payments[:topN]
	}

	return payments, nil
}

// Granularity selects the trend bucketing period.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

// Trend is one time bucket of activity, income and expenses both included.
type Trend struct {
	Period   string
	Expenses int64
	Income   int64
	Net      int64
	Count    int
}

func (s *Service) CalculateTrends(ctx context.Context, accountIDs []uuid.UUID, start, end time.Time, granularity Granularity) ([]Trend, error) {
	txs, err := s.list(ctx, accountIDs, start, end)
	if err != nil {
		return nil, err
	}

	layout := "2006-01"
	if granularity == GranularityDaily {
		layout = time.DateOnly
	}

	buckets := make(map[string]*Trend)

	for _, tx := range txs {
		period := tx.Date.Format(layout)

		b, ok := buckets[period]
		if !ok {
			b = &Trend{Period: period}
			buckets[period] = b
		}

		if tx.ChargedAmount >= 0 {
			b.Income += tx.ChargedAmount
		} else {
			b.Expenses += -tx.ChargedAmount
		}

		b.Net = b.Income - b.Expenses
		b.Count++
	}

	trends := make([]Trend, 0, len(buckets))
	for _, b := range buckets {
		trends = append(trends, *b)
	}

	sort.Slice(trends, func(i, j int) bool { return trends[i].Period < trends[j].Period })

	return trends, nil
}

// CategoryShare is one slice of the expense distribution.
type CategoryShare struct {
	CategoryID *uuid.UUID
	Category   string
	Total      int64
	Count      int
	Percentage float64
}

// CategoryDistribution reports per-category expense totals and their share
// of all expenses in range. Shares are zero when there are no expenses.
func (s *Service) CategoryDistribution(ctx context.Context, accountIDs []uuid.UUID, start, end time.Time) ([]CategoryShare, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	totals, err := s.transactions.TotalsByCategory(ctx, accountIDs, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("aggregating category totals: %w", err)
	}

	var overall int64
	for _, t := range totals {
		overall += t.Total
	}

	shares := make([]CategoryShare, len(totals))

	for i, t := range totals {
		share := CategoryShare{
			CategoryID: t.CategoryID,
			Category:   t.Category,
			Total:      t.Total,
			Count:      t.Count,
		}

		if overall > 0 {
			share.Percentage = float64(t.Total) / float64(overall) * 100
		}

		shares[i] = share
	}

	sort.SliceStable(shares, func(i, j int) bool { return shares[i].Total > shares[j].Total })

	return shares, nil
}

var digits = regexp.MustCompile(`[0-9]+`)

// merchantKey normalizes a description so charges to the same merchant
// group together despite per-charge reference numbers.
func merchantKey(description string) string {
	key := strings.ToLower(description)
	key = digits.ReplaceAllString(key, "")
	key = strings.Join(strings.Fields(key), " ")

	if runes := []rune(key); len(runes) > merchantKeyMaxLen {
		key = string(runes[:merchantKeyMaxLen])
	}

	return key
}
