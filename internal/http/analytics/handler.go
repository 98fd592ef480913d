package analytics

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/account"
	"github.com/yonatanw/ledgerscope/internal/analytics"
	"github.com/yonatanw/ledgerscope/internal/http/auth"
)

type Handler struct {
	svc      *analytics.Service
	accounts account.Repository
}

func NewHandler(svc *analytics.Service, accounts account.Repository) *Handler {
	return &Handler{svc: svc, accounts: accounts}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/highest-expense", h.highestExpense)
	r.Get("/recurring", h.recurring)
	r.Get("/trends", h.trends)
	r.Get("/categories", h.categories)
}

// rangeQuery is the window every analytics endpoint shares. When the caller
// names no accounts, the window spans all of the user's active accounts.
type rangeQuery struct {
	accountIDs []uuid.UUID
	start      time.Time
	end        time.Time
}

func (h *Handler) parseRange(r *http.Request) (rangeQuery, error) {
	var q rangeQuery

	query := r.URL.Query()

	start, err := time.Parse(time.DateOnly, query.Get("start_date"))
	if err != nil {
		return q, errors.New("start_date is required (YYYY-MM-DD)")
	}

	end, err := time.Parse(time.DateOnly, query.Get("end_date"))
	if err != nil {
		return q, errors.New("end_date is required (YYYY-MM-DD)")
	}

	if end.Before(start) {
		return q, errors.New("end_date precedes start_date")
	}

	q.start = start
	q.end = end

	userID, ok := auth.UserID(r.Context())
	if !ok {
		return q, errors.New("authorization required")
	}

	owned, err := h.accounts.FindActiveByUserID(r.Context(), userID)
	if err != nil {
		return q, errors.New("resolving accounts")
	}

	if len(query["account_id"]) == 0 {
		for _, acc := range owned {
			q.accountIDs = append(q.accountIDs, acc.ID)
		}

		return q, nil
	}

	ownedIDs := make(map[uuid.UUID]struct{}, len(owned))
	for _, acc := range owned {
		ownedIDs[acc.ID] = struct{}{}
	}

	for _, raw := range query["account_id"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, errors.New("invalid account_id")
		}

		// Account ids from the query string are only trusted once they
		// resolve to one of the caller's own accounts.
		if _, ok := ownedIDs[id]; !ok {
			return q, errors.New("unknown account_id")
		}

		q.accountIDs = append(q.accountIDs, id)
	}

	return q, nil
}

type summaryResponse struct {
	Income   int64 `json:"income"`
	Expenses int64 `json:"expenses"`
	Net      int64 `json:"net"`
	Count    int   `json:"count"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.svc.Summary(r.Context(), q.accountIDs, q.start, q.end)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, summaryResponse{
		Income:   s.Income,
		Expenses: s.Expenses,
		Net:      s.Net,
		Count:    s.Count,
	})
}

type highestExpenseResponse struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Description   string     `json:"description"`
	Amount        int64      `json:"amount"`
	Date          time.Time  `json:"date"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
}

func (h *Handler) highestExpense(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	he, err := h.svc.CalculateHighestExpense(r.Context(), q.accountIDs, q.start, q.end)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if he == nil {
		http.Error(w, "no expenses in range", http.StatusNotFound)
		return
	}

	writeJSON(w, highestExpenseResponse{
		TransactionID: he.Transaction.ID,
		AccountID:     he.Transaction.AccountID,
		Description:   he.Transaction.Description,
		Amount:        he.Amount,
		Date:          he.Transaction.Date,
		CategoryID:    he.Transaction.CategoryID,
	})
}

type recurringPaymentResponse struct {
	Merchant         string    `json:"merchant"`
	Amount           int64     `json:"amount"`
	Frequency        int       `json:"frequency"`
	TransactionCount int       `json:"transaction_count"`
	LastPaymentDate  time.Time `json:"last_payment_date"`
}

func (h *Handler) recurring(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	topN := 0

	if s := r.URL.Query().Get("top_n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid top_n", http.StatusBadRequest)
			return
		}

		topN = n
	}

	payments, err := h.svc.DetectRecurringPayments(r.Context(), q.accountIDs, q.start, q.end, topN)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]recurringPaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = recurringPaymentResponse{
			Merchant:         p.Merchant,
			Amount:           p.Amount,
			Frequency:        p.Frequency,
			TransactionCount: p.TransactionCount,
			LastPaymentDate:  p.LastPaymentDate,
		}
	}

	writeJSON(w, resp)
}

type trendResponse struct {
	Period   string `json:"period"`
	Expenses int64  `json:"expenses"`
	Income   int64  `json:"income"`
	Net      int64  `json:"net"`
	Count    int    `json:"count"`
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	granularity := analytics.GranularityMonthly

	switch s := r.URL.Query().Get("granularity"); s {
	case "", string(analytics.GranularityMonthly):
	case string(analytics.GranularityDaily):
		granularity = analytics.GranularityDaily
	default:
		http.Error(w, "invalid granularity", http.StatusBadRequest)
		return
	}

	trends, err := h.svc.CalculateTrends(r.Context(), q.accountIDs, q.start, q.end, granularity)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]trendResponse, len(trends))
	for i, t := range trends {
		resp[i] = trendResponse{
			Period:   t.Period,
			Expenses: t.Expenses,
			Income:   t.Income,
			Net:      t.Net,
			Count:    t.Count,
		}
	}

	writeJSON(w, resp)
}

type categoryShareResponse struct {
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Category   string     `json:"category"`
	Total      int64      `json:"total"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	shares, err := h.svc.CategoryDistribution(r.Context(), q.accountIDs, q.start, q.end)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]categoryShareResponse, len(shares))
	for i, s := range shares {
		resp[i] = categoryShareResponse{
			CategoryID: s.CategoryID,
			Category:   s.Category,
			Total:      s.Total,
			Count:      s.Count,
			Percentage: s.Percentage,
		}
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
