package transaction

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
	"github.com/yonatanw/ledgerscope/internal/http/auth"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

type Handler struct {
	svc      *transaction.Service
	accounts account.Repository
}

func NewHandler(svc *transaction.Service, accounts account.Repository) *Handler {
	return &Handler{svc: svc, accounts: accounts}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/totals", h.totals)
	r.Patch("/{id}/category", h.updateCategory)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.scopeToCaller(r, &filter); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(filter.AccountIDs) == 0 {
		writeJSON(w, []transactionResponse{})
		return
	}

	txs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, toResponseList(txs))
}

type categoryTotalResponse struct {
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Category   string     `json:"category"`
	Total      int64      `json:"total"`
	Count      int        `json:"count"`
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.scopeToCaller(r, &filter); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(filter.AccountIDs) == 0 {
		writeJSON(w, []categoryTotalResponse{})
		return
	}

	rows, err := h.svc.TotalsByCategory(r.Context(), filter.AccountIDs, filter.StartDate, filter.EndDate)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]categoryTotalResponse, len(rows))
	for i, row := range rows {
		resp[i] = categoryTotalResponse{
			CategoryID: row.CategoryID,
			Category:   row.Category,
			Total:      row.Total,
			Count:      row.Count,
		}
	}

	writeJSON(w, resp)
}

// scopeToCaller restricts the filter to accounts owned by the authenticated
// user. Explicitly named accounts must all be the caller's; an empty account
// list widens to all of the caller's active accounts.
func (h *Handler) scopeToCaller(r *http.Request, filter *transaction.ListFilter) error {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		return errors.New("authorization required")
	}

	owned, err := h.accounts.FindActiveByUserID(r.Context(), userID)
	if err != nil {
		return errors.New("resolving accounts")
	}

	if len(filter.AccountIDs) == 0 {
		for _, acc := range owned {
			filter.AccountIDs = append(filter.AccountIDs, acc.ID)
		}

		return nil
	}

	ownedIDs := make(map[uuid.UUID]struct{}, len(owned))
	for _, acc := range owned {
		ownedIDs[acc.ID] = struct{}{}
	}

	for _, id := range filter.AccountIDs {
		if _, ok := ownedIDs[id]; !ok {
			return errors.New("unknown account_id")
		}
	}

	return nil
}

type updateCategoryRequest struct {
	CategoryID uuid.UUID `json:"category_id"`
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.CategoryID == uuid.Nil {
		http.Error(w, "category_id is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.SetCategory(r.Context(), id, req.CategoryID); err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func parseFilter(r *http.Request) (transaction.ListFilter, error) {
	filter := transaction.ListFilter{}
	query := r.URL.Query()

	for _, raw := range query["account_id"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid account_id")
		}

		filter.AccountIDs = append(filter.AccountIDs, id)
	}

	if s := query.Get("status"); s != "" {
		status := transaction.Status(s)
		filter.Status = &status
	}

	if s := query.Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return filter, errors.New("invalid category_id")
		}

		filter.CategoryID = &id
	}

	if s := query.Get("start_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return filter, errors.New("invalid start_date")
		}

		filter.StartDate = &t
	}

	if s := query.Get("end_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return filter, errors.New("invalid end_date")
		}

		filter.EndDate = &t
	}

	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, errors.New("invalid limit")
		}

		filter.Limit = n
	}

	if s := query.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, errors.New("invalid offset")
		}

		filter.Offset = n
	}

	return filter, nil
}
