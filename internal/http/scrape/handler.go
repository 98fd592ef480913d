package scrape

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yonatanw/ledgerscope/internal/http/auth"
	"github.com/yonatanw/ledgerscope/internal/job"
	"github.com/yonatanw/ledgerscope/internal/scraper"
)

type Handler struct {
	orchestrator   *job.Orchestrator
	maxParallel    int
	defaultTimeout time.Duration
}

func NewHandler(orchestrator *job.Orchestrator, maxParallel int, defaultTimeout time.Duration) *Handler {
	return &Handler{
		orchestrator:   orchestrator,
		maxParallel:    maxParallel,
		defaultTimeout: defaultTimeout,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.run)
}

type runRequest struct {
	AccountIDs        []uuid.UUID `json:"account_ids"`
	StartDate         *time.Time  `json:"start_date,omitempty"`
	ScreenshotOnError bool        `json:"screenshot_on_error,omitempty"`
}

type resultResponse struct {
	AccountID  uuid.UUID `json:"account_id"`
	Success    bool      `json:"success"`
	Saved      int       `json:"saved"`
	Duplicates int       `json:"duplicates"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

type runResponse struct {
	JobID      uuid.UUID        `json:"job_id"`
	Status     job.Status       `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Results    []resultResponse `json:"results"`
	Error      string           `json:"error,omitempty"`
}

// run executes a scrape job synchronously over the requested accounts and
// returns the per-account report.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(req.AccountIDs) == 0 {
		http.Error(w, "account_ids is required", http.StatusBadRequest)
		return
	}

	opts := scraper.Options{
		Timeout:           h.defaultTimeout,
		ScreenshotOnError: req.ScreenshotOnError,
	}

	if req.StartDate != nil {
		opts.StartDate = *req.StartDate
	} else {
		opts.StartDate = time.Now().AddDate(0, -3, 0)
	}

	j := h.orchestrator.CreateJob(userID, req.AccountIDs)

	if err := h.orchestrator.ExecuteJob(r.Context(), j, opts, h.maxParallel); err != nil {
		if errors.Is(err, job.ErrNoValidAccounts) {
			writeJSON(w, http.StatusUnprocessableEntity, toResponse(j))
			return
		}

		slog.Error("scrape job failed", "job_id", j.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, toResponse(j))

		return
	}

	writeJSON(w, http.StatusOK, toResponse(j))
}

func toResponse(j *job.Job) runResponse {
	resp := runResponse{
		JobID:      j.ID,
		Status:     j.Status,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Error:      j.Error,
		Results:    make([]resultResponse, len(j.Results)),
	}

	for i, res := range j.Results {
		resp.Results[i] = resultResponse{
			AccountID:  res.AccountID,
			Success:    res.Success,
			Saved:      res.Saved,
			Duplicates: res.Duplicates,
			Skipped:    res.Skipped,
			Error:      res.Error,
			DurationMS: res.Duration.Milliseconds(),
		}
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
