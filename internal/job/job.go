package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a scrape job. A job moves
// pending -> running -> completed|failed and never leaves a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Resolution failure reasons recorded per account. These are part of the
// report contract; callers match on the exact text.
const (
	ErrAccountNotFound    = "Account not found"
	ErrAccountInactive    = "Account is inactive"
	ErrCredentialsMissing = "Credentials not found"
)

// Result is the outcome for one target account within a job.
type Result struct {
	AccountID  uuid.UUID
	Success    bool
	Saved      int
	Duplicates int
	Skipped    int
	Error      string
	Duration   time.Duration
}

// Job is one scrape run over a set of accounts. Jobs are ephemeral: they
// live for the duration of the run and are reported back to the caller, not
// persisted.
type Job struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	AccountIDs []uuid.UUID
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
	Error      string
}
