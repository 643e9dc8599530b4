package model

import (
	"time"

	"github.com/google/uuid"
)

type JobRunStatus string

const (
	JobRunStatusRunning JobRunStatus = "running"
	JobRunStatusSuccess JobRunStatus = "success"
	JobRunStatusFailed  JobRunStatus = "failed"
	JobRunStatusTimeout JobRunStatus = "timeout"
)

// JobRunRecord is an append-only execution log entry: created as
// "running" at job start, updated exactly once to a terminal status,
// never deleted. A row stuck in "running" past its deadline is itself
// a health signal.
type JobRunRecord struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	JobName        string            `db:"job_name" json:"job_name"`
	Status         JobRunStatus      `db:"status" json:"status"`
	StartedAt      time.Time         `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs     *int64            `db:"duration_ms" json:"duration_ms,omitempty"`
	ItemsProcessed int               `db:"items_processed" json:"items_processed"`
	ItemsFailed    int               `db:"items_failed" json:"items_failed"`
	ErrorMessage   *string           `db:"error_message" json:"error_message,omitempty"`
	Metadata       map[string]string `db:"-" json:"metadata,omitempty"`
}

func (r *JobRunRecord) Terminal() bool {
	return r.Status != JobRunStatusRunning
}

type JobHealthStatus string

const (
	JobHealthHealthy  JobHealthStatus = "healthy"
	JobHealthWarning  JobHealthStatus = "warning"
	JobHealthCritical JobHealthStatus = "critical"
	JobHealthUnknown  JobHealthStatus = "unknown"
)

// JobHealthSnapshot is derived from recent run records on demand; it is
// never persisted.
type JobHealthSnapshot struct {
	JobName             string          `json:"job_name"`
	Status              JobHealthStatus `json:"status"`
	MissedRuns          int             `json:"missed_runs"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastRun             *JobRunRecord   `json:"last_run,omitempty"`
	LastSuccessAt       *time.Time      `json:"last_success_at,omitempty"`
}
