package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
)

type jobRunRepository struct {
	BaseRepository
}

func NewJobRunRepository(base BaseRepository) repository.JobRunRepository {
	return &jobRunRepository{base}
}

type jobRunRow struct {
	model.JobRunRecord
	MetadataRaw []byte `db:"metadata"`
}

func (r jobRunRow) toModel() (*model.JobRunRecord, error) {
	run := r.JobRunRecord
	if len(r.MetadataRaw) > 0 {
		if err := json.Unmarshal(r.MetadataRaw, &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode job run metadata: %w", err)
		}
	}
	return &run, nil
}

func (r *jobRunRepository) Create(ctx context.Context, run *model.JobRunRecord) error {
	if run == nil {
		return fmt.Errorf("job run cannot be nil")
	}

	query := `
		INSERT INTO job_runs (
			id, job_name, status, started_at, items_processed, items_failed, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	run.ID = uuid.New()
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = model.JobRunStatusRunning
	}

	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode job run metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.JobName, run.Status, run.StartedAt,
		run.ItemsProcessed, run.ItemsFailed, metadata)
	if err != nil {
		return fmt.Errorf("failed to create job run: %w", err)
	}
	return nil
}

func (r *jobRunRepository) Finish(ctx context.Context, id uuid.UUID, status model.JobRunStatus, completedAt time.Time, durationMs int64, itemsProcessed, itemsFailed int, errorMessage *string) error {
	query := `
		UPDATE job_runs
		SET status = $2, completed_at = $3, duration_ms = $4,
			items_processed = $5, items_failed = $6, error_message = $7
		WHERE id = $1 AND status = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		id, status, completedAt, durationMs, itemsProcessed, itemsFailed,
		errorMessage, model.JobRunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish job run: %w", err)
	}
	return requireRowAffected(res)
}

func (r *jobRunRepository) FindRecent(ctx context.Context, jobName string, limit int) ([]*model.JobRunRecord, error) {
	query := `
		SELECT id, job_name, status, started_at, completed_at, duration_ms,
			items_processed, items_failed, error_message, metadata
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	var rows []jobRunRow
	err := r.db.SelectContext(ctx, &rows, query, jobName, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list recent job runs: %w", err)
	}

	runs := make([]*model.JobRunRecord, 0, len(rows))
	for _, row := range rows {
		run, err := row.toModel()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *jobRunRepository) FindLastSuccess(ctx context.Context, jobName string) (*model.JobRunRecord, error) {
	query := `
		SELECT id, job_name, status, started_at, completed_at, duration_ms,
			items_processed, items_failed, error_message, metadata
		FROM job_runs
		WHERE job_name = $1 AND status = $2
		ORDER BY started_at DESC
		LIMIT 1
	`

	var row jobRunRow
	err := r.db.GetContext(ctx, &row, query, jobName, model.JobRunStatusSuccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last successful run: %w", err)
	}
	return row.toModel()
}
