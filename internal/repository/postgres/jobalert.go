package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/repository"
)

type jobAlertRepository struct {
	BaseRepository
}

func NewJobAlertRepository(base BaseRepository) repository.JobAlertRepository {
	return &jobAlertRepository{base}
}

// MarkAlerted claims the alert window for jobName in one conditional
// upsert, the same shape as the lease reclaim: the WHERE guard on the
// update means a row already alerted after windowStart is left alone
// and zero rows come back affected.
func (r *jobAlertRepository) MarkAlerted(ctx context.Context, jobName string, alertedAt, windowStart time.Time) (bool, error) {
	query := `
		INSERT INTO job_alerts (job_name, last_alerted_at)
		VALUES ($1, $2)
		ON CONFLICT (job_name) DO UPDATE SET last_alerted_at = $2
		WHERE job_alerts.last_alerted_at <= $3
	`
	res, err := r.db.ExecContext(ctx, query, jobName, alertedAt, windowStart)
	if err != nil {
		return false, fmt.Errorf("failed to mark job alerted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearAlert hands the window back, used when the page itself could not
// be delivered.
func (r *jobAlertRepository) ClearAlert(ctx context.Context, jobName string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM job_alerts WHERE job_name = $1`, jobName)
	if err != nil {
		return fmt.Errorf("failed to clear job alert: %w", err)
	}
	return nil
}
