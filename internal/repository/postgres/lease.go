package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
)

type leaseRepository struct {
	BaseRepository
}

func NewLeaseRepository(base BaseRepository) repository.LeaseRepository {
	return &leaseRepository{base}
}

func (r *leaseRepository) Insert(ctx context.Context, lease *model.LeaseLock) error {
	if lease == nil {
		return fmt.Errorf("lease cannot be nil")
	}

	query := `
		INSERT INTO lease_locks (job_name, lease_token, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		lease.JobName, lease.LeaseToken, lease.AcquiredAt, lease.ExpiresAt)
	if err := mapError(err); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return err
		}
		return fmt.Errorf("failed to insert lease: %w", err)
	}
	return nil
}

func (r *leaseRepository) Get(ctx context.Context, jobName string) (*model.LeaseLock, error) {
	query := `
		SELECT job_name, lease_token, acquired_at, expires_at
		FROM lease_locks
		WHERE job_name = $1
	`

	var lease model.LeaseLock
	err := r.db.GetContext(ctx, &lease, query, jobName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	return &lease, nil
}

// Reclaim takes over an expired lease in a single conditional update.
// The expires_at guard makes reclamation atomic: of two concurrent
// reclaimers exactly one sees a row affected.
func (r *leaseRepository) Reclaim(ctx context.Context, jobName, newToken string, expiresAt, now time.Time) (bool, error) {
	query := `
		UPDATE lease_locks
		SET lease_token = $2, acquired_at = $3, expires_at = $4
		WHERE job_name = $1 AND expires_at <= $3
	`
	res, err := r.db.ExecContext(ctx, query, jobName, newToken, now, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to reclaim lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete releases a lease only if the fencing token still matches, so a
// holder whose lease was reclaimed cannot release it out from under the
// new owner.
func (r *leaseRepository) Delete(ctx context.Context, jobName, leaseToken string) (bool, error) {
	query := `
		DELETE FROM lease_locks
		WHERE job_name = $1 AND lease_token = $2
	`
	res, err := r.db.ExecContext(ctx, query, jobName, leaseToken)
	if err != nil {
		return false, fmt.Errorf("failed to delete lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
