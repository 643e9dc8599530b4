package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/curbwise/alerts-api/internal/model"
)

var (
	// ErrDuplicateKey reports a unique-constraint conflict. For delivery
	// records and lease locks this is an expected outcome, not a fault.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound reports that no row matched.
	ErrNotFound = errors.New("not found")
)

// All repository interfaces in one file
type (
	// DeliveryRepository handles delivery records. Create is the
	// linearization point for send idempotency: it must surface
	// ErrDuplicateKey on a natural-key conflict.
	DeliveryRepository interface {
		Create(ctx context.Context, rec *model.DeliveryRecord) error
		FindByKey(ctx context.Context, recipient, notificationType string, targetDate time.Time) (*model.DeliveryRecord, error)
		MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerMessageID string) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		Reopen(ctx context.Context, id uuid.UUID) error
		FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.DeliveryRecord, error)
	}

	// LeaseRepository backs the TTL lease lock. Insert surfaces
	// ErrDuplicateKey when the job-name row already exists; Reclaim is
	// a single conditional update so two reclaimers cannot both win.
	LeaseRepository interface {
		Insert(ctx context.Context, lease *model.LeaseLock) error
		Get(ctx context.Context, jobName string) (*model.LeaseLock, error)
		Reclaim(ctx context.Context, jobName, newToken string, expiresAt, now time.Time) (bool, error)
		Delete(ctx context.Context, jobName, leaseToken string) (bool, error)
	}

	JobRunRepository interface {
		Create(ctx context.Context, run *model.JobRunRecord) error
		Finish(ctx context.Context, id uuid.UUID, status model.JobRunStatus, completedAt time.Time, durationMs int64, itemsProcessed, itemsFailed int, errorMessage *string) error
		FindRecent(ctx context.Context, jobName string, limit int) ([]*model.JobRunRecord, error)
		FindLastSuccess(ctx context.Context, jobName string) (*model.JobRunRecord, error)
	}

	// JobAlertRepository persists the last-alerted timestamp per job so
	// the missed-job alert cooldown holds across replicas and restarts.
	// MarkAlerted is a single conditional upsert: it claims the window
	// only when no alert was recorded after windowStart, so of any
	// number of concurrent sweepers exactly one pages.
	JobAlertRepository interface {
		MarkAlerted(ctx context.Context, jobName string, alertedAt, windowStart time.Time) (bool, error)
		ClearAlert(ctx context.Context, jobName string) error
	}

	// AlertRepository is a read-only view over the ingestion-owned
	// alerts table.
	AlertRepository interface {
		CountCreatedSince(ctx context.Context, since time.Time) (int, error)
		NewestCreatedAt(ctx context.Context) (*time.Time, error)
		ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]*model.Alert, error)
	}

	// SubscriberRepository is a read-only view over the product's user
	// table, in a fixed fetch order.
	SubscriberRepository interface {
		ListActive(ctx context.Context) ([]*model.Subscriber, error)
		FindByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	}
)
