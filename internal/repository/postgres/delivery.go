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

type deliveryRepository struct {
	BaseRepository
}

func NewDeliveryRepository(base BaseRepository) repository.DeliveryRepository {
	return &deliveryRepository{base}
}

// deliveryRow carries the jsonb metadata column alongside the model.
type deliveryRow struct {
	model.DeliveryRecord
	MetadataRaw []byte `db:"metadata"`
}

func (r deliveryRow) toModel() (*model.DeliveryRecord, error) {
	rec := r.DeliveryRecord
	if len(r.MetadataRaw) > 0 {
		if err := json.Unmarshal(r.MetadataRaw, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode delivery metadata: %w", err)
		}
	}
	return &rec, nil
}

func (r *deliveryRepository) Create(ctx context.Context, rec *model.DeliveryRecord) error {
	if rec == nil {
		return fmt.Errorf("delivery record cannot be nil")
	}

	query := `
		INSERT INTO delivery_records (
			id, recipient, notification_type, target_date, status,
			subject, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`
	rec.ID = uuid.New()
	rec.TargetDate = model.TruncateToDay(rec.TargetDate)
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	if rec.Status == "" {
		rec.Status = model.DeliveryStatusPending
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode delivery metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Recipient,
		rec.NotificationType,
		rec.TargetDate,
		rec.Status,
		rec.Subject,
		metadata,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err := mapError(err); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return err
		}
		return fmt.Errorf("failed to create delivery record: %w", err)
	}
	return nil
}

func (r *deliveryRepository) FindByKey(ctx context.Context, recipient, notificationType string, targetDate time.Time) (*model.DeliveryRecord, error) {
	query := `
		SELECT id, recipient, notification_type, target_date, status,
			subject, metadata, sent_at, provider_message_id, error_message,
			created_at, updated_at
		FROM delivery_records
		WHERE recipient = $1 AND notification_type = $2 AND target_date = $3
	`

	var row deliveryRow
	err := r.db.GetContext(ctx, &row, query, recipient, notificationType, model.TruncateToDay(targetDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find delivery record: %w", err)
	}
	return row.toModel()
}

func (r *deliveryRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerMessageID string) error {
	query := `
		UPDATE delivery_records
		SET status = $1, sent_at = $2, provider_message_id = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query,
		model.DeliveryStatusSent, sentAt, providerMessageID, id, model.DeliveryStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark delivery sent: %w", err)
	}
	return requireRowAffected(res)
}

func (r *deliveryRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE delivery_records
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query,
		model.DeliveryStatusFailed, errorMessage, id, model.DeliveryStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark delivery failed: %w", err)
	}
	return requireRowAffected(res)
}

// Reopen moves a failed record back to pending. Only an explicit
// operator action goes through here; the send path never resurrects a
// failed record on its own.
func (r *deliveryRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE delivery_records
		SET status = $1, error_message = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	res, err := r.db.ExecContext(ctx, query,
		model.DeliveryStatusPending, id, model.DeliveryStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to reopen delivery record: %w", err)
	}
	return requireRowAffected(res)
}

func (r *deliveryRepository) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.DeliveryRecord, error) {
	query := `
		SELECT id, recipient, notification_type, target_date, status,
			subject, metadata, sent_at, provider_message_id, error_message,
			created_at, updated_at
		FROM delivery_records
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	var rows []deliveryRow
	err := r.db.SelectContext(ctx, &rows, query, model.DeliveryStatusPending, olderThan, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending deliveries: %w", err)
	}

	records := make([]*model.DeliveryRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
