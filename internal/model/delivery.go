package model

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// DeliveryRecord is one row per attempted send. The natural key
// (recipient, notification_type, target_date) carries a UNIQUE
// constraint; it is the only concurrency control for send idempotency.
type DeliveryRecord struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	Recipient         string            `db:"recipient" json:"recipient"`
	NotificationType  string            `db:"notification_type" json:"notification_type"`
	TargetDate        time.Time         `db:"target_date" json:"target_date"`
	Status            DeliveryStatus    `db:"status" json:"status"`
	Subject           string            `db:"subject" json:"subject"`
	Metadata          map[string]string `db:"-" json:"metadata,omitempty"`
	SentAt            *time.Time        `db:"sent_at" json:"sent_at,omitempty"`
	ProviderMessageID *string           `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ErrorMessage      *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// TruncateToDay normalizes a target date to its calendar day in UTC.
// Target dates identify the occasion being notified about, never the
// send timestamp.
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
