package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curbwise/alerts-api/internal/email"
	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
	"github.com/curbwise/alerts-api/pkg/logger"
	"github.com/curbwise/alerts-api/pkg/metrics"
)

// Outcome classifies a send attempt. Everything except infrastructure
// failures comes back as a value; provider errors never escape this
// package.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeAlreadySent Outcome = "already_sent"
	OutcomeInProgress  Outcome = "in_progress"
	OutcomeFailed      Outcome = "failed"
)

type Result struct {
	Outcome           Outcome `json:"outcome"`
	ProviderMessageID string  `json:"provider_message_id,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// Message is the assembled payload handed to the provider.
type Message struct {
	Subject  string
	Body     string
	Metadata map[string]string
}

type Service interface {
	// Send performs at-most-one successful delivery for the natural key
	// (recipient, notificationType, targetDate). The returned error is
	// reserved for store failures; provider failures surface as
	// OutcomeFailed.
	Send(ctx context.Context, recipient, notificationType string, targetDate time.Time, msg *Message) (Result, error)

	// Retry re-opens a failed record and attempts the send again. This
	// is the explicit operator action; the scheduler never calls it.
	Retry(ctx context.Context, recipient, notificationType string, targetDate time.Time, msg *Message) (Result, error)
}

type service struct {
	deliveries repository.DeliveryRepository
	provider   email.Provider
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(deliveries repository.DeliveryRepository, provider email.Provider, logger *logger.Logger, metrics *metrics.Metrics) Service {
	return &service{
		deliveries: deliveries,
		provider:   provider,
		logger:     logger,
		metrics:    metrics,
	}
}

func (s *service) Send(ctx context.Context, recipient, notificationType string, targetDate time.Time, msg *Message) (Result, error) {
	if msg == nil {
		return Result{}, fmt.Errorf("message cannot be nil")
	}

	rec := &model.DeliveryRecord{
		Recipient:        recipient,
		NotificationType: notificationType,
		TargetDate:       targetDate,
		Status:           model.DeliveryStatusPending,
		Subject:          msg.Subject,
		Metadata:         msg.Metadata,
	}

	// Create-before-send: winning this insert is the only license to
	// call the provider for this key.
	err := s.deliveries.Create(ctx, rec)
	if errors.Is(err, repository.ErrDuplicateKey) {
		return s.resolveConflict(ctx, recipient, notificationType, targetDate)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to create delivery record: %w", err)
	}

	return s.performSend(ctx, rec, msg), nil
}

func (s *service) Retry(ctx context.Context, recipient, notificationType string, targetDate time.Time, msg *Message) (Result, error) {
	if msg == nil {
		return Result{}, fmt.Errorf("message cannot be nil")
	}

	rec, err := s.deliveries.FindByKey(ctx, recipient, notificationType, targetDate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load delivery record: %w", err)
	}

	switch rec.Status {
	case model.DeliveryStatusSent:
		return Result{Outcome: OutcomeAlreadySent, ProviderMessageID: deref(rec.ProviderMessageID)}, nil
	case model.DeliveryStatusPending:
		return Result{Outcome: OutcomeInProgress}, nil
	}

	if err := s.deliveries.Reopen(ctx, rec.ID); err != nil {
		// Lost a race with a concurrent retry; report in-progress.
		if errors.Is(err, repository.ErrNotFound) {
			return Result{Outcome: OutcomeInProgress}, nil
		}
		return Result{}, fmt.Errorf("failed to reopen delivery record: %w", err)
	}
	rec.Status = model.DeliveryStatusPending

	return s.performSend(ctx, rec, msg), nil
}

// resolveConflict inspects the record that beat us to the key. A sent
// record means the work is done; anything else means hands off within
// this pass: a peer may be mid-send, and a failed record needs an
// operator, not a silent resurrection.
func (s *service) resolveConflict(ctx context.Context, recipient, notificationType string, targetDate time.Time) (Result, error) {
	existing, err := s.deliveries.FindByKey(ctx, recipient, notificationType, targetDate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read conflicting delivery record: %w", err)
	}

	s.metrics.DeliveryConflicts.WithLabelValues(string(existing.Status)).Inc()

	if existing.Status == model.DeliveryStatusSent {
		return Result{
			Outcome:           OutcomeAlreadySent,
			ProviderMessageID: deref(existing.ProviderMessageID),
		}, nil
	}

	s.logger.Debug("delivery refused on existing record",
		"recipient", recipient,
		"notification_type", notificationType,
		"existing_status", string(existing.Status))
	return Result{Outcome: OutcomeInProgress}, nil
}

func (s *service) performSend(ctx context.Context, rec *model.DeliveryRecord, msg *Message) Result {
	timer := prometheus.NewTimer(s.metrics.DeliverySendDuration)
	providerID, sendErr := s.provider.Send(ctx, rec.Recipient, msg.Subject, msg.Body)
	timer.ObserveDuration()

	if sendErr != nil {
		s.metrics.DeliveriesFailed.Inc()
		s.logger.Error(sendErr, "provider send failed",
			"recipient", rec.Recipient,
			"notification_type", rec.NotificationType)

		if err := s.deliveries.MarkFailed(ctx, rec.ID, sendErr.Error()); err != nil {
			s.logger.Error(err, "failed to record delivery failure", "delivery_id", rec.ID.String())
		}
		return Result{Outcome: OutcomeFailed, Error: sendErr.Error()}
	}

	sentAt := time.Now()
	if err := s.deliveries.MarkSent(ctx, rec.ID, sentAt, providerID); err != nil {
		// The mail is out; the record update failing must not turn a
		// delivered message into a reported failure.
		s.logger.Error(err, "failed to record delivery success", "delivery_id", rec.ID.String())
	}

	s.metrics.DeliveriesSent.Inc()
	return Result{Outcome: OutcomeSent, ProviderMessageID: providerID}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
