package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/email"
	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
	"github.com/curbwise/alerts-api/internal/service/health"
	"github.com/curbwise/alerts-api/internal/service/lease"
	"github.com/curbwise/alerts-api/internal/service/schedule"
	"github.com/curbwise/alerts-api/pkg/logger"
)

const ReconcileJobName = "reconcile-pending"

type ReconcilerConfig struct {
	GracePeriod time.Duration
	BatchSize   int
	LeaseTTL    time.Duration
}

// ReconcileResult summarizes one sweep over stranded pending records.
type ReconcileResult struct {
	Outcome  string `json:"outcome"`
	Examined int    `json:"examined"`
	Retried  int    `json:"retried"`
	Failed   int    `json:"failed"`
}

// Reconciler resolves delivery records stranded in pending by a crash
// between record creation and send completion. Policy: while the
// record's target day is still current, rebuild the digest and retry
// the send exactly once; anything older is marked failed, since a late
// digest for a past day is noise.
type Reconciler struct {
	deliveries repository.DeliveryRepository
	provider   email.Provider
	digests    *schedule.DigestBuilder
	leases     lease.Service
	monitor    *health.Monitor
	config     ReconcilerConfig
	logger     *logger.Logger
	now        func() time.Time
}

func NewReconciler(
	deliveries repository.DeliveryRepository,
	provider email.Provider,
	digests *schedule.DigestBuilder,
	leases lease.Service,
	monitor *health.Monitor,
	config ReconcilerConfig,
	logger *logger.Logger,
) *Reconciler {
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = 10 * time.Minute
	}
	return &Reconciler{
		deliveries: deliveries,
		provider:   provider,
		digests:    digests,
		leases:     leases,
		monitor:    monitor,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

func (r *Reconciler) Run(ctx context.Context) (*ReconcileResult, error) {
	token, acquired, err := r.leases.Acquire(ctx, ReconcileJobName, r.config.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("lease acquisition failed: %w", err)
	}
	if !acquired {
		return &ReconcileResult{Outcome: "skipped_no_lock"}, nil
	}
	defer func() {
		if err := r.leases.Release(ctx, ReconcileJobName, token); err != nil {
			r.logger.Error(err, "failed to release lease", "job", ReconcileJobName)
		}
	}()

	handle, err := r.monitor.Start(ctx, ReconcileJobName)
	if err != nil {
		return nil, fmt.Errorf("failed to start run tracking: %w", err)
	}

	result, err := r.sweep(ctx)
	if err != nil {
		handle.Fail(ctx, 0, 0, err)
		return nil, err
	}

	handle.Success(ctx, result.Examined, result.Failed)
	result.Outcome = "completed"
	return result, nil
}

func (r *Reconciler) sweep(ctx context.Context) (*ReconcileResult, error) {
	now := r.now()
	cutoff := now.Add(-r.config.GracePeriod)

	stale, err := r.deliveries.FindStalePending(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending deliveries: %w", err)
	}

	result := &ReconcileResult{}
	today := model.TruncateToDay(now)

	for _, rec := range stale {
		result.Examined++

		if !rec.TargetDate.Equal(today) {
			r.markFailed(ctx, rec, "expired in pending state", result)
			continue
		}

		subject, body, ok, err := r.digests.Build(ctx, rec.Recipient, rec.NotificationType, rec.TargetDate)
		if err != nil || !ok {
			if err != nil {
				r.logger.Error(err, "failed to rebuild digest for reconciliation", "delivery_id", rec.ID.String())
			}
			r.markFailed(ctx, rec, "pending record could not be replayed", result)
			continue
		}

		providerID, sendErr := r.provider.Send(ctx, rec.Recipient, subject, body)
		if sendErr != nil {
			r.markFailed(ctx, rec, fmt.Sprintf("reconcile retry failed: %v", sendErr), result)
			continue
		}

		if err := r.deliveries.MarkSent(ctx, rec.ID, r.now(), providerID); err != nil {
			r.logger.Error(err, "failed to record reconciled send", "delivery_id", rec.ID.String())
			continue
		}
		result.Retried++
		r.logger.Info("reconciled stranded delivery",
			"delivery_id", rec.ID.String(),
			"recipient", rec.Recipient)
	}

	return result, nil
}

func (r *Reconciler) markFailed(ctx context.Context, rec *model.DeliveryRecord, reason string, result *ReconcileResult) {
	if err := r.deliveries.MarkFailed(ctx, rec.ID, reason); err != nil {
		r.logger.Error(err, "failed to mark stale delivery failed", "delivery_id", rec.ID.String())
		return
	}
	result.Failed++
}
