package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
	"github.com/curbwise/alerts-api/pkg/logger"
	"github.com/curbwise/alerts-api/pkg/metrics"
)

// Service mediates cross-process mutual exclusion through the
// lease_locks table. Acquisition failure is a normal outcome: the
// caller skips its run.
type Service interface {
	// Acquire returns a fencing token and true when the lease is won.
	Acquire(ctx context.Context, jobName string, ttl time.Duration) (string, bool, error)

	// Release drops the lease only while the token still owns it.
	Release(ctx context.Context, jobName, token string) error
}

type service struct {
	leases  repository.LeaseRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(leases repository.LeaseRepository, logger *logger.Logger, metrics *metrics.Metrics) Service {
	return &service{
		leases:  leases,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *service) Acquire(ctx context.Context, jobName string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, fmt.Errorf("lease ttl must be positive")
	}

	now := s.now()
	token := uuid.New().String()

	err := s.leases.Insert(ctx, &model.LeaseLock{
		JobName:    jobName,
		LeaseToken: token,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	})
	if err == nil {
		s.metrics.LeaseAcquired.WithLabelValues(jobName).Inc()
		return token, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicateKey) {
		return "", false, fmt.Errorf("failed to acquire lease: %w", err)
	}

	existing, err := s.leases.Get(ctx, jobName)
	if errors.Is(err, repository.ErrNotFound) {
		// Holder released between our insert and read; one retry.
		return s.retryInsert(ctx, jobName, token, ttl)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to inspect existing lease: %w", err)
	}

	if !existing.Expired(now) {
		s.metrics.LeaseContention.WithLabelValues(jobName).Inc()
		s.logger.Debug("lease held elsewhere",
			"job", jobName,
			"expires_at", existing.ExpiresAt.Format(time.RFC3339))
		return "", false, nil
	}

	// Stale holder: take over with one conditional write. Only one of
	// any number of concurrent reclaimers sees a row updated.
	reclaimed, err := s.leases.Reclaim(ctx, jobName, token, now.Add(ttl), now)
	if err != nil {
		return "", false, fmt.Errorf("failed to reclaim lease: %w", err)
	}
	if !reclaimed {
		s.metrics.LeaseContention.WithLabelValues(jobName).Inc()
		return "", false, nil
	}

	s.metrics.LeaseReclaimed.WithLabelValues(jobName).Inc()
	s.logger.Info("reclaimed expired lease", "job", jobName)
	return token, true, nil
}

func (s *service) retryInsert(ctx context.Context, jobName, token string, ttl time.Duration) (string, bool, error) {
	now := s.now()
	err := s.leases.Insert(ctx, &model.LeaseLock{
		JobName:    jobName,
		LeaseToken: token,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		s.metrics.LeaseContention.WithLabelValues(jobName).Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	s.metrics.LeaseAcquired.WithLabelValues(jobName).Inc()
	return token, true, nil
}

func (s *service) Release(ctx context.Context, jobName, token string) error {
	deleted, err := s.leases.Delete(ctx, jobName, token)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if !deleted {
		// Our TTL lapsed and someone reclaimed the lease; nothing to do
		// but note it.
		s.metrics.LeaseReleaseMiss.WithLabelValues(jobName).Inc()
		s.logger.Warn("lease no longer owned at release", "job", jobName)
	}
	return nil
}
