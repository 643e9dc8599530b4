package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
	"github.com/curbwise/alerts-api/internal/service/health"
	"github.com/curbwise/alerts-api/internal/service/lease"
	"github.com/curbwise/alerts-api/internal/service/sender"
	"github.com/curbwise/alerts-api/pkg/logger"
	"github.com/curbwise/alerts-api/pkg/metrics"
)

// Skip reasons tagged into the run summary.
const (
	SkipReasonFrequencyCap = "frequency_cap"
	SkipReasonNoContent    = "no_content"
	SkipReasonInProgress   = "in_progress"
)

// FrequencyCap is the external per-user volume policy.
type FrequencyCap interface {
	Allow(ctx context.Context, recipient, notificationType string, day time.Time) (bool, error)
	Record(ctx context.Context, recipient, notificationType string, day time.Time) error
}

// RunOutcome is the whole-job disposition; all three are HTTP 200s.
type RunOutcome string

const (
	RunCompleted    RunOutcome = "completed"
	RunSkippedLock  RunOutcome = "skipped_no_lock"
	RunSkippedStale RunOutcome = "skipped_content"
)

// RunSummary accounts for every eligible user:
// Sent + Skipped + Failed == TotalUsers, always.
type RunSummary struct {
	Job            string           `json:"job"`
	Slot           Slot             `json:"slot"`
	Outcome        RunOutcome       `json:"outcome"`
	Freshness      *FreshnessReport `json:"freshness,omitempty"`
	TotalUsers     int              `json:"total_users"`
	Sent           int              `json:"sent"`
	Skipped        int              `json:"skipped"`
	Failed         int              `json:"failed"`
	SkippedReasons map[string]int   `json:"skipped_reasons"`
	Errors         []string         `json:"errors"`
}

type Service interface {
	// Run executes one time-slot job end to end: lease, freshness gate,
	// eligibility, sequential send loop, health bookkeeping.
	Run(ctx context.Context, slot Slot) (*RunSummary, error)
}

type service struct {
	leases      lease.Service
	sender      sender.Service
	subscribers repository.SubscriberRepository
	freshness   *freshnessChecker
	content     *contentBuilder
	freqCap     FrequencyCap
	monitor     *health.Monitor
	leaseTTL    time.Duration
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(
	leases lease.Service,
	sendSvc sender.Service,
	subscribers repository.SubscriberRepository,
	alerts repository.AlertRepository,
	freqCap FrequencyCap,
	monitor *health.Monitor,
	leaseTTL time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) Service {
	return &service{
		leases:      leases,
		sender:      sendSvc,
		subscribers: subscribers,
		freshness:   newFreshnessChecker(alerts),
		content:     newContentBuilder(alerts),
		freqCap:     freqCap,
		monitor:     monitor,
		leaseTTL:    leaseTTL,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *service) Run(ctx context.Context, slot Slot) (*RunSummary, error) {
	cfg, err := SlotConfigFor(slot)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		Job:            cfg.JobName,
		Slot:           slot,
		SkippedReasons: map[string]int{},
		Errors:         []string{},
	}

	token, acquired, err := s.leases.Acquire(ctx, cfg.JobName, s.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("lease acquisition failed: %w", err)
	}
	if !acquired {
		// Another runner holds the slot; skipping is the correct
		// response, not an error.
		s.logger.Info("slot run skipped, lease held elsewhere", "job", cfg.JobName)
		summary.Outcome = RunSkippedLock
		return summary, nil
	}
	defer func() {
		if err := s.leases.Release(ctx, cfg.JobName, token); err != nil {
			s.logger.Error(err, "failed to release lease", "job", cfg.JobName)
		}
	}()

	handle, err := s.monitor.Start(ctx, cfg.JobName)
	if err != nil {
		return nil, fmt.Errorf("failed to start run tracking: %w", err)
	}

	if err := s.execute(ctx, cfg, summary); err != nil {
		handle.Fail(ctx, summary.Sent, summary.Failed, err)
		return summary, err
	}

	handle.Success(ctx, summary.Sent, summary.Failed)
	return summary, nil
}

func (s *service) execute(ctx context.Context, cfg SlotConfig, summary *RunSummary) error {
	freshness, err := s.freshness.Evaluate(ctx, cfg)
	if err != nil {
		return fmt.Errorf("freshness check failed: %w", err)
	}
	summary.Freshness = freshness

	if freshness.Class != FreshnessFresh && !cfg.AllowStaleFallback {
		s.logger.Info("slot run skipped on content gate",
			"job", cfg.JobName,
			"class", string(freshness.Class),
			"count_in_window", freshness.CountInWindow)
		summary.Outcome = RunSkippedStale
		return nil
	}
	if freshness.Class != FreshnessFresh {
		s.logger.Warn("fallback slot proceeding past content gate",
			"job", cfg.JobName, "class", string(freshness.Class))
	}

	subscribers, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscribers: %w", err)
	}

	var eligible []*model.Subscriber
	for _, sub := range subscribers {
		if EligibleFor(sub, cfg.Slot) {
			eligible = append(eligible, sub)
		}
	}
	summary.TotalUsers = len(eligible)

	// One window query serves the whole run; section assembly is per
	// recipient because relevance depends on the subscriber.
	items, err := s.content.Load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load digest content: %w", err)
	}

	today := model.TruncateToDay(s.now())

	// Sequential by design: auditable ordering and no thundering herd
	// against the provider.
	for _, sub := range eligible {
		s.processSubscriber(ctx, cfg, sub, items, today, summary)
	}

	s.recordOutcomes(cfg.JobName, summary)
	summary.Outcome = RunCompleted
	s.logger.Info("slot run completed",
		"job", cfg.JobName,
		"total_users", summary.TotalUsers,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return nil
}

func (s *service) processSubscriber(ctx context.Context, cfg SlotConfig, sub *model.Subscriber, items []*model.Alert, today time.Time, summary *RunSummary) {
	allowed, err := s.freqCap.Allow(ctx, sub.Email, cfg.NotificationType, today)
	if err != nil {
		summary.Failed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: frequency cap check: %v", sub.Email, err))
		return
	}
	if !allowed {
		s.skip(summary, SkipReasonFrequencyCap)
		return
	}

	sections := buildSections(sub, items)
	if len(sections) == 0 {
		s.skip(summary, SkipReasonNoContent)
		return
	}

	subject, body := renderDigest(cfg, today, sections)
	result, err := s.sender.Send(ctx, sub.Email, cfg.NotificationType, today, &sender.Message{
		Subject: subject,
		Body:    body,
		Metadata: map[string]string{
			"slot": string(cfg.Slot),
		},
	})
	if err != nil {
		summary.Failed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", sub.Email, err))
		return
	}

	switch result.Outcome {
	case sender.OutcomeSent:
		summary.Sent++
		if err := s.freqCap.Record(ctx, sub.Email, cfg.NotificationType, today); err != nil {
			// The send already happened; a cap bookkeeping miss is not
			// a delivery failure.
			s.logger.Error(err, "failed to record frequency cap hit", "recipient", sub.Email)
		}
	case sender.OutcomeAlreadySent:
		// A previous run (or concurrent peer) already delivered today.
		summary.Sent++
	case sender.OutcomeInProgress:
		s.skip(summary, SkipReasonInProgress)
	case sender.OutcomeFailed:
		summary.Failed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", sub.Email, result.Error))
	}
}

func (s *service) skip(summary *RunSummary, reason string) {
	summary.Skipped++
	summary.SkippedReasons[reason]++
}

func (s *service) recordOutcomes(jobName string, summary *RunSummary) {
	s.metrics.JobUsersTotal.WithLabelValues(jobName, "sent").Add(float64(summary.Sent))
	s.metrics.JobUsersTotal.WithLabelValues(jobName, "skipped").Add(float64(summary.Skipped))
	s.metrics.JobUsersTotal.WithLabelValues(jobName, "failed").Add(float64(summary.Failed))
	for reason, count := range summary.SkippedReasons {
		s.metrics.JobSkipReasons.WithLabelValues(jobName, reason).Add(float64(count))
	}
}
