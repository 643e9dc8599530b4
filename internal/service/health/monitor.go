package health

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
	"github.com/curbwise/alerts-api/pkg/logger"
	"github.com/curbwise/alerts-api/pkg/metrics"
)

// Monitor records every job execution and raises operator alerts.
// Alert delivery failures are logged and swallowed: monitoring must
// never fail the job it watches.
type Monitor struct {
	runs    repository.JobRunRepository
	alerter Alerter
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMonitor(runs repository.JobRunRepository, alerter Alerter, logger *logger.Logger, metrics *metrics.Metrics) *Monitor {
	return &Monitor{
		runs:    runs,
		alerter: alerter,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Handle tracks one execution from Start to its single terminal update.
type Handle struct {
	monitor   *Monitor
	runID     uuid.UUID
	jobName   string
	startedAt time.Time
}

func (m *Monitor) Start(ctx context.Context, jobName string) (*Handle, error) {
	startedAt := m.now()
	run := &model.JobRunRecord{
		JobName:   jobName,
		Status:    model.JobRunStatusRunning,
		StartedAt: startedAt,
	}
	if err := m.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record job start: %w", err)
	}
	return &Handle{
		monitor:   m,
		runID:     run.ID,
		jobName:   jobName,
		startedAt: startedAt,
	}, nil
}

func (h *Handle) Success(ctx context.Context, itemsProcessed, itemsFailed int) {
	m := h.monitor
	if err := h.finish(ctx, model.JobRunStatusSuccess, itemsProcessed, itemsFailed, nil); err != nil {
		m.logger.Error(err, "failed to record job success", "job", h.jobName)
		return
	}

	// First success after a bad streak gets a one-time recovered alert.
	if m.recentFailureStreak(ctx, h.jobName) >= 2 {
		if err := m.alerter.JobRecovered(ctx, h.jobName); err != nil {
			m.logger.Error(err, "failed to send recovery alert", "job", h.jobName)
		} else {
			m.metrics.OperatorAlerts.WithLabelValues("recovered").Inc()
		}
	}
}

func (h *Handle) Fail(ctx context.Context, itemsProcessed, itemsFailed int, jobErr error) {
	m := h.monitor
	msg := jobErr.Error()
	if err := h.finish(ctx, model.JobRunStatusFailed, itemsProcessed, itemsFailed, &msg); err != nil {
		m.logger.Error(err, "failed to record job failure", "job", h.jobName)
		return
	}

	// Two consecutive failures, counting this one, wake an operator.
	recent, err := m.runs.FindRecent(ctx, h.jobName, 2)
	if err != nil {
		m.logger.Error(err, "failed to inspect recent runs", "job", h.jobName)
		return
	}
	if len(recent) < 2 {
		return
	}
	for _, run := range recent {
		if run.Status != model.JobRunStatusFailed {
			return
		}
	}
	if err := m.alerter.JobFailed(ctx, h.jobName, msg); err != nil {
		m.logger.Error(err, "failed to send failure alert", "job", h.jobName)
		return
	}
	m.metrics.OperatorAlerts.WithLabelValues("failure").Inc()
}

// Timeout records externally-observed non-completion; the run itself
// does not self-abort.
func (h *Handle) Timeout(ctx context.Context) {
	msg := "run marked dead by watchdog"
	if err := h.finish(ctx, model.JobRunStatusTimeout, 0, 0, &msg); err != nil {
		h.monitor.logger.Error(err, "failed to record job timeout", "job", h.jobName)
	}
}

func (h *Handle) finish(ctx context.Context, status model.JobRunStatus, itemsProcessed, itemsFailed int, errMsg *string) error {
	m := h.monitor
	completedAt := m.now()
	duration := completedAt.Sub(h.startedAt)

	m.metrics.JobRuns.WithLabelValues(h.jobName, string(status)).Inc()
	m.metrics.JobDuration.WithLabelValues(h.jobName).Observe(duration.Seconds())

	return m.runs.Finish(ctx, h.runID, status, completedAt,
		duration.Milliseconds(), itemsProcessed, itemsFailed, errMsg)
}

// recentFailureStreak counts terminal failures immediately preceding
// the newest run (which is the success just recorded).
func (m *Monitor) recentFailureStreak(ctx context.Context, jobName string) int {
	recent, err := m.runs.FindRecent(ctx, jobName, 10)
	if err != nil {
		m.logger.Error(err, "failed to inspect recent runs", "job", jobName)
		return 0
	}

	streak := 0
	for i, run := range recent {
		if i == 0 {
			continue
		}
		if run.Status == model.JobRunStatusFailed || run.Status == model.JobRunStatusTimeout {
			streak++
			continue
		}
		break
	}
	return streak
}
