package health

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
	"github.com/curbwise/alerts-api/pkg/logger"
	"github.com/curbwise/alerts-api/pkg/metrics"
)

// SweepResult summarizes one health sweep pass.
type SweepResult struct {
	Checked int `json:"checked"`
	Alerted int `json:"alerted"`
	Muted   int `json:"muted"`
}

// Sweeper walks the registry and emits a "job not running" alert for
// every job in critical status, at most once per job per cooldown
// window. The window is claimed through the job_alerts store so it
// holds across replicas and restarts; the local cache only short
// circuits repeat lookups inside one process.
type Sweeper struct {
	monitor  *Monitor
	registry *Registry
	alerter  Alerter
	alertLog repository.JobAlertRepository
	cooldown time.Duration
	recent   *gocache.Cache
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewSweeper(
	monitor *Monitor,
	registry *Registry,
	alerter Alerter,
	alertLog repository.JobAlertRepository,
	cooldown time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Sweeper {
	return &Sweeper{
		monitor:  monitor,
		registry: registry,
		alerter:  alerter,
		alertLog: alertLog,
		cooldown: cooldown,
		recent:   gocache.New(cooldown, cooldown),
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}

	for _, spec := range s.registry.Specs() {
		result.Checked++

		snapshot, err := s.monitor.Compute(ctx, spec)
		if err != nil {
			return nil, err
		}
		if snapshot.Status != model.JobHealthCritical {
			continue
		}

		if _, muted := s.recent.Get(spec.Name); muted {
			result.Muted++
			continue
		}

		now := s.now()
		claimed, err := s.alertLog.MarkAlerted(ctx, spec.Name, now, now.Add(-s.cooldown))
		if err != nil {
			return nil, err
		}
		if !claimed {
			// A peer replica paged inside the window; remember that
			// locally so the store isn't asked again every pass.
			s.recent.SetDefault(spec.Name, now)
			result.Muted++
			continue
		}

		if err := s.alerter.JobMissed(ctx, snapshot); err != nil {
			// Alerting is best effort; hand the window back so the next
			// pass retries.
			s.logger.Error(err, "failed to send missed-job alert", "job", spec.Name)
			if clearErr := s.alertLog.ClearAlert(ctx, spec.Name); clearErr != nil {
				s.logger.Error(clearErr, "failed to release alert window", "job", spec.Name)
			}
			continue
		}

		s.recent.SetDefault(spec.Name, now)
		s.metrics.OperatorAlerts.WithLabelValues("missed").Inc()
		result.Alerted++
		s.logger.Warn("job critical, operator alerted",
			"job", spec.Name,
			"missed_runs", snapshot.MissedRuns,
			"consecutive_failures", snapshot.ConsecutiveFailures)
	}

	return result, nil
}
