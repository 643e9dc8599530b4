package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/service/health"
	"github.com/curbwise/alerts-api/internal/service/lease"
	"github.com/curbwise/alerts-api/pkg/logger"
)

const HealthSweepJobName = "health-sweep"

// HealthSweepJob runs the missed-job alert sweep under its own lease,
// triggered over HTTP like every other job. The sweep records its own
// execution, so a dead sweep is itself visible in job health.
type HealthSweepJob struct {
	sweeper  *health.Sweeper
	leases   lease.Service
	monitor  *health.Monitor
	leaseTTL time.Duration
	logger   *logger.Logger
}

func NewHealthSweepJob(sweeper *health.Sweeper, leases lease.Service, monitor *health.Monitor, leaseTTL time.Duration, logger *logger.Logger) *HealthSweepJob {
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}
	return &HealthSweepJob{
		sweeper:  sweeper,
		leases:   leases,
		monitor:  monitor,
		leaseTTL: leaseTTL,
		logger:   logger,
	}
}

func (j *HealthSweepJob) Run(ctx context.Context) (*health.SweepResult, bool, error) {
	token, acquired, err := j.leases.Acquire(ctx, HealthSweepJobName, j.leaseTTL)
	if err != nil {
		return nil, false, fmt.Errorf("lease acquisition failed: %w", err)
	}
	if !acquired {
		return nil, true, nil
	}
	defer func() {
		if err := j.leases.Release(ctx, HealthSweepJobName, token); err != nil {
			j.logger.Error(err, "failed to release lease", "job", HealthSweepJobName)
		}
	}()

	handle, err := j.monitor.Start(ctx, HealthSweepJobName)
	if err != nil {
		return nil, false, fmt.Errorf("failed to start run tracking: %w", err)
	}

	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		handle.Fail(ctx, 0, 0, err)
		return nil, false, err
	}

	handle.Success(ctx, result.Checked, 0)
	return result, false, nil
}
