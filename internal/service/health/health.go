package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
)

// JobSpec declares how often a job is expected to succeed and when its
// absence becomes critical.
type JobSpec struct {
	Name             string        `json:"name"`
	ExpectedInterval time.Duration `json:"expected_interval"`
	AlertThreshold   int           `json:"alert_threshold"`
}

// Registry is the fixed set of monitored jobs, assembled at wiring
// time.
type Registry struct {
	specs []JobSpec
}

func NewRegistry(specs ...JobSpec) *Registry {
	return &Registry{specs: specs}
}

func (r *Registry) Specs() []JobSpec {
	return r.specs
}

const recentRunWindow = 20

// Compute derives a health snapshot for one job from its recent run
// records. It persists nothing.
func (m *Monitor) Compute(ctx context.Context, spec JobSpec) (*model.JobHealthSnapshot, error) {
	snapshot := &model.JobHealthSnapshot{
		JobName: spec.Name,
		Status:  model.JobHealthUnknown,
	}

	recent, err := m.runs.FindRecent(ctx, spec.Name, recentRunWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent runs: %w", err)
	}
	if len(recent) > 0 {
		snapshot.LastRun = recent[0]
	}

	for _, run := range recent {
		if run.Status == model.JobRunStatusSuccess {
			break
		}
		if run.Terminal() {
			snapshot.ConsecutiveFailures++
		}
	}

	lastSuccess, err := m.runs.FindLastSuccess(ctx, spec.Name)
	if errors.Is(err, repository.ErrNotFound) {
		// Never succeeded: stays unknown no matter how many failures.
		return snapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last success: %w", err)
	}
	snapshot.LastSuccessAt = &lastSuccess.StartedAt

	elapsed := m.now().Sub(lastSuccess.StartedAt)
	missed := int(elapsed/spec.ExpectedInterval) - 1
	if missed < 0 {
		missed = 0
	}
	snapshot.MissedRuns = missed

	switch {
	case missed >= spec.AlertThreshold || snapshot.ConsecutiveFailures >= 3:
		snapshot.Status = model.JobHealthCritical
	case missed >= 1 || snapshot.ConsecutiveFailures >= 2:
		snapshot.Status = model.JobHealthWarning
	default:
		snapshot.Status = model.JobHealthHealthy
	}
	return snapshot, nil
}

// ComputeAll snapshots every registered job.
func (m *Monitor) ComputeAll(ctx context.Context, registry *Registry) ([]*model.JobHealthSnapshot, error) {
	snapshots := make([]*model.JobHealthSnapshot, 0, len(registry.Specs()))
	for _, spec := range registry.Specs() {
		snapshot, err := m.Compute(ctx, spec)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}
