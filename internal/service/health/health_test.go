package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbwise/alerts-api/internal/model"
)

func reconcileSpec() JobSpec {
	return JobSpec{
		Name:             "reconcile-pending",
		ExpectedInterval: 5 * time.Minute,
		AlertThreshold:   3,
	}
}

func TestComputeUnknownWithoutAnySuccess(t *testing.T) {
	repo := &fakeRunRepo{}
	m := newTestMonitor(repo, NopAlerter{}, time.Now())

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, model.JobHealthUnknown, snapshot.Status)
	assert.Nil(t, snapshot.LastSuccessAt)
}

func TestComputeUnknownDespiteFailures(t *testing.T) {
	// Failures without a baseline success cannot produce a missed-run
	// count; the job has simply never worked.
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusFailed, now.Add(-10*time.Minute))
	repo.seed("reconcile-pending", model.JobRunStatusFailed, now.Add(-5*time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, model.JobHealthUnknown, snapshot.Status)
	assert.Equal(t, 2, snapshot.ConsecutiveFailures)
}

func TestComputeHealthy(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-4*time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, model.JobHealthHealthy, snapshot.Status)
	assert.Equal(t, 0, snapshot.MissedRuns)
	assert.Equal(t, 0, snapshot.ConsecutiveFailures)
}

func TestComputeOneIntervalLateIsStillHealthy(t *testing.T) {
	// 6 minutes since success at a 5 minute interval: the current run is
	// merely due, not missed.
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-6*time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.MissedRuns)
	assert.Equal(t, model.JobHealthHealthy, snapshot.Status)
}

func TestComputeMissedRunsGoCritical(t *testing.T) {
	// 20 minutes without a success at a 5 minute interval is 3 missed
	// runs, meeting the threshold.
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-20*time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.MissedRuns)
	assert.Equal(t, model.JobHealthCritical, snapshot.Status)
}

func TestComputeWarningOnFirstMiss(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-11*time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.MissedRuns)
	assert.Equal(t, model.JobHealthWarning, snapshot.Status)
}

func TestComputeWarningOnTwoConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-4*time.Minute))
	repo.seed("reconcile-pending", model.JobRunStatusFailed, now.Add(-3*time.Minute))
	repo.seed("reconcile-pending", model.JobRunStatusFailed, now.Add(-2*time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.ConsecutiveFailures)
	assert.Equal(t, model.JobHealthWarning, snapshot.Status)
}

func TestComputeCriticalOnThreeConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-5*time.Minute))
	repo.seed("reconcile-pending", model.JobRunStatusFailed, now.Add(-4*time.Minute))
	repo.seed("reconcile-pending", model.JobRunStatusTimeout, now.Add(-3*time.Minute))
	repo.seed("reconcile-pending", model.JobRunStatusFailed, now.Add(-2*time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.ConsecutiveFailures)
	assert.Equal(t, model.JobHealthCritical, snapshot.Status)
}

func TestComputeRunningRunDoesNotCountAsFailure(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-4*time.Minute))
	repo.seed("reconcile-pending", model.JobRunStatusRunning, now.Add(-time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	snapshot, err := m.Compute(context.Background(), reconcileSpec())
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.ConsecutiveFailures)
	assert.Equal(t, model.JobHealthHealthy, snapshot.Status)
}

func TestComputeAllCoversRegistry(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeRunRepo{}
	repo.seed("reconcile-pending", model.JobRunStatusSuccess, now.Add(-time.Minute))
	m := newTestMonitor(repo, NopAlerter{}, now)

	registry := NewRegistry(
		reconcileSpec(),
		JobSpec{Name: "health-sweep", ExpectedInterval: 15 * time.Minute, AlertThreshold: 3},
	)

	snapshots, err := m.ComputeAll(context.Background(), registry)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, model.JobHealthHealthy, snapshots[0].Status)
	assert.Equal(t, model.JobHealthUnknown, snapshots[1].Status)
}
