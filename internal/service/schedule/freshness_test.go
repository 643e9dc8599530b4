package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbwise/alerts-api/internal/model"
)

// fakeAlertRepo answers freshness and content queries from a fixed
// in-memory corpus.
type fakeAlertRepo struct {
	alerts  []*model.Alert
	listErr error
}

func (f *fakeAlertRepo) CountCreatedSince(_ context.Context, since time.Time) (int, error) {
	if f.listErr != nil {
		return 0, f.listErr
	}
	count := 0
	for _, a := range f.alerts {
		if !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAlertRepo) NewestCreatedAt(_ context.Context) (*time.Time, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var newest *time.Time
	for _, a := range f.alerts {
		if newest == nil || a.CreatedAt.After(*newest) {
			t := a.CreatedAt
			newest = &t
		}
	}
	return newest, nil
}

func (f *fakeAlertRepo) ListCreatedSince(_ context.Context, since time.Time, limit int) ([]*model.Alert, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*model.Alert
	for _, a := range f.alerts {
		if !a.CreatedAt.Before(since) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func alertAt(category model.AlertCategory, createdAt time.Time) *model.Alert {
	return &model.Alert{
		Category:  category,
		Title:     "test alert",
		CreatedAt: createdAt,
	}
}

func newChecker(repo *fakeAlertRepo, now time.Time) *freshnessChecker {
	c := newFreshnessChecker(repo)
	c.now = func() time.Time { return now }
	return c
}

func TestEvaluateEmptyCorpusIsStale(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	checker := newChecker(&fakeAlertRepo{}, now)

	cfg, err := SlotConfigFor(SlotMidday)
	require.NoError(t, err)

	report, err := checker.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, FreshnessStale, report.Class)
	assert.Equal(t, 0, report.CountInWindow)
	assert.Nil(t, report.NewestAge)
}

func TestEvaluateNewestPastCeilingIsStale(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeAlertRepo{alerts: []*model.Alert{
		alertAt(model.AlertCategoryParking, now.Add(-25*time.Hour)),
	}}
	checker := newChecker(repo, now)

	cfg, err := SlotConfigFor(SlotMidday)
	require.NoError(t, err)

	report, err := checker.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, FreshnessStale, report.Class)
}

func TestEvaluateBelowMinimumIsInsufficient(t *testing.T) {
	// Midday wants at least 2 items inside a 4h window; one item 3h old
	// is recent but not enough.
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeAlertRepo{alerts: []*model.Alert{
		alertAt(model.AlertCategoryParking, now.Add(-3*time.Hour)),
	}}
	checker := newChecker(repo, now)

	cfg, err := SlotConfigFor(SlotMidday)
	require.NoError(t, err)

	report, err := checker.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, FreshnessInsufficient, report.Class)
	assert.Equal(t, 1, report.CountInWindow)
	require.NotNil(t, report.NewestAge)
	assert.Equal(t, 3*time.Hour, *report.NewestAge)
}

func TestEvaluateStaleOutranksInsufficient(t *testing.T) {
	// Plenty of items, all ancient: the window count is zero and the
	// newest is past the ceiling. Stale must win.
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeAlertRepo{alerts: []*model.Alert{
		alertAt(model.AlertCategoryParking, now.Add(-30*time.Hour)),
		alertAt(model.AlertCategoryTransit, now.Add(-40*time.Hour)),
		alertAt(model.AlertCategoryEvents, now.Add(-48*time.Hour)),
	}}
	checker := newChecker(repo, now)

	cfg, err := SlotConfigFor(SlotEvening)
	require.NoError(t, err)

	report, err := checker.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, FreshnessStale, report.Class)
}

func TestEvaluateFresh(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeAlertRepo{alerts: []*model.Alert{
		alertAt(model.AlertCategoryParking, now.Add(-1*time.Hour)),
		alertAt(model.AlertCategoryTransit, now.Add(-2*time.Hour)),
	}}
	checker := newChecker(repo, now)

	cfg, err := SlotConfigFor(SlotMidday)
	require.NoError(t, err)

	report, err := checker.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, FreshnessFresh, report.Class)
	assert.Equal(t, 2, report.CountInWindow)
}

func TestEvaluateWindowBoundaryCountsInclusive(t *testing.T) {
	// An item created exactly at the window edge still counts.
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakeAlertRepo{alerts: []*model.Alert{
		alertAt(model.AlertCategoryParking, now.Add(-4*time.Hour)),
		alertAt(model.AlertCategoryTransit, now.Add(-1*time.Hour)),
	}}
	checker := newChecker(repo, now)

	cfg, err := SlotConfigFor(SlotMidday)
	require.NoError(t, err)

	report, err := checker.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, FreshnessFresh, report.Class)
	assert.Equal(t, 2, report.CountInWindow)
}
