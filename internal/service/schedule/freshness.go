package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/repository"
)

type FreshnessClass string

const (
	FreshnessFresh        FreshnessClass = "fresh"
	FreshnessInsufficient FreshnessClass = "insufficient"
	FreshnessStale        FreshnessClass = "stale"
)

// stalenessCeiling caps the age of the newest item in the whole corpus.
// Past it the content is stale for every slot, whatever the in-window
// count says: it means ingestion has died, not that the city is quiet.
const stalenessCeiling = 24 * time.Hour

type FreshnessReport struct {
	Class         FreshnessClass `json:"class"`
	CountInWindow int            `json:"count_in_window"`
	NewestAge     *time.Duration `json:"newest_age,omitempty"`
}

type freshnessChecker struct {
	alerts repository.AlertRepository
	now    func() time.Time
}

func newFreshnessChecker(alerts repository.AlertRepository) *freshnessChecker {
	return &freshnessChecker{alerts: alerts, now: time.Now}
}

// Evaluate classifies content for one slot: stale beats insufficient
// beats fresh. An empty corpus is stale.
func (c *freshnessChecker) Evaluate(ctx context.Context, cfg SlotConfig) (*FreshnessReport, error) {
	now := c.now()

	count, err := c.alerts.CountCreatedSince(ctx, now.Add(-cfg.LookBack))
	if err != nil {
		return nil, fmt.Errorf("failed to count fresh alerts: %w", err)
	}

	newest, err := c.alerts.NewestCreatedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find newest alert: %w", err)
	}

	report := &FreshnessReport{CountInWindow: count}

	if newest == nil {
		report.Class = FreshnessStale
		return report, nil
	}

	age := now.Sub(*newest)
	report.NewestAge = &age

	switch {
	case age > stalenessCeiling:
		report.Class = FreshnessStale
	case count < cfg.MinFreshItems:
		report.Class = FreshnessInsufficient
	default:
		report.Class = FreshnessFresh
	}
	return report, nil
}
