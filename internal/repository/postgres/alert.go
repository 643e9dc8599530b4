package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
)

type alertRepository struct {
	BaseRepository
}

func NewAlertRepository(base BaseRepository) repository.AlertRepository {
	return &alertRepository{base}
}

func (r *alertRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM alerts WHERE created_at >= $1`, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

func (r *alertRepository) NewestCreatedAt(ctx context.Context) (*time.Time, error) {
	var newest time.Time
	err := r.db.GetContext(ctx, &newest,
		`SELECT created_at FROM alerts ORDER BY created_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find newest alert: %w", err)
	}
	return &newest, nil
}

func (r *alertRepository) ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]*model.Alert, error) {
	query := `
		SELECT id, category, title, summary, neighborhood, effective_on, created_at
		FROM alerts
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var alerts []*model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, since, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
