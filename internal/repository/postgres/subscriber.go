package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/curbwise/alerts-api/internal/model"
	"github.com/curbwise/alerts-api/internal/repository"
)

type subscriberRepository struct {
	BaseRepository
}

func NewSubscriberRepository(base BaseRepository) repository.SubscriberRepository {
	return &subscriberRepository{base}
}

// ListActive returns subscribers in a fixed fetch order so every run of
// a slot job walks users the same way.
func (r *subscriberRepository) ListActive(ctx context.Context) ([]*model.Subscriber, error) {
	query := `
		SELECT id, email, tier, neighborhood, slot_morning, slot_midday, slot_evening, created_at
		FROM subscribers
		WHERE active = TRUE
		ORDER BY created_at ASC, id ASC
	`

	var subscribers []*model.Subscriber
	err := r.db.SelectContext(ctx, &subscribers, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subscribers, nil
}

func (r *subscriberRepository) FindByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	query := `
		SELECT id, email, tier, neighborhood, slot_morning, slot_midday, slot_evening, created_at
		FROM subscribers
		WHERE email = $1 AND active = TRUE
	`

	var sub model.Subscriber
	err := r.db.GetContext(ctx, &sub, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriber: %w", err)
	}
	return &sub, nil
}
