package freqcap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker caps how many notifications one recipient receives per day.
// Counters live in Redis keyed by (recipient, notification type, day)
// and expire on their own after the day rolls over.
type Checker struct {
	client     *redis.Client
	dailyLimit int
}

func NewChecker(client *redis.Client, dailyLimit int) *Checker {
	return &Checker{client: client, dailyLimit: dailyLimit}
}

func (c *Checker) Allow(ctx context.Context, recipient, notificationType string, day time.Time) (bool, error) {
	count, err := c.client.Get(ctx, capKey(recipient, notificationType, day)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read frequency cap counter: %w", err)
	}
	return count < c.dailyLimit, nil
}

// Record bumps the recipient's counter after a successful send. The key
// lives for 48h so a counter never outlives its relevance.
func (c *Checker) Record(ctx context.Context, recipient, notificationType string, day time.Time) error {
	key := capKey(recipient, notificationType, day)

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record frequency cap hit: %w", err)
	}
	return nil
}

func capKey(recipient, notificationType string, day time.Time) string {
	return fmt.Sprintf("freqcap:%s:%s:%s", recipient, notificationType, day.UTC().Format("2006-01-02"))
}
