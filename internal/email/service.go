package email

import (
	"context"
)

// Provider performs the side-effecting send. Implementations must be
// safe to call sequentially from a single job loop; no retries happen
// at this layer.
type Provider interface {
	// Send delivers one message and returns the provider message id.
	Send(ctx context.Context, to, subject, body string) (string, error)
}
