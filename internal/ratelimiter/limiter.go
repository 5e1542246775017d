package ratelimiter

import (
	"context"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/repository"
)

// Decision is the outcome of an admission check. A denied job carries the
// earliest time it should be retried — the end of the current window — so
// the dispatcher can defer it instead of dropping it.
type Decision struct {
	Allowed bool
	RetryAt time.Time
}

// Limiter enforces the per (recipient, channel) fixed-window send budget.
// The counter state lives in the throttle store, so the limit holds across
// restarts and across concurrent workers.
type Limiter struct {
	store  repository.ThrottleRepository
	limit  int
	window time.Duration
}

func New(store repository.ThrottleRepository, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Admit consumes one slot of the recipient's window for the channel, or
// reports when a slot will next be available.
func (l *Limiter) Admit(ctx context.Context, recipientID string, ch domain.Channel, now time.Time) (Decision, error) {
	allowed, retryAt, err := l.store.Admit(ctx, recipientID, ch, now, l.limit, l.window)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: allowed, RetryAt: retryAt}, nil
}
