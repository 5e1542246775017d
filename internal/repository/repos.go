package repository

import (
	"context"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// ScheduleRepository persists scheduled messages and recurring rules.
// The pgx implementation is in pg_schedule_repo.go; tests use a
// hand-written mock (mock_schedule_repo.go).
type ScheduleRepository interface {
	CreateMessage(ctx context.Context, m *domain.ScheduledMessage) error
	// CreateFromRule inserts a rule-materialized message. It returns false
	// without error when the idempotency key already exists, which is how
	// overlapping ticks avoid double materialization.
	CreateFromRule(ctx context.Context, m *domain.ScheduledMessage) (bool, error)
	GetMessage(ctx context.Context, id string) (*domain.ScheduledMessage, error)
	DueMessages(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledMessage, error)
	MarkStatus(ctx context.Context, id string, status domain.MessageStatus, lastError *string) error
	// SetChannels persists the routed fallback snapshot the first time the
	// dispatcher picks the message up.
	SetChannels(ctx context.Context, id string, channels []domain.Channel) error
	// Reschedule pushes schedule_at forward and returns the message to
	// pending, used for quiet-hours and throttle deferrals.
	Reschedule(ctx context.Context, id string, at time.Time) error
	// ScheduleRetry re-enqueues a message with updated attempt bookkeeping
	// and a future schedule_at, so retries survive restarts.
	ScheduleRetry(ctx context.Context, id string, attempts, channelIndex int, at time.Time, lastError string) error
	// ReleaseStale returns dispatching messages last touched before cutoff
	// to pending, recovering work stranded by a crashed worker or restart.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int, error)
	Cancel(ctx context.Context, id string) error

	CreateRule(ctx context.Context, r *domain.RecurringRule) error
	GetRule(ctx context.Context, id string) (*domain.RecurringRule, error)
	DueRules(ctx context.Context, now time.Time, limit int) ([]*domain.RecurringRule, error)
	AdvanceRule(ctx context.Context, id string, nextFireAt time.Time) error
	SetRuleEnabled(ctx context.Context, id string, enabled bool, nextFireAt time.Time) error
}

// PreferenceRepository persists per-recipient channel preferences.
type PreferenceRepository interface {
	Get(ctx context.Context, recipientID string) (*domain.ChannelPreference, error)
	Upsert(ctx context.Context, p *domain.ChannelPreference) error
}

// ThrottleRepository owns the fixed-window counters. Admit is an atomic
// read-modify-write: it resets an expired window, then either increments
// under the limit (allowed) or leaves the counter untouched and reports
// the window boundary as the earliest retry time.
type ThrottleRepository interface {
	Admit(ctx context.Context, recipientID string, ch domain.Channel, now time.Time, limit int, window time.Duration) (allowed bool, retryAt time.Time, err error)
}

// AttemptRepository is the append-only delivery log. Only the tracker
// writes to it.
type AttemptRepository interface {
	Record(ctx context.Context, a *domain.DeliveryAttempt) error
	ListByMessage(ctx context.Context, messageID string) ([]*domain.DeliveryAttempt, error)
	FindByProviderMsgID(ctx context.Context, providerMsgID string) (*domain.DeliveryAttempt, error)
	UpdateOutcome(ctx context.Context, attemptID string, outcome domain.Outcome) error
	Stats(ctx context.Context, recipientID string, since time.Time) (*domain.DeliveryStats, error)
}
