// Package tracker owns the delivery attempt log. Workers record attempts
// synchronously; provider callbacks arrive as events on an internal queue
// so webhook HTTP handling never waits on tracking-state updates.
package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/repository"
)

// Event is an inbound provider callback, queued for asynchronous folding
// into the attempt log.
type Event struct {
	ProviderMsgID string
	Outcome       domain.Outcome
	ErrorCode     string
}

// Tracker is the only writer of delivery attempts.
type Tracker struct {
	attempts repository.AttemptRepository
	events   chan Event
	logger   *zap.Logger

	// OnEvent is an optional metrics hook invoked for every applied
	// callback event (nil = no-op).
	OnEvent func(outcome domain.Outcome)
}

func New(attempts repository.AttemptRepository, buffer int, logger *zap.Logger) *Tracker {
	return &Tracker{
		attempts: attempts,
		events:   make(chan Event, buffer),
		logger:   logger,
		OnEvent:  func(domain.Outcome) {},
	}
}

// Record appends one attempt to the log, filling in id and timestamp if
// the caller left them zero.
func (t *Tracker) Record(ctx context.Context, a *domain.DeliveryAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return t.attempts.Record(ctx, a)
}

// Submit queues a provider callback event. It is non-blocking: when the
// buffer is full the event is rejected so the webhook handler can answer
// 503 and let the provider redeliver.
func (t *Tracker) Submit(ev Event) error {
	select {
	case t.events <- ev:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Run consumes callback events until ctx is cancelled, then drains
// whatever is already buffered.
func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info("delivery tracker started")
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-t.events:
					t.apply(context.Background(), ev)
				default:
					t.logger.Info("delivery tracker stopping")
					return
				}
			}
		case ev := <-t.events:
			t.apply(ctx, ev)
		}
	}
}

// apply folds one callback event into the attempt log.
//
// Folding rules: opened only refines sent; clicked refines sent or opened;
// failed downgrades a sent attempt (async bounce); nothing ever resurrects
// a failed attempt, and a repeat of the current outcome is a no-op.
func (t *Tracker) apply(ctx context.Context, ev Event) {
	log := t.logger.With(
		zap.String("provider_msg_id", ev.ProviderMsgID),
		zap.String("event", string(ev.Outcome)),
	)

	attempt, err := t.attempts.FindByProviderMsgID(ctx, ev.ProviderMsgID)
	if err != nil {
		log.Debug("callback for unknown provider message id", zap.Error(err))
		return
	}

	if !refines(attempt.Outcome, ev.Outcome) {
		log.Debug("callback ignored by folding rules",
			zap.String("current_outcome", string(attempt.Outcome)))
		return
	}

	if err := t.attempts.UpdateOutcome(ctx, attempt.ID, ev.Outcome); err != nil {
		log.Error("failed to apply callback event", zap.Error(err))
		return
	}
	t.OnEvent(ev.Outcome)
}

// refines reports whether next is a legal transition from current.
func refines(current, next domain.Outcome) bool {
	switch next {
	case domain.OutcomeOpened:
		return current == domain.OutcomeSent
	case domain.OutcomeClicked:
		return current == domain.OutcomeSent || current == domain.OutcomeOpened
	case domain.OutcomeFailed:
		return current == domain.OutcomeSent
	default:
		return false
	}
}

// MarkOpened upgrades the most recent sent attempt of the message.
func (t *Tracker) MarkOpened(ctx context.Context, messageID string) error {
	return t.refineLatest(ctx, messageID, domain.OutcomeOpened)
}

// MarkClicked upgrades the most recent sent or opened attempt of the message.
func (t *Tracker) MarkClicked(ctx context.Context, messageID string) error {
	return t.refineLatest(ctx, messageID, domain.OutcomeClicked)
}

func (t *Tracker) refineLatest(ctx context.Context, messageID string, outcome domain.Outcome) error {
	attempts, err := t.attempts.ListByMessage(ctx, messageID)
	if err != nil {
		return err
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		if refines(attempts[i].Outcome, outcome) {
			if err := t.attempts.UpdateOutcome(ctx, attempts[i].ID, outcome); err != nil {
				return err
			}
			t.OnEvent(outcome)
			return nil
		}
	}
	return domain.ErrNotFound
}

// History returns the full attempt log for one message, oldest first.
func (t *Tracker) History(ctx context.Context, messageID string) ([]*domain.DeliveryAttempt, error) {
	return t.attempts.ListByMessage(ctx, messageID)
}

// StatsFor aggregates delivery statistics for a recipient over the
// trailing window.
func (t *Tracker) StatsFor(ctx context.Context, recipientID string, window time.Duration) (*domain.DeliveryStats, error) {
	return t.attempts.Stats(ctx, recipientID, time.Now().UTC().Add(-window))
}
