// Package dispatcher runs the periodic tick that turns recurring rules
// into concrete scheduled messages and hands due messages to the routing
// and admission pipeline.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/channel"
	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/queue"
	"github.com/hearthtask/notify-engine/internal/ratelimiter"
	"github.com/hearthtask/notify-engine/internal/recurrence"
	"github.com/hearthtask/notify-engine/internal/repository"
)

// batchLimit bounds how much due work one tick pulls from the store.
// Anything beyond it is simply picked up by the next tick.
const batchLimit = 500

// staleDispatchAfter is how long a message may sit in dispatching before
// a tick hands it back to pending. A healthy send finishes within the
// provider timeout, so anything this old was stranded by a crashed worker
// or process restart.
const staleDispatchAfter = 10 * time.Minute

// Hooks carries the metric callbacks injected by main.
type Hooks struct {
	OnMaterialized func(count int)
	OnDeferred     func(reason string)
}

// Dispatcher materializes due rule occurrences and dispatches due
// messages. Ticks are serialized by a mutex: if a tick runs longer than
// the interval, the next one waits instead of overlapping.
type Dispatcher struct {
	mu             sync.Mutex
	repo           repository.ScheduleRepository
	router         *channel.Router
	limiter        *ratelimiter.Limiter
	q              *queue.PriorityQueue
	interval       time.Duration
	materializeCap int
	maxAttempts    int
	logger         *zap.Logger
	hooks          Hooks
}

func New(
	repo repository.ScheduleRepository,
	router *channel.Router,
	limiter *ratelimiter.Limiter,
	q *queue.PriorityQueue,
	interval time.Duration,
	materializeCap int,
	maxAttempts int,
	logger *zap.Logger,
	hooks Hooks,
) *Dispatcher {
	if hooks.OnMaterialized == nil {
		hooks.OnMaterialized = func(int) {}
	}
	if hooks.OnDeferred == nil {
		hooks.OnDeferred = func(string) {}
	}
	return &Dispatcher{
		repo:           repo,
		router:         router,
		limiter:        limiter,
		q:              q,
		interval:       interval,
		materializeCap: materializeCap,
		maxAttempts:    maxAttempts,
		logger:         logger,
		hooks:          hooks,
	}
}

// Run ticks every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", zap.Duration("interval", d.interval))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			d.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick runs one materialize-and-dispatch pass. Exported so tests can
// drive the dispatcher with a synthetic clock.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseStale(ctx, now)
	d.materialize(ctx, now)
	d.dispatchDue(ctx, now)
}

// releaseStale recovers messages stranded in dispatching by a crashed
// worker or restart, making them due again for this very tick.
func (d *Dispatcher) releaseStale(ctx context.Context, now time.Time) {
	n, err := d.repo.ReleaseStale(ctx, now.Add(-staleDispatchAfter))
	if err != nil {
		d.logger.Error("release stale dispatching error", zap.Error(err))
		return
	}
	if n > 0 {
		d.logger.Warn("released stale dispatching messages", zap.Int("count", n))
	}
}

// materialize expands every due rule into concrete messages. A failure on
// one rule is logged and skipped; it must not block the rest of the tick.
func (d *Dispatcher) materialize(ctx context.Context, now time.Time) {
	rules, err := d.repo.DueRules(ctx, now, batchLimit)
	if err != nil {
		d.logger.Error("due rules poll error", zap.Error(err))
		return
	}

	total := 0
	for _, rule := range rules {
		occurrences, next := recurrence.Expand(rule, now, d.materializeCap)

		created := 0
		for _, occ := range occurrences {
			ok, err := d.repo.CreateFromRule(ctx, d.materializedMessage(rule, occ))
			if err != nil {
				d.logger.Error("materialize error",
					zap.String("rule_id", rule.ID), zap.Error(err))
				continue
			}
			if ok {
				created++
			}
		}
		total += created

		if err := d.repo.AdvanceRule(ctx, rule.ID, next); err != nil {
			d.logger.Error("advance rule error",
				zap.String("rule_id", rule.ID), zap.Error(err))
		}
	}

	if total > 0 {
		d.hooks.OnMaterialized(total)
		d.logger.Info("materialized rule occurrences", zap.Int("count", total))
	}
}

// materializedMessage builds the concrete message for one rule occurrence.
// The idempotency key ties the message to the (rule, occurrence) pair so a
// tick that overlaps a slow predecessor cannot create a duplicate.
func (d *Dispatcher) materializedMessage(rule *domain.RecurringRule, occ time.Time) *domain.ScheduledMessage {
	key := fmt.Sprintf("%s:%d", rule.ID, occ.Unix())
	now := time.Now().UTC()
	return &domain.ScheduledMessage{
		ID:             uuid.New().String(),
		RecipientID:    rule.RecipientID,
		Type:           rule.Type,
		TemplateID:     rule.TemplateID,
		Data:           rule.Data,
		ScheduleAt:     occ,
		Status:         domain.StatusPending,
		MaxAttempts:    d.maxAttempts,
		RuleID:         &rule.ID,
		IdempotencyKey: &key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// dispatchDue routes and admits every due message, including the ones
// materialized moments ago in the same tick.
func (d *Dispatcher) dispatchDue(ctx context.Context, now time.Time) {
	messages, err := d.repo.DueMessages(ctx, now, batchLimit)
	if err != nil {
		d.logger.Error("due messages poll error", zap.Error(err))
		return
	}

	for _, m := range messages {
		if err := d.dispatchOne(ctx, m, now); err != nil {
			d.logger.Error("dispatch error",
				zap.String("message_id", m.ID), zap.Error(err))
		}
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, m *domain.ScheduledMessage, now time.Time) error {
	decision, err := d.router.Route(ctx, m.RecipientID, m.Type, now)
	if err != nil {
		// No preference on file means the message can never be routed.
		// Any other error is a store hiccup: leave the message pending so
		// the next tick retries routing.
		if errors.Is(err, domain.ErrNotFound) {
			reason := err.Error()
			return d.repo.MarkStatus(ctx, m.ID, domain.StatusFailed, &reason)
		}
		return fmt.Errorf("route: %w", err)
	}

	if decision.DeferUntil != nil {
		d.hooks.OnDeferred("quiet_hours")
		return d.repo.Reschedule(ctx, m.ID, *decision.DeferUntil)
	}

	// The fallback snapshot is taken on first dispatch; retries keep the
	// snapshot so a mid-flight preference change cannot reorder channels
	// under a message.
	if len(m.Channels) == 0 {
		if len(decision.Channels) == 0 {
			// Recipient muted this type everywhere. Opting out is not a
			// delivery failure.
			reason := "all channels disabled for notification type"
			return d.repo.MarkStatus(ctx, m.ID, domain.StatusCancelled, &reason)
		}
		if err := d.repo.SetChannels(ctx, m.ID, decision.Channels); err != nil {
			return fmt.Errorf("persist channel snapshot: %w", err)
		}
		m.Channels = decision.Channels
		m.ChannelIndex = 0
	}

	ch, ok := m.CurrentChannel()
	if !ok {
		reason := domain.ErrExhausted.Error()
		return d.repo.MarkStatus(ctx, m.ID, domain.StatusFailed, &reason)
	}

	admit, err := d.limiter.Admit(ctx, m.RecipientID, ch, now)
	if err != nil {
		// Leave the message pending; the next tick retries admission.
		return fmt.Errorf("throttle admit: %w", err)
	}
	if !admit.Allowed {
		d.hooks.OnDeferred("throttled")
		return d.repo.Reschedule(ctx, m.ID, admit.RetryAt)
	}

	if err := d.repo.MarkStatus(ctx, m.ID, domain.StatusDispatching, nil); err != nil {
		return fmt.Errorf("mark dispatching: %w", err)
	}

	job := queue.DeliveryJob{
		MessageID:   m.ID,
		RecipientID: m.RecipientID,
		Priority:    m.Type.QueuePriority(),
	}
	if err := d.q.Enqueue(job); err != nil {
		// Queue full: put the message back so the next tick retries it.
		if rerr := d.repo.MarkStatus(ctx, m.ID, domain.StatusPending, nil); rerr != nil {
			return rerr
		}
		return err
	}
	return nil
}
