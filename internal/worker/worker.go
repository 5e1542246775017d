package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/provider"
	"github.com/hearthtask/notify-engine/internal/queue"
	"github.com/hearthtask/notify-engine/internal/ratelimiter"
	"github.com/hearthtask/notify-engine/internal/repository"
	"github.com/hearthtask/notify-engine/internal/retry"
	"github.com/hearthtask/notify-engine/internal/template"
	"github.com/hearthtask/notify-engine/internal/tracker"
)

// requeueDelay is how far a message is pushed back when a store error
// interrupts processing before any provider call was made.
const requeueDelay = 30 * time.Second

// Worker is a single goroutine that continuously pulls delivery jobs from
// the priority queue, walks the message's channel fallback list, and
// interprets provider results: success stops, permanent failures fall
// back to the next channel immediately, transient failures go back to the
// schedule store with backoff.
type Worker struct {
	id        int
	q         *queue.PriorityQueue
	repo      repository.ScheduleRepository
	prefs     repository.PreferenceRepository
	providers provider.Registry
	limiter   *ratelimiter.Limiter
	plimiter  *ratelimiter.ProviderLimiters
	policy    *retry.Policy
	trk       *tracker.Tracker
	locks     *keyLocks
	logger    *zap.Logger

	// Hooks for metrics — injected by the pool so the worker stays metrics-agnostic.
	onSent   func(channel domain.Channel, latency time.Duration)
	onFailed func(channel domain.Channel)
}

func newWorker(
	id int,
	q *queue.PriorityQueue,
	repo repository.ScheduleRepository,
	prefs repository.PreferenceRepository,
	providers provider.Registry,
	limiter *ratelimiter.Limiter,
	plimiter *ratelimiter.ProviderLimiters,
	policy *retry.Policy,
	trk *tracker.Tracker,
	locks *keyLocks,
	logger *zap.Logger,
	onSent func(domain.Channel, time.Duration),
	onFailed func(domain.Channel),
) *Worker {
	if onSent == nil {
		onSent = func(domain.Channel, time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func(domain.Channel) {}
	}
	return &Worker{
		id: id, q: q, repo: repo, prefs: prefs, providers: providers,
		limiter: limiter, plimiter: plimiter, policy: policy, trk: trk,
		locks: locks, logger: logger, onSent: onSent, onFailed: onFailed,
	}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("delivery worker started", zap.Int("id", w.id))
	for {
		job, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("delivery worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job queue.DeliveryJob) {
	log := w.logger.With(zap.String("message_id", job.MessageID))

	m, err := w.repo.GetMessage(ctx, job.MessageID)
	if err != nil {
		log.Error("failed to fetch message", zap.Error(err))
		return
	}

	// A cancellation between enqueue and processing time is valid; skip
	// silently (best-effort flag check).
	if m.Status != domain.StatusDispatching {
		log.Debug("message no longer dispatching", zap.String("status", string(m.Status)))
		return
	}

	content, err := template.Render(m.TemplateID, m.Data)
	if err != nil {
		// Enqueue validation makes this unreachable for API-created
		// messages, but rule payloads can drift after a template change.
		reason := err.Error()
		log.Warn("render failed", zap.Error(err))
		if err := w.repo.MarkStatus(ctx, m.ID, domain.StatusFailed, &reason); err != nil {
			log.Error("failed to mark render failure", zap.Error(err))
		}
		return
	}

	pref, err := w.prefs.Get(ctx, m.RecipientID)
	if err != nil {
		// Store hiccup, not a delivery verdict: hand the message back to
		// the dispatcher instead of stranding it in dispatching.
		log.Error("failed to load preference", zap.Error(err))
		w.requeue(ctx, m, log)
		return
	}

	// Walk the fallback snapshot from the current cursor. Permanent
	// failures advance the cursor within this same dispatch cycle;
	// transient failures leave the loop through the retry path. The
	// dispatcher admitted the first channel; each fallback channel must
	// pass its own throttle window before it is tried.
	admitted := true
	for {
		ch, ok := m.CurrentChannel()
		if !ok {
			w.exhaust(ctx, m, log)
			return
		}

		if !admitted {
			decision, err := w.limiter.Admit(ctx, m.RecipientID, ch, time.Now().UTC())
			if err != nil {
				log.Error("throttle admit error on fallback", zap.Error(err))
				w.requeue(ctx, m, log)
				return
			}
			if !decision.Allowed {
				reason := fmt.Sprintf("throttled on fallback channel %s", ch)
				if err := w.repo.ScheduleRetry(ctx, m.ID, 0, m.ChannelIndex, decision.RetryAt, reason); err != nil {
					log.Error("failed to defer throttled fallback", zap.Error(err))
					return
				}
				log.Info("fallback channel throttled, deferred",
					zap.String("channel", string(ch)),
					zap.Time("retry_at", decision.RetryAt))
				return
			}
		}

		outcome := w.attemptChannel(ctx, m, ch, pref, content, log)
		switch outcome {
		case attemptSent, attemptRetryScheduled, attemptAborted:
			return
		case attemptNextChannel:
			m.ChannelIndex++
			m.Attempts = 0
			admitted = false
		}
	}
}

// requeue returns the message to pending with a short delay so the next
// tick retries it. Used for store errors where nothing about the message
// itself has been decided.
func (w *Worker) requeue(ctx context.Context, m *domain.ScheduledMessage, log *zap.Logger) {
	at := time.Now().UTC().Add(requeueDelay)
	if err := w.repo.Reschedule(ctx, m.ID, at); err != nil {
		log.Error("failed to requeue message", zap.Error(err))
	}
}

type attemptOutcome int

const (
	attemptSent attemptOutcome = iota
	attemptNextChannel
	attemptRetryScheduled
	attemptAborted
)

// attemptChannel makes exactly one provider call (or none, for an invalid
// address) on the given channel and records the result.
func (w *Worker) attemptChannel(
	ctx context.Context,
	m *domain.ScheduledMessage,
	ch domain.Channel,
	pref *domain.ChannelPreference,
	content template.Content,
	log *zap.Logger,
) attemptOutcome {
	log = log.With(zap.String("channel", string(ch)))

	prov, ok := w.providers[ch]
	if !ok {
		w.recordFailure(ctx, m, ch, domain.ErrorPermanent, "no provider configured", 0, log)
		return attemptNextChannel
	}

	addr := pref.Addresses[ch]
	if addr == "" || !prov.ValidateAddress(addr) {
		w.recordFailure(ctx, m, ch, domain.ErrorPermanent, "invalid recipient address", 0, log)
		return attemptNextChannel
	}

	// One in-flight attempt per (recipient, channel) at a time.
	unlock := w.locks.Lock(m.RecipientID + ":" + string(ch))
	defer unlock()

	if err := w.plimiter.Wait(ctx, ch); err != nil {
		// ctx cancelled while waiting — worker is shutting down. The
		// message stays in dispatching and is recovered operationally.
		return attemptAborted
	}

	start := time.Now()
	resp, err := prov.Send(ctx, addr, content)
	latency := time.Since(start)

	if err == nil {
		attempt := &domain.DeliveryAttempt{
			MessageID:     m.ID,
			Channel:       ch,
			Outcome:       domain.OutcomeSent,
			ProviderMsgID: &resp.MessageID,
			LatencyMs:     latency.Milliseconds(),
		}
		if err := w.trk.Record(ctx, attempt); err != nil {
			log.Error("failed to record attempt", zap.Error(err))
		}
		if err := w.repo.MarkStatus(ctx, m.ID, domain.StatusSent, nil); err != nil {
			log.Error("failed to mark sent", zap.Error(err))
		}
		w.onSent(ch, latency)
		log.Info("message sent",
			zap.String("provider_msg_id", resp.MessageID),
			zap.Duration("latency", latency))
		return attemptSent
	}

	class := provider.Classify(err)
	w.recordFailure(ctx, m, ch, class, err.Error(), latency.Milliseconds(), log)

	if class == domain.ErrorPermanent {
		log.Warn("permanent provider failure, falling back", zap.Error(err))
		return attemptNextChannel
	}

	// Transient: retry the same channel with backoff until the attempt
	// budget is spent, then fall back.
	calls := m.Attempts + 1
	if calls >= m.MaxAttempts {
		log.Warn("attempt budget exhausted on channel", zap.Int("attempts", calls))
		return attemptNextChannel
	}

	delay := w.policy.Next(calls - 1)
	nextAt := time.Now().UTC().Add(delay)
	if err := w.repo.ScheduleRetry(ctx, m.ID, calls, m.ChannelIndex, nextAt, err.Error()); err != nil {
		log.Error("failed to schedule retry", zap.Error(err))
		return attemptAborted
	}
	log.Info("transient failure, retry scheduled",
		zap.Int("attempt", calls),
		zap.Duration("delay", delay))
	return attemptRetryScheduled
}

func (w *Worker) recordFailure(ctx context.Context, m *domain.ScheduledMessage, ch domain.Channel, class domain.ErrorClass, msg string, latencyMs int64, log *zap.Logger) {
	attempt := &domain.DeliveryAttempt{
		MessageID:    m.ID,
		Channel:      ch,
		Outcome:      domain.OutcomeFailed,
		ErrorClass:   &class,
		ErrorMessage: &msg,
		LatencyMs:    latencyMs,
	}
	if err := w.trk.Record(ctx, attempt); err != nil {
		log.Error("failed to record attempt", zap.Error(err))
	}
	w.onFailed(ch)
}

// exhaust marks the message terminally failed once every snapshot channel
// has been spent.
func (w *Worker) exhaust(ctx context.Context, m *domain.ScheduledMessage, log *zap.Logger) {
	reason := domain.ErrExhausted.Error()
	if err := w.repo.MarkStatus(ctx, m.ID, domain.StatusFailed, &reason); err != nil {
		log.Error("failed to mark exhausted", zap.Error(err))
		return
	}
	log.Warn("all channels exhausted, message failed")
}
