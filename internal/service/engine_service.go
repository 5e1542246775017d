package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/recurrence"
	"github.com/hearthtask/notify-engine/internal/repository"
	"github.com/hearthtask/notify-engine/internal/template"
	"github.com/hearthtask/notify-engine/internal/tracker"
)

// EngineService is the synchronous API surface of the engine: it
// validates and persists send intents, rules, and preferences. Delivery
// itself is asynchronous — enqueue returns as soon as the intent is
// durable, and callers observe progress through the status queries.
type EngineService struct {
	schedule    repository.ScheduleRepository
	prefs       repository.PreferenceRepository
	trk         *tracker.Tracker
	grace       time.Duration
	maxAttempts int
	logger      *zap.Logger
}

func NewEngineService(
	schedule repository.ScheduleRepository,
	prefs repository.PreferenceRepository,
	trk *tracker.Tracker,
	grace time.Duration,
	maxAttempts int,
	logger *zap.Logger,
) *EngineService {
	return &EngineService{
		schedule:    schedule,
		prefs:       prefs,
		trk:         trk,
		grace:       grace,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Enqueue validates and persists a one-off message. An omitted ScheduleAt
// means "as soon as possible": the message becomes due immediately and
// the next dispatcher tick picks it up.
func (s *EngineService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.ScheduledMessage, error) {
	now := time.Now().UTC()
	if err := req.Validate(now, s.grace); err != nil {
		return nil, err
	}
	// Reject malformed payloads synchronously, not inside a worker.
	if err := template.Validate(req.TemplateID, req.Data); err != nil {
		return nil, err
	}

	scheduleAt := now
	if req.ScheduleAt != nil {
		scheduleAt = req.ScheduleAt.UTC()
	}

	m := &domain.ScheduledMessage{
		ID:          uuid.New().String(),
		RecipientID: req.RecipientID,
		Type:        req.Type,
		TemplateID:  req.TemplateID,
		Data:        req.Data,
		ScheduleAt:  scheduleAt,
		Status:      domain.StatusPending,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.schedule.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	return m, nil
}

// GetMessage returns the message and its full attempt history.
func (s *EngineService) GetMessage(ctx context.Context, id string) (*domain.ScheduledMessage, []*domain.DeliveryAttempt, error) {
	m, err := s.schedule.GetMessage(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	attempts, err := s.trk.History(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return m, attempts, nil
}

// Cancel removes a message from future dispatch. Cancelling a message
// that already reached a terminal status is refused; cancellation after a
// job was handed to a worker is best-effort (the worker checks the flag
// before sending).
func (s *EngineService) Cancel(ctx context.Context, id string) error {
	m, err := s.schedule.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if m.Status.IsTerminal() {
		return domain.ErrAlreadyTerminal
	}
	return s.schedule.Cancel(ctx, id)
}

// CreateRule validates and persists a recurring rule. NextFireAt is
// aligned to the first valid occurrence at or after StartAt (or now), so
// the enabled-rule invariant nextFireAt >= now holds from the start.
func (s *EngineService) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.RecurringRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := template.Validate(req.TemplateID, req.Data); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	start := now
	if req.StartAt != nil {
		start = req.StartAt.UTC()
	}

	rule := &domain.RecurringRule{
		ID:          uuid.New().String(),
		RecipientID: req.RecipientID,
		Type:        req.Type,
		TemplateID:  req.TemplateID,
		Data:        req.Data,
		Cadence:     req.Cadence,
		Interval:    req.Interval,
		DaysOfWeek:  req.Weekdays(),
		DayOfMonth:  req.DayOfMonth,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rule.NextFireAt = recurrence.Align(rule, start)
	if rule.NextFireAt.Before(now) {
		rule.NextFireAt = recurrence.NextAfter(rule, now)
	}

	if err := s.schedule.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("persist rule: %w", err)
	}
	return rule, nil
}

func (s *EngineService) GetRule(ctx context.Context, id string) (*domain.RecurringRule, error) {
	return s.schedule.GetRule(ctx, id)
}

// SetRuleEnabled pauses or resumes a rule. Re-enabling advances
// NextFireAt past now, so the pause gap is never back-filled; disabling
// stops future materialization but leaves already-created messages alone.
func (s *EngineService) SetRuleEnabled(ctx context.Context, id string, enabled bool) (*domain.RecurringRule, error) {
	rule, err := s.schedule.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	next := rule.NextFireAt
	if enabled {
		now := time.Now().UTC()
		if !next.After(now) {
			next = recurrence.NextAfter(rule, now)
		}
	}
	if err := s.schedule.SetRuleEnabled(ctx, id, enabled, next); err != nil {
		return nil, err
	}
	rule.Enabled = enabled
	rule.NextFireAt = next
	return rule, nil
}

// UpsertPreference stores the recipient's channel preference.
func (s *EngineService) UpsertPreference(ctx context.Context, p *domain.ChannelPreference) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	return s.prefs.Upsert(ctx, p)
}

func (s *EngineService) GetPreference(ctx context.Context, recipientID string) (*domain.ChannelPreference, error) {
	return s.prefs.Get(ctx, recipientID)
}

// Stats aggregates delivery statistics for a recipient over the trailing
// window.
func (s *EngineService) Stats(ctx context.Context, recipientID string, window time.Duration) (*domain.DeliveryStats, error) {
	return s.trk.StatsFor(ctx, recipientID, window)
}
