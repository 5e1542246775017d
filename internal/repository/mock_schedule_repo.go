package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// MockScheduleRepository is a hand-written, in-memory implementation of
// ScheduleRepository used in unit tests. No mock-generation library needed.
type MockScheduleRepository struct {
	mu       sync.RWMutex
	messages map[string]*domain.ScheduledMessage
	rules    map[string]*domain.RecurringRule

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr error
	GetErr    error
}

func NewMockScheduleRepository() *MockScheduleRepository {
	return &MockScheduleRepository{
		messages: make(map[string]*domain.ScheduledMessage),
		rules:    make(map[string]*domain.RecurringRule),
	}
}

func (m *MockScheduleRepository) CreateMessage(_ context.Context, msg *domain.ScheduledMessage) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := cloneMessage(msg)
	m.messages[msg.ID] = clone
	return nil
}

func (m *MockScheduleRepository) CreateFromRule(_ context.Context, msg *domain.ScheduledMessage) (bool, error) {
	if m.CreateErr != nil {
		return false, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.IdempotencyKey != nil {
		for _, existing := range m.messages {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *msg.IdempotencyKey {
				return false, nil
			}
		}
	}
	m.messages[msg.ID] = cloneMessage(msg)
	return true, nil
}

func (m *MockScheduleRepository) GetMessage(_ context.Context, id string) (*domain.ScheduledMessage, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneMessage(msg), nil
}

func (m *MockScheduleRepository) DueMessages(_ context.Context, now time.Time, limit int) ([]*domain.ScheduledMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*domain.ScheduledMessage
	for _, msg := range m.messages {
		if msg.Status == domain.StatusPending && !msg.ScheduleAt.After(now) {
			due = append(due, cloneMessage(msg))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduleAt.Before(due[j].ScheduleAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockScheduleRepository) MarkStatus(_ context.Context, id string, status domain.MessageStatus, lastError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	// Terminal statuses are never overwritten, matching the pg guard.
	if msg.Status.IsTerminal() {
		return nil
	}
	msg.Status = status
	if lastError != nil {
		msg.LastError = lastError
	}
	msg.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockScheduleRepository) SetChannels(_ context.Context, id string, channels []domain.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	msg.Channels = append([]domain.Channel(nil), channels...)
	msg.ChannelIndex = 0
	return nil
}

func (m *MockScheduleRepository) Reschedule(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	if msg.Status.IsTerminal() {
		return nil
	}
	msg.ScheduleAt = at
	msg.Status = domain.StatusPending
	return nil
}

func (m *MockScheduleRepository) ScheduleRetry(_ context.Context, id string, attempts, channelIndex int, at time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	if msg.Status.IsTerminal() {
		return nil
	}
	msg.ScheduleAt = at
	msg.Status = domain.StatusPending
	msg.Attempts = attempts
	msg.ChannelIndex = channelIndex
	msg.LastError = &lastError
	return nil
}

func (m *MockScheduleRepository) ReleaseStale(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	released := 0
	for _, msg := range m.messages {
		if msg.Status == domain.StatusDispatching && msg.UpdatedAt.Before(cutoff) {
			msg.Status = domain.StatusPending
			msg.UpdatedAt = time.Now().UTC()
			released++
		}
	}
	return released, nil
}

func (m *MockScheduleRepository) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	if msg.Status.IsTerminal() {
		return nil
	}
	msg.Status = domain.StatusCancelled
	return nil
}

func (m *MockScheduleRepository) CreateRule(_ context.Context, r *domain.RecurringRule) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *r
	m.rules[r.ID] = &clone
	return nil
}

func (m *MockScheduleRepository) GetRule(_ context.Context, id string) (*domain.RecurringRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (m *MockScheduleRepository) DueRules(_ context.Context, now time.Time, limit int) ([]*domain.RecurringRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*domain.RecurringRule
	for _, r := range m.rules {
		if r.Enabled && !r.NextFireAt.After(now) {
			clone := *r
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextFireAt.Before(due[j].NextFireAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockScheduleRepository) AdvanceRule(_ context.Context, id string, nextFireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.NextFireAt = nextFireAt
	return nil
}

func (m *MockScheduleRepository) SetRuleEnabled(_ context.Context, id string, enabled bool, nextFireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Enabled = enabled
	r.NextFireAt = nextFireAt
	return nil
}

// MessageCount reports how many messages are stored, for materialization tests.
func (m *MockScheduleRepository) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Messages returns a snapshot of all stored messages.
func (m *MockScheduleRepository) Messages() []*domain.ScheduledMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.ScheduledMessage, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, cloneMessage(msg))
	}
	return out
}

func cloneMessage(msg *domain.ScheduledMessage) *domain.ScheduledMessage {
	clone := *msg
	clone.Channels = append([]domain.Channel(nil), msg.Channels...)
	return &clone
}

var _ ScheduleRepository = (*MockScheduleRepository)(nil)
