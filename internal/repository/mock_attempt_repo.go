package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// MockAttemptRepository is an in-memory AttemptRepository for tests.
// Stats needs message status, so tests that exercise it pass the companion
// schedule mock via WithMessages.
type MockAttemptRepository struct {
	mu       sync.RWMutex
	attempts []*domain.DeliveryAttempt
	schedule *MockScheduleRepository
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{}
}

// WithMessages links the schedule mock used for Stats aggregation.
func (m *MockAttemptRepository) WithMessages(schedule *MockScheduleRepository) *MockAttemptRepository {
	m.schedule = schedule
	return m
}

func (m *MockAttemptRepository) Record(_ context.Context, a *domain.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.attempts = append(m.attempts, &clone)
	return nil
}

func (m *MockAttemptRepository) ListByMessage(_ context.Context, messageID string) ([]*domain.DeliveryAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.DeliveryAttempt
	for _, a := range m.attempts {
		if a.MessageID == messageID {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockAttemptRepository) FindByProviderMsgID(_ context.Context, providerMsgID string) (*domain.DeliveryAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.attempts) - 1; i >= 0; i-- {
		a := m.attempts[i]
		if a.ProviderMsgID != nil && *a.ProviderMsgID == providerMsgID {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAttemptRepository) UpdateOutcome(_ context.Context, attemptID string, outcome domain.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == attemptID {
			a.Outcome = outcome
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockAttemptRepository) Stats(_ context.Context, recipientID string, since time.Time) (*domain.DeliveryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &domain.DeliveryStats{ByChannel: map[domain.Channel]domain.ChannelStats{}}
	byMessage := map[string]bool{}

	if m.schedule != nil {
		for _, msg := range m.schedule.Messages() {
			if msg.RecipientID != recipientID || msg.CreatedAt.Before(since) {
				continue
			}
			byMessage[msg.ID] = true
			stats.Total++
			switch msg.Status {
			case domain.StatusSent:
				stats.Successful++
			case domain.StatusFailed:
				stats.Failed++
			}
		}
	}

	totalAttempts := 0
	for _, a := range m.attempts {
		if !byMessage[a.MessageID] || a.CreatedAt.Before(since) {
			continue
		}
		totalAttempts++
		cs := stats.ByChannel[a.Channel]
		if a.Outcome == domain.OutcomeFailed {
			cs.Failed++
		} else {
			cs.Sent++
		}
		stats.ByChannel[a.Channel] = cs
	}

	if stats.Total > 0 {
		stats.AvgAttempts = float64(totalAttempts) / float64(stats.Total)
	}
	return stats, nil
}

// All returns every recorded attempt, oldest first.
func (m *MockAttemptRepository) All() []*domain.DeliveryAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.DeliveryAttempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		clone := *a
		out = append(out, &clone)
	}
	return out
}

var _ AttemptRepository = (*MockAttemptRepository)(nil)
