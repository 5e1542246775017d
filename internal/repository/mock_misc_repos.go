package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// MockPreferenceRepository is an in-memory PreferenceRepository for tests.
type MockPreferenceRepository struct {
	mu    sync.RWMutex
	prefs map[string]*domain.ChannelPreference

	// GetErr, when set, is returned by every Get to simulate a store outage.
	GetErr error
}

func NewMockPreferenceRepository() *MockPreferenceRepository {
	return &MockPreferenceRepository{prefs: make(map[string]*domain.ChannelPreference)}
}

func (m *MockPreferenceRepository) Get(_ context.Context, recipientID string) (*domain.ChannelPreference, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[recipientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MockPreferenceRepository) Upsert(_ context.Context, p *domain.ChannelPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	m.prefs[p.RecipientID] = &clone
	return nil
}

// MockThrottleRepository implements the fixed-window counter in memory,
// mirroring the transactional semantics of the pg implementation.
type MockThrottleRepository struct {
	mu     sync.Mutex
	states map[string]*domain.ThrottleState
}

func NewMockThrottleRepository() *MockThrottleRepository {
	return &MockThrottleRepository{states: make(map[string]*domain.ThrottleState)}
}

func (m *MockThrottleRepository) Admit(_ context.Context, recipientID string, ch domain.Channel, now time.Time, limit int, window time.Duration) (bool, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recipientID + ":" + string(ch)
	st, ok := m.states[key]
	if !ok {
		m.states[key] = &domain.ThrottleState{
			RecipientID: recipientID, Channel: ch, Count: 1, WindowStart: now,
		}
		return true, time.Time{}, nil
	}

	windowEnd := st.WindowStart.Add(window)
	if !now.Before(windowEnd) {
		st.Count = 1
		st.WindowStart = now
		return true, time.Time{}, nil
	}
	if st.Count >= limit {
		return false, windowEnd, nil
	}
	st.Count++
	return true, time.Time{}, nil
}

var (
	_ PreferenceRepository = (*MockPreferenceRepository)(nil)
	_ ThrottleRepository   = (*MockThrottleRepository)(nil)
)
