package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/repository"
	"github.com/hearthtask/notify-engine/internal/service"
	"github.com/hearthtask/notify-engine/internal/tracker"
)

func newService(t *testing.T) (*service.EngineService, *repository.MockScheduleRepository) {
	t.Helper()
	repo := repository.NewMockScheduleRepository()
	prefs := repository.NewMockPreferenceRepository()
	attempts := repository.NewMockAttemptRepository().WithMessages(repo)
	trk := tracker.New(attempts, 16, zap.NewNop())
	return service.NewEngineService(repo, prefs, trk, 5*time.Minute, 3, zap.NewNop()), repo
}

func validEnqueue() domain.EnqueueRequest {
	return domain.EnqueueRequest{
		RecipientID: "alice",
		Type:        domain.TypeChoreReminder,
		TemplateID:  "chore_reminder",
		Data:        json.RawMessage(`{"member_name":"Emma","chore_name":"Dishes","points":5}`),
	}
}

func TestEnqueue_DefaultsToNow(t *testing.T) {
	svc, _ := newService(t)

	before := time.Now().UTC()
	m, err := svc.Enqueue(context.Background(), validEnqueue())
	if err != nil {
		t.Fatal(err)
	}

	if m.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", m.Status)
	}
	if m.ScheduleAt.Before(before) {
		t.Fatalf("default schedule_at %v must not predate the call", m.ScheduleAt)
	}
	if m.MaxAttempts != 3 {
		t.Fatalf("expected max attempts 3, got %d", m.MaxAttempts)
	}
}

func TestEnqueue_Validation(t *testing.T) {
	svc, _ := newService(t)
	past := time.Now().UTC().Add(-time.Hour)

	tests := []struct {
		name    string
		mutate  func(*domain.EnqueueRequest)
		wantErr error
	}{
		{"missing recipient", func(r *domain.EnqueueRequest) { r.RecipientID = "" }, domain.ErrInvalidRecipient},
		{"bad type", func(r *domain.EnqueueRequest) { r.Type = "spam" }, domain.ErrInvalidType},
		{"missing template", func(r *domain.EnqueueRequest) { r.TemplateID = "" }, domain.ErrInvalidTemplate},
		{"unknown template", func(r *domain.EnqueueRequest) { r.TemplateID = "nope" }, domain.ErrInvalidTemplate},
		{"schedule beyond grace", func(r *domain.EnqueueRequest) { r.ScheduleAt = &past }, domain.ErrScheduleInPast},
		{"bad payload", func(r *domain.EnqueueRequest) { r.Data = json.RawMessage(`{"oops":1}`) }, domain.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validEnqueue()
			tt.mutate(&req)
			_, err := svc.Enqueue(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestEnqueue_WithinGraceWindow verifies a slightly-past schedule_at is
// accepted: it becomes due immediately.
func TestEnqueue_WithinGraceWindow(t *testing.T) {
	svc, _ := newService(t)

	at := time.Now().UTC().Add(-time.Minute)
	req := validEnqueue()
	req.ScheduleAt = &at

	if _, err := svc.Enqueue(context.Background(), req); err != nil {
		t.Fatalf("schedule_at within grace must be accepted, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	m, err := svc.Enqueue(ctx, validEnqueue())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Cancel(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetMessage(ctx, m.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	// A second cancel hits a terminal status.
	if err := svc.Cancel(ctx, m.ID); !errors.Is(err, domain.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}

	if err := svc.Cancel(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// A status write landing after the cancel is dropped, not applied.
	if err := repo.MarkStatus(ctx, m.ID, domain.StatusSent, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.GetMessage(ctx, m.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("terminal status must not be overwritten, got %s", got.Status)
	}
}

func TestCreateRule_AlignsFirstFire(t *testing.T) {
	svc, _ := newService(t)

	start := time.Now().UTC().Add(24 * time.Hour)
	rule, err := svc.CreateRule(context.Background(), domain.CreateRuleRequest{
		RecipientID: "alice",
		Type:        domain.TypeWeeklyDigest,
		TemplateID:  "weekly_digest",
		Data:        json.RawMessage(`{"member_name":"Emma"}`),
		Cadence:     domain.CadenceWeekly,
		Interval:    1,
		DaysOfWeek:  []int{int(start.Weekday())},
		StartAt:     &start,
	})
	if err != nil {
		t.Fatal(err)
	}

	if !rule.Enabled {
		t.Fatal("new rules start enabled")
	}
	if !rule.NextFireAt.Equal(start) {
		t.Fatalf("expected first fire at %v, got %v", start, rule.NextFireAt)
	}
}

// TestCreateRule_PastStartNeverFiresInThePast verifies the enabled-rule
// invariant: next_fire_at is always at or after creation time.
func TestCreateRule_PastStartNeverFiresInThePast(t *testing.T) {
	svc, _ := newService(t)

	start := time.Now().UTC().Add(-30 * 24 * time.Hour)
	rule, err := svc.CreateRule(context.Background(), domain.CreateRuleRequest{
		RecipientID: "alice",
		Type:        domain.TypeChoreReminder,
		TemplateID:  "chore_reminder",
		Data:        json.RawMessage(`{}`),
		Cadence:     domain.CadenceDaily,
		Interval:    1,
		StartAt:     &start,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rule.NextFireAt.Before(time.Now().UTC().Add(-time.Second)) {
		t.Fatalf("next fire %v must not be in the past", rule.NextFireAt)
	}
}

func TestCreateRule_Validation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name    string
		req     domain.CreateRuleRequest
		wantErr error
	}{
		{
			"weekly without days",
			domain.CreateRuleRequest{
				RecipientID: "alice", Type: domain.TypeChoreReminder,
				TemplateID: "chore_reminder", Data: json.RawMessage(`{}`),
				Cadence: domain.CadenceWeekly, Interval: 1,
			},
			domain.ErrInvalidDaysOfWeek,
		},
		{
			"zero interval",
			domain.CreateRuleRequest{
				RecipientID: "alice", Type: domain.TypeChoreReminder,
				TemplateID: "chore_reminder", Data: json.RawMessage(`{}`),
				Cadence: domain.CadenceDaily, Interval: 0,
			},
			domain.ErrInvalidInterval,
		},
		{
			"day of month out of range",
			domain.CreateRuleRequest{
				RecipientID: "alice", Type: domain.TypeChoreReminder,
				TemplateID: "chore_reminder", Data: json.RawMessage(`{}`),
				Cadence: domain.CadenceMonthly, Interval: 1, DayOfMonth: 32,
			},
			domain.ErrInvalidDayOfMonth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRule(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestSetRuleEnabled_ReEnableSkipsGap verifies a rule re-enabled after a
// pause picks up at the next future occurrence instead of back-filling.
func TestSetRuleEnabled_ReEnableSkipsGap(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, domain.CreateRuleRequest{
		RecipientID: "alice",
		Type:        domain.TypeChoreReminder,
		TemplateID:  "chore_reminder",
		Data:        json.RawMessage(`{}`),
		Cadence:     domain.CadenceDaily,
		Interval:    1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SetRuleEnabled(ctx, rule.ID, false); err != nil {
		t.Fatal(err)
	}

	// Simulate a week of downtime by rewinding the pointer.
	stale := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if err := repo.SetRuleEnabled(ctx, rule.ID, false, stale); err != nil {
		t.Fatal(err)
	}

	updated, err := svc.SetRuleEnabled(ctx, rule.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Enabled {
		t.Fatal("rule must be enabled")
	}
	if !updated.NextFireAt.After(time.Now().UTC()) {
		t.Fatalf("re-enabled rule must fire in the future, got %v", updated.NextFireAt)
	}
}

func TestUpsertPreference_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		pref    *domain.ChannelPreference
		wantErr error
	}{
		{
			"no channels",
			&domain.ChannelPreference{RecipientID: "alice"},
			domain.ErrNoChannels,
		},
		{
			"duplicate channel",
			&domain.ChannelPreference{
				RecipientID: "alice",
				Channels:    []domain.Channel{domain.ChannelSMS, domain.ChannelSMS},
				Addresses:   map[domain.Channel]string{domain.ChannelSMS: "+15550001111"},
			},
			domain.ErrDuplicateChannel,
		},
		{
			"missing address",
			&domain.ChannelPreference{
				RecipientID: "alice",
				Channels:    []domain.Channel{domain.ChannelEmail},
			},
			domain.ErrMissingAddress,
		},
		{
			"bad quiet hours timezone",
			&domain.ChannelPreference{
				RecipientID: "alice",
				Channels:    []domain.Channel{domain.ChannelEmail},
				Addresses:   map[domain.Channel]string{domain.ChannelEmail: "a@example.com"},
				Quiet:       &domain.QuietHours{Start: "22:00", End: "07:00", Timezone: "Mars/Olympus"},
			},
			domain.ErrInvalidQuietHours,
		},
		{
			"bad quiet hours clock",
			&domain.ChannelPreference{
				RecipientID: "alice",
				Channels:    []domain.Channel{domain.ChannelEmail},
				Addresses:   map[domain.Channel]string{domain.ChannelEmail: "a@example.com"},
				Quiet:       &domain.QuietHours{Start: "25:00", End: "07:00", Timezone: "UTC"},
			},
			domain.ErrInvalidQuietHours,
		},
		{
			"zero-length quiet hours window",
			&domain.ChannelPreference{
				RecipientID: "alice",
				Channels:    []domain.Channel{domain.ChannelEmail},
				Addresses:   map[domain.Channel]string{domain.ChannelEmail: "a@example.com"},
				Quiet:       &domain.QuietHours{Start: "08:00", End: "08:00", Timezone: "UTC"},
			},
			domain.ErrInvalidQuietHours,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.UpsertPreference(ctx, tt.pref); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	valid := &domain.ChannelPreference{
		RecipientID: "alice",
		Channels:    []domain.Channel{domain.ChannelEmail},
		Addresses:   map[domain.Channel]string{domain.ChannelEmail: "a@example.com"},
	}
	if err := svc.UpsertPreference(ctx, valid); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetPreference(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt must be stamped on upsert")
	}
}
