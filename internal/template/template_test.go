package template_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/template"
)

func TestRender_ChoreReminder(t *testing.T) {
	data := json.RawMessage(`{
		"member_name": "Emma",
		"chore_name": "Dishes",
		"due_at": "2026-03-10T18:00:00Z",
		"points": 15
	}`)

	c, err := template.Render(template.ChoreReminder, data)
	if err != nil {
		t.Fatal(err)
	}
	if c.Subject != "Reminder: Dishes" {
		t.Fatalf("unexpected subject %q", c.Subject)
	}
	if !strings.Contains(c.Body, "Emma") || !strings.Contains(c.Body, "15 points") {
		t.Fatalf("body missing expected fields: %q", c.Body)
	}
}

func TestRender_ApprovalRequest(t *testing.T) {
	data := json.RawMessage(`{
		"parent_name": "Dana",
		"child_name": "Leo",
		"chore_name": "Trash",
		"points": 5
	}`)

	c, err := template.Render(template.ApprovalRequest, data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.Body, "Leo") || !strings.Contains(c.Body, "approve") {
		t.Fatalf("body missing expected fields: %q", c.Body)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := template.Render("birthday_song", json.RawMessage(`{}`))
	if !errors.Is(err, domain.ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
}

// TestRender_UnknownFieldRejected verifies the strict decoder: a typo in
// the payload fails at enqueue validation instead of rendering wrong.
func TestRender_UnknownFieldRejected(t *testing.T) {
	data := json.RawMessage(`{"member_name": "Emma", "chorename": "Dishes"}`)

	_, err := template.Render(template.ChoreReminder, data)
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestRender_MalformedJSON(t *testing.T) {
	_, err := template.Render(template.WeeklyDigest, json.RawMessage(`{`))
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestValidate_AllTemplates(t *testing.T) {
	tests := []struct {
		id   string
		data string
	}{
		{template.ChoreReminder, `{"member_name":"a","chore_name":"b","due_at":"2026-01-01T00:00:00Z","points":1}`},
		{template.ChoreOverdue, `{"member_name":"a","chore_name":"b","days_late":2}`},
		{template.ApprovalRequest, `{"parent_name":"a","child_name":"b","chore_name":"c","points":1}`},
		{template.PointsAwarded, `{"member_name":"a","chore_name":"b","points":1,"balance":10}`},
		{template.WeeklyDigest, `{"member_name":"a","completed_count":3,"points_earned":20,"pending_count":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if err := template.Validate(tt.id, json.RawMessage(tt.data)); err != nil {
				t.Fatalf("valid payload rejected: %v", err)
			}
		})
	}
}
