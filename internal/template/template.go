// Package template renders notification content from strongly-typed
// payloads. Each template id maps to one payload struct and one build
// function; an unknown template id or a payload that does not match the
// struct is rejected at construction time, before anything is scheduled.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// Template ids accepted by Render. The id is stored on the scheduled
// message, so renames are a migration, not a refactor.
const (
	ChoreReminder   = "chore_reminder"
	ChoreOverdue    = "chore_overdue"
	ApprovalRequest = "approval_request"
	PointsAwarded   = "points_awarded"
	WeeklyDigest    = "weekly_digest"
)

// Content is the rendered message handed to a channel provider.
// Subject is empty for channels that have no subject line.
type Content struct {
	Subject string
	Body    string
}

type ChoreReminderData struct {
	MemberName string    `json:"member_name"`
	ChoreName  string    `json:"chore_name"`
	DueAt      time.Time `json:"due_at"`
	Points     int       `json:"points"`
}

type ChoreOverdueData struct {
	MemberName string `json:"member_name"`
	ChoreName  string `json:"chore_name"`
	DaysLate   int    `json:"days_late"`
}

type ApprovalRequestData struct {
	ParentName string `json:"parent_name"`
	ChildName  string `json:"child_name"`
	ChoreName  string `json:"chore_name"`
	Points     int    `json:"points"`
}

type PointsAwardedData struct {
	MemberName string `json:"member_name"`
	ChoreName  string `json:"chore_name"`
	Points     int    `json:"points"`
	Balance    int    `json:"balance"`
}

type WeeklyDigestData struct {
	MemberName     string `json:"member_name"`
	CompletedCount int    `json:"completed_count"`
	PointsEarned   int    `json:"points_earned"`
	PendingCount   int    `json:"pending_count"`
}

// Render builds the content for the given template id. The raw payload is
// decoded strictly: unknown fields fail with ErrInvalidPayload so a caller
// typo surfaces at enqueue time rather than as a half-rendered message.
func Render(templateID string, data json.RawMessage) (Content, error) {
	switch templateID {
	case ChoreReminder:
		var d ChoreReminderData
		if err := decode(data, &d); err != nil {
			return Content{}, err
		}
		return Content{
			Subject: fmt.Sprintf("Reminder: %s", d.ChoreName),
			Body: fmt.Sprintf("Hi %s! %q is due at %s and is worth %d points.",
				d.MemberName, d.ChoreName, d.DueAt.Format("15:04 on Monday"), d.Points),
		}, nil

	case ChoreOverdue:
		var d ChoreOverdueData
		if err := decode(data, &d); err != nil {
			return Content{}, err
		}
		return Content{
			Subject: fmt.Sprintf("Overdue: %s", d.ChoreName),
			Body: fmt.Sprintf("Hi %s, %q is %d day(s) overdue. Finish it to keep your streak!",
				d.MemberName, d.ChoreName, d.DaysLate),
		}, nil

	case ApprovalRequest:
		var d ApprovalRequestData
		if err := decode(data, &d); err != nil {
			return Content{}, err
		}
		return Content{
			Subject: fmt.Sprintf("%s finished %s", d.ChildName, d.ChoreName),
			Body: fmt.Sprintf("%s, %s marked %q as done (%d points). Open the app to approve it.",
				d.ParentName, d.ChildName, d.ChoreName, d.Points),
		}, nil

	case PointsAwarded:
		var d PointsAwardedData
		if err := decode(data, &d); err != nil {
			return Content{}, err
		}
		return Content{
			Subject: "Points awarded",
			Body: fmt.Sprintf("Nice work %s! You earned %d points for %q. New balance: %d.",
				d.MemberName, d.Points, d.ChoreName, d.Balance),
		}, nil

	case WeeklyDigest:
		var d WeeklyDigestData
		if err := decode(data, &d); err != nil {
			return Content{}, err
		}
		return Content{
			Subject: "Your week at a glance",
			Body: fmt.Sprintf("%s: %d chores done, %d points earned, %d still pending this week.",
				d.MemberName, d.CompletedCount, d.PointsEarned, d.PendingCount),
		}, nil

	default:
		return Content{}, fmt.Errorf("%w: %q", domain.ErrInvalidTemplate, templateID)
	}
}

// Validate checks a template id and payload without using the result.
// The enqueue path calls this so malformed requests are rejected
// synchronously instead of failing inside a worker.
func Validate(templateID string, data json.RawMessage) error {
	_, err := Render(templateID, data)
	return err
}

func decode(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
