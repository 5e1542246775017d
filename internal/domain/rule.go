package domain

import (
	"encoding/json"
	"time"
)

// Cadence is how often a recurring rule fires.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

func (c Cadence) IsValid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return true
	}
	return false
}

// RecurringRule is a template for generating scheduled messages.
//
// NextFireAt carries the time-of-day for every future occurrence. For
// weekly rules DaysOfWeek lists the weekdays that fire each cycle; for
// monthly rules DayOfMonth is the anchor day, clamped to the last valid
// day of shorter months.
type RecurringRule struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"notification_type"`
	TemplateID  string           `json:"template_id"`
	Data        json.RawMessage  `json:"data"`
	Cadence     Cadence          `json:"cadence"`
	Interval    int              `json:"interval"`
	DaysOfWeek  []time.Weekday   `json:"days_of_week,omitempty"`
	DayOfMonth  int              `json:"day_of_month,omitempty"`
	Enabled     bool             `json:"enabled"`
	NextFireAt  time.Time        `json:"next_fire_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CreateRuleRequest is the inbound payload for a recurring rule.
// StartAt anchors the first occurrence (and time-of-day); omitted means
// the rule starts one interval from now.
type CreateRuleRequest struct {
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"notification_type"`
	TemplateID  string           `json:"template_id"`
	Data        json.RawMessage  `json:"data"`
	Cadence     Cadence          `json:"cadence"`
	Interval    int              `json:"interval"`
	DaysOfWeek  []int            `json:"days_of_week,omitempty"`
	DayOfMonth  int              `json:"day_of_month,omitempty"`
	StartAt     *time.Time       `json:"start_at,omitempty"`
}

func (r *CreateRuleRequest) Validate() error {
	if r.RecipientID == "" {
		return ErrInvalidRecipient
	}
	if !r.Type.IsValid() {
		return ErrInvalidType
	}
	if r.TemplateID == "" {
		return ErrInvalidTemplate
	}
	if !r.Cadence.IsValid() {
		return ErrInvalidCadence
	}
	if r.Interval < 1 {
		return ErrInvalidInterval
	}
	if r.Cadence == CadenceWeekly {
		if len(r.DaysOfWeek) == 0 {
			return ErrInvalidDaysOfWeek
		}
		seen := map[int]bool{}
		for _, d := range r.DaysOfWeek {
			if d < 0 || d > 6 || seen[d] {
				return ErrInvalidDaysOfWeek
			}
			seen[d] = true
		}
	}
	if r.Cadence == CadenceMonthly && (r.DayOfMonth < 0 || r.DayOfMonth > 31) {
		return ErrInvalidDayOfMonth
	}
	return nil
}

// Weekdays converts the request's integer days (0=Sunday) to time.Weekday,
// sorted ascending.
func (r *CreateRuleRequest) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, len(r.DaysOfWeek))
	for d := 0; d <= 6; d++ {
		for _, v := range r.DaysOfWeek {
			if v == d {
				out = append(out, time.Weekday(d))
				break
			}
		}
	}
	return out
}
