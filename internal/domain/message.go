package domain

import (
	"encoding/json"
	"time"
)

// Channel is a delivery medium for a notification.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail, ChannelPush:
		return true
	}
	return false
}

// NotificationType categorises what a message is about. Recipients can
// disable individual types per channel, and the type decides queue priority.
type NotificationType string

const (
	TypeChoreReminder   NotificationType = "chore_reminder"
	TypeApprovalRequest NotificationType = "approval_request"
	TypePointsAwarded   NotificationType = "points_awarded"
	TypeWeeklyDigest    NotificationType = "weekly_digest"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeChoreReminder, TypeApprovalRequest, TypePointsAwarded, TypeWeeklyDigest:
		return true
	}
	return false
}

// Priority controls dispatch queue ordering. High is processed first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// QueuePriority maps the notification type onto a dispatch queue tier.
// Approval requests block another family member, so they jump the queue;
// digests are background traffic.
func (t NotificationType) QueuePriority() Priority {
	switch t {
	case TypeApprovalRequest:
		return PriorityHigh
	case TypeWeeklyDigest:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// MessageStatus tracks the lifecycle of a scheduled message.
type MessageStatus string

const (
	StatusPending     MessageStatus = "pending"
	StatusDispatching MessageStatus = "dispatching"
	StatusSent        MessageStatus = "sent"
	StatusFailed      MessageStatus = "failed"
	StatusCancelled   MessageStatus = "cancelled"
)

// IsTerminal reports whether the status can never change again.
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ScheduledMessage is one concrete send intent.
//
// Channels is the recipient's routed fallback list, snapshotted the first
// time the dispatcher picks the message up. ChannelIndex points at the
// channel currently being tried; Attempts counts tries on that channel only
// and resets to zero when the worker falls back to the next channel.
type ScheduledMessage struct {
	ID             string           `json:"id"`
	RecipientID    string           `json:"recipient_id"`
	Type           NotificationType `json:"notification_type"`
	TemplateID     string           `json:"template_id"`
	Data           json.RawMessage  `json:"data"`
	ScheduleAt     time.Time        `json:"schedule_at"`
	Status         MessageStatus    `json:"status"`
	Channels       []Channel        `json:"channels,omitempty"`
	ChannelIndex   int              `json:"channel_index"`
	Attempts       int              `json:"attempts"`
	MaxAttempts    int              `json:"max_attempts"`
	RuleID         *string          `json:"rule_id,omitempty"`
	IdempotencyKey *string          `json:"idempotency_key,omitempty"`
	LastError      *string          `json:"last_error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CurrentChannel returns the channel the message is being delivered on,
// or false if the snapshot is absent or exhausted.
func (m *ScheduledMessage) CurrentChannel() (Channel, bool) {
	if m.ChannelIndex < 0 || m.ChannelIndex >= len(m.Channels) {
		return "", false
	}
	return m.Channels[m.ChannelIndex], true
}

// EnqueueRequest is the inbound payload for a one-off message.
// A nil ScheduleAt means "as soon as possible".
type EnqueueRequest struct {
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"notification_type"`
	TemplateID  string           `json:"template_id"`
	Data        json.RawMessage  `json:"data"`
	ScheduleAt  *time.Time       `json:"schedule_at,omitempty"`
}

// Validate checks the request shape. A ScheduleAt earlier than now minus
// the grace window is rejected; template id and payload are checked
// separately by the message builder.
func (r *EnqueueRequest) Validate(now time.Time, grace time.Duration) error {
	if r.RecipientID == "" {
		return ErrInvalidRecipient
	}
	if !r.Type.IsValid() {
		return ErrInvalidType
	}
	if r.TemplateID == "" {
		return ErrInvalidTemplate
	}
	if r.ScheduleAt != nil && r.ScheduleAt.Before(now.Add(-grace)) {
		return ErrScheduleInPast
	}
	return nil
}
