package domain

import "time"

// Outcome is the result of one delivery attempt. Opened and clicked are
// provider callbacks that refine a prior sent outcome; they never apply
// to a failed attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeOpened  Outcome = "opened"
	OutcomeClicked Outcome = "clicked"
	OutcomeFailed  Outcome = "failed"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSent, OutcomeOpened, OutcomeClicked, OutcomeFailed:
		return true
	}
	return false
}

// ErrorClass classifies a failed attempt for retry decisions.
type ErrorClass string

const (
	ErrorTransient ErrorClass = "transient"
	ErrorPermanent ErrorClass = "permanent"
)

// DeliveryAttempt is an append-only log entry for one provider call.
// The delivery tracker is its only writer.
type DeliveryAttempt struct {
	ID            string      `json:"id"`
	MessageID     string      `json:"message_id"`
	Channel       Channel     `json:"channel"`
	Outcome       Outcome     `json:"outcome"`
	ErrorClass    *ErrorClass `json:"error_class,omitempty"`
	ErrorMessage  *string     `json:"error_message,omitempty"`
	ProviderMsgID *string     `json:"provider_msg_id,omitempty"`
	LatencyMs     int64       `json:"latency_ms"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ChannelStats is the per-channel slice of DeliveryStats.
type ChannelStats struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// DeliveryStats aggregates attempts for a recipient over a window.
// AvgAttempts is attempts per message, counting every channel tried.
type DeliveryStats struct {
	Total       int                      `json:"total"`
	Successful  int                      `json:"successful"`
	Failed      int                      `json:"failed"`
	ByChannel   map[Channel]ChannelStats `json:"by_channel"`
	AvgAttempts float64                  `json:"avg_attempts"`
}

// ThrottleState is the fixed-window counter row for one (recipient, channel)
// pair. The limit and window length are configuration, not per-row state.
type ThrottleState struct {
	RecipientID string    `json:"recipient_id"`
	Channel     Channel   `json:"channel"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}
