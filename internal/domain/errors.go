package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyTerminal = errors.New("message is already in a terminal status")

	ErrInvalidRecipient  = errors.New("recipient id must not be empty")
	ErrInvalidType       = errors.New("unknown notification type")
	ErrInvalidTemplate   = errors.New("template id must not be empty")
	ErrInvalidPayload    = errors.New("payload does not match the template's schema")
	ErrScheduleInPast    = errors.New("schedule_at is in the past beyond the grace window")
	ErrInvalidCadence    = errors.New("cadence must be daily, weekly, or monthly")
	ErrInvalidInterval   = errors.New("interval must be at least 1")
	ErrInvalidDaysOfWeek = errors.New("weekly rules need distinct days_of_week in 0..6")
	ErrInvalidDayOfMonth = errors.New("day_of_month must be in 1..31")

	ErrInvalidChannel    = errors.New("unknown channel")
	ErrNoChannels        = errors.New("preference must list at least one channel")
	ErrDuplicateChannel  = errors.New("preference channel list contains a duplicate")
	ErrMissingAddress    = errors.New("every listed channel needs an address")
	ErrInvalidQuietHours = errors.New("quiet hours need HH:MM bounds and a valid timezone")

	ErrQueueFull = errors.New("dispatch queue is at capacity, try again later")
	ErrExhausted = errors.New("all channels and retries exhausted")
)
