// Package channel decides which channels a message should be tried on,
// in what order, and whether the send must wait for the recipient's
// quiet hours to end.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/repository"
)

// Decision is the router's verdict for one message.
// Exactly one of the two outcomes applies: a non-nil DeferUntil means the
// message must be rescheduled; otherwise Channels is the ordered fallback
// list (which may be empty if the recipient muted the type everywhere).
type Decision struct {
	Channels   []domain.Channel
	DeferUntil *time.Time
}

// Router resolves recipient preferences into routing decisions.
type Router struct {
	prefs repository.PreferenceRepository
}

func New(prefs repository.PreferenceRepository) *Router {
	return &Router{prefs: prefs}
}

// Route loads the recipient's preference and applies, in order:
// quiet-hours deferral, then per-type channel filtering. The preference
// order (primary first, then fallbacks) is preserved.
func (r *Router) Route(ctx context.Context, recipientID string, t domain.NotificationType, now time.Time) (Decision, error) {
	pref, err := r.prefs.Get(ctx, recipientID)
	if err != nil {
		return Decision{}, fmt.Errorf("load preference for %s: %w", recipientID, err)
	}

	if pref.Quiet != nil {
		inside, end, err := inQuietWindow(pref.Quiet, now)
		if err != nil {
			return Decision{}, fmt.Errorf("quiet hours for %s: %w", recipientID, err)
		}
		if inside {
			return Decision{DeferUntil: &end}, nil
		}
	}

	var channels []domain.Channel
	for _, ch := range pref.Channels {
		if pref.Enabled(ch, t) {
			channels = append(channels, ch)
		}
	}
	return Decision{Channels: channels}, nil
}

// inQuietWindow reports whether now falls inside the window, computed in
// the recipient's timezone, and the window's end. A window whose end
// clock is before its start wraps past midnight: 22:00–07:00 covers
// 22:00 today through 07:00 tomorrow.
func inQuietWindow(q *domain.QuietHours, now time.Time) (bool, time.Time, error) {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return false, time.Time{}, err
	}
	startClock, err := time.Parse("15:04", q.Start)
	if err != nil {
		return false, time.Time{}, err
	}
	endClock, err := time.Parse("15:04", q.End)
	if err != nil {
		return false, time.Time{}, err
	}

	local := now.In(loc)
	year, month, day := local.Date()
	start := time.Date(year, month, day, startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end := time.Date(year, month, day, endClock.Hour(), endClock.Minute(), 0, 0, loc)

	// Equal bounds describe a zero-length window, not a 24-hour one.
	// Validation rejects them on new preferences; stored rows that carry
	// them are treated as having no quiet hours.
	if start.Equal(end) {
		return false, time.Time{}, nil
	}

	if !end.After(start) {
		// Wrapping window. Either we are past tonight's start (ends
		// tomorrow) or before this morning's end (ends today).
		if !local.Before(start) {
			return true, end.AddDate(0, 0, 1), nil
		}
		if local.Before(end) {
			return true, end, nil
		}
		return false, time.Time{}, nil
	}

	if !local.Before(start) && local.Before(end) {
		return true, end, nil
	}
	return false, time.Time{}, nil
}
