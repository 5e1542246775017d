package domain

import "time"

// QuietHours is a daily window during which sends are deferred, expressed
// in the recipient's timezone. Start and End are "HH:MM"; a window whose
// end is before its start wraps past midnight (e.g. 22:00–07:00).
type QuietHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// ChannelPreference is the per-recipient routing configuration.
//
// Channels is ordered: primary first, then fallbacks. Disabled lists the
// notification types a recipient has muted on a given channel; a channel
// absent from the map is enabled for everything.
type ChannelPreference struct {
	RecipientID string                         `json:"recipient_id"`
	Channels    []Channel                      `json:"channels"`
	Addresses   map[Channel]string             `json:"addresses"`
	Disabled    map[Channel][]NotificationType `json:"disabled,omitempty"`
	Quiet       *QuietHours                    `json:"quiet_hours,omitempty"`
	UpdatedAt   time.Time                      `json:"updated_at"`
}

func (p *ChannelPreference) Validate() error {
	if p.RecipientID == "" {
		return ErrInvalidRecipient
	}
	if len(p.Channels) == 0 {
		return ErrNoChannels
	}
	seen := map[Channel]bool{}
	for _, ch := range p.Channels {
		if !ch.IsValid() {
			return ErrInvalidChannel
		}
		if seen[ch] {
			return ErrDuplicateChannel
		}
		seen[ch] = true
		if p.Addresses[ch] == "" {
			return ErrMissingAddress
		}
	}
	if p.Quiet != nil {
		if _, err := time.LoadLocation(p.Quiet.Timezone); err != nil {
			return ErrInvalidQuietHours
		}
		if !validClock(p.Quiet.Start) || !validClock(p.Quiet.End) {
			return ErrInvalidQuietHours
		}
		// A zero-length window would either mean nothing or, read as
		// wrapping, defer every send forever. Neither is intended.
		if p.Quiet.Start == p.Quiet.End {
			return ErrInvalidQuietHours
		}
	}
	return nil
}

// Enabled reports whether the recipient accepts the given notification
// type on the given channel.
func (p *ChannelPreference) Enabled(ch Channel, t NotificationType) bool {
	for _, muted := range p.Disabled[ch] {
		if muted == t {
			return false
		}
	}
	return true
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
