package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// ProviderLimiters holds one token bucket limiter per channel type,
// capping the aggregate call rate against each external provider. This is
// separate from the per-recipient fixed window: a thousand different
// recipients can each be under their personal budget and still overwhelm
// a single provider without this cap.
type ProviderLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// NewProviderLimiters creates limiters with ratePerSec tokens per second
// per channel. Burst equals the rate so no extra burst capacity is
// allowed beyond the configured per-second maximum.
func NewProviderLimiters(ratePerSec int) *ProviderLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec

	return &ProviderLimiters{
		limiters: map[domain.Channel]*rate.Limiter{
			domain.ChannelWhatsApp: rate.NewLimiter(r, burst),
			domain.ChannelSMS:      rate.NewLimiter(r, burst),
			domain.ChannelEmail:    rate.NewLimiter(r, burst),
			domain.ChannelPush:     rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the channel's limiter grants a token.
// Called by each worker immediately before the provider call.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (pl *ProviderLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	return pl.limiters[ch].Wait(ctx)
}
