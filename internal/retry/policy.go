// Package retry holds the backoff policy for transient delivery failures.
package retry

import (
	"math/rand"
	"sync"
	"time"
)

// Policy computes retry delays: min(Base * 2^attempt, Max), jittered by
// ±20% so retries for messages that failed together do not land on the
// provider in lockstep.
type Policy struct {
	Base time.Duration
	Max  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPolicy(base, max time.Duration) *Policy {
	return &Policy{
		Base: base,
		Max:  max,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before retry number attempt (0-based: attempt 0
// is the delay after the first failure).
func (p *Policy) Next(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			d = p.Max
			break
		}
	}
	if d > p.Max {
		d = p.Max
	}

	// Jitter in [-20%, +20%].
	p.mu.Lock()
	factor := 0.8 + 0.4*p.rng.Float64()
	p.mu.Unlock()
	return time.Duration(float64(d) * factor)
}
