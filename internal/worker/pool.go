package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/provider"
	"github.com/hearthtask/notify-engine/internal/queue"
	"github.com/hearthtask/notify-engine/internal/ratelimiter"
	"github.com/hearthtask/notify-engine/internal/repository"
	"github.com/hearthtask/notify-engine/internal/retry"
	"github.com/hearthtask/notify-engine/internal/tracker"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnSent   func(channel domain.Channel, latency time.Duration)
	OnFailed func(channel domain.Channel)
}

// Pool manages the lifecycle of all delivery workers. Workers share the
// priority queue, the provider limiters, and the per-key in-flight locks;
// the pool size bounds fan-out toward the channel providers.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(
	size int,
	q *queue.PriorityQueue,
	repo repository.ScheduleRepository,
	prefs repository.PreferenceRepository,
	providers provider.Registry,
	limiter *ratelimiter.Limiter,
	plimiter *ratelimiter.ProviderLimiters,
	policy *retry.Policy,
	trk *tracker.Tracker,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	locks := newKeyLocks()
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = newWorker(
			i, q, repo, prefs, providers, limiter, plimiter, policy, trk, locks,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnSent,
			hooks.OnFailed,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight sends finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
