package queue

import (
	"context"
	"fmt"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// PriorityQueue dispatches delivery jobs to one of three buffered channels
// based on priority.
//
// Buffer sizes reflect expected traffic ratios:
//
//	High:   1 000  — approval requests; small buffer applies back-pressure quickly
//	Normal: 5 000  — reminders, the bulk of traffic
//	Low:    2 000  — digests, background / best-effort
//
// Workers dequeue via the double-select pattern, which guarantees that
// high-priority jobs are always served before normal or low ones, while
// still allowing fair competition between normal and low when high is empty.
type PriorityQueue struct {
	high   chan DeliveryJob
	normal chan DeliveryJob
	low    chan DeliveryJob
}

func New() *PriorityQueue {
	return &PriorityQueue{
		high:   make(chan DeliveryJob, 1000),
		normal: make(chan DeliveryJob, 5000),
		low:    make(chan DeliveryJob, 2000),
	}
}

// Enqueue places a job on the appropriate priority channel.
// It is non-blocking: if the target channel is full, ErrQueueFull is
// returned immediately so the dispatcher can leave the message pending
// for the next tick instead of blocking mid-tick.
func (q *PriorityQueue) Enqueue(job DeliveryJob) error {
	switch job.Priority {
	case domain.PriorityHigh:
		select {
		case q.high <- job:
			return nil
		default:
			return domain.ErrQueueFull
		}
	case domain.PriorityNormal:
		select {
		case q.normal <- job:
			return nil
		default:
			return domain.ErrQueueFull
		}
	case domain.PriorityLow:
		select {
		case q.low <- job:
			return nil
		default:
			return domain.ErrQueueFull
		}
	default:
		return fmt.Errorf("unknown priority %q", job.Priority)
	}
}

// Dequeue blocks until a job is available or ctx is cancelled.
//
// Priority guarantee — the double-select pattern:
//  1. A non-blocking select checks the high channel first. If a job is
//     waiting there, it is returned immediately regardless of normal/low.
//  2. Only when high is empty does the goroutine enter a fair blocking select
//     across all three channels plus the done signal. This prevents high-priority
//     starvation while still letting the worker sleep instead of spinning.
//
// Returns (DeliveryJob{}, false) when ctx is cancelled (graceful shutdown signal).
func (q *PriorityQueue) Dequeue(ctx context.Context) (DeliveryJob, bool) {
	// Step 1: drain high before entering a fair wait.
	select {
	case job := <-q.high:
		return job, true
	default:
	}

	// Step 2: fair competition when high is empty.
	select {
	case job := <-q.high:
		return job, true
	case job := <-q.normal:
		return job, true
	case job := <-q.low:
		return job, true
	case <-ctx.Done():
		return DeliveryJob{}, false
	}
}

// Depths returns the current number of jobs waiting in each priority tier.
// Used by the metrics handler for the queue-depth snapshot.
func (q *PriorityQueue) Depths() (high, normal, low int) {
	return len(q.high), len(q.normal), len(q.low)
}
