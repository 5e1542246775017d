package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/hearthtask/notify-engine/internal/domain"
	"github.com/hearthtask/notify-engine/internal/queue"
)

func job(id string, p domain.Priority) queue.DeliveryJob {
	return queue.DeliveryJob{MessageID: id, RecipientID: "r1", Priority: p}
}

func TestPriorityQueue_BasicEnqueueDequeue(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	if err := q.Enqueue(job("1", domain.PriorityNormal)); err != nil {
		t.Fatal(err)
	}

	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected job, got nothing")
	}
	if got.MessageID != "1" {
		t.Fatalf("expected id=1, got %s", got.MessageID)
	}
}

// TestPriorityQueue_HighBeforeNormal verifies that a high-priority job
// inserted after a normal-priority job is still served first.
func TestPriorityQueue_HighBeforeNormal(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	_ = q.Enqueue(job("normal", domain.PriorityNormal))
	_ = q.Enqueue(job("high", domain.PriorityHigh))

	first, _ := q.Dequeue(ctx)
	if first.MessageID != "high" {
		t.Fatalf("expected high to be dequeued first, got %q", first.MessageID)
	}
}

// TestPriorityQueue_ContextCancellation verifies Dequeue returns (_, false)
// when the context is cancelled while blocking.
func TestPriorityQueue_ContextCancellation(t *testing.T) {
	q := queue.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}

func TestPriorityQueue_UnknownPriority(t *testing.T) {
	q := queue.New()
	if err := q.Enqueue(queue.DeliveryJob{MessageID: "x", Priority: "urgent"}); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestPriorityQueue_Depths(t *testing.T) {
	q := queue.New()
	_ = q.Enqueue(job("a", domain.PriorityHigh))
	_ = q.Enqueue(job("b", domain.PriorityNormal))
	_ = q.Enqueue(job("c", domain.PriorityNormal))
	_ = q.Enqueue(job("d", domain.PriorityLow))

	high, normal, low := q.Depths()
	if high != 1 || normal != 2 || low != 1 {
		t.Fatalf("expected depths 1/2/1, got %d/%d/%d", high, normal, low)
	}
}
