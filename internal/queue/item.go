package queue

import "github.com/hearthtask/notify-engine/internal/domain"

// DeliveryJob is the minimal data placed on the dispatch queue.
// Workers fetch the full ScheduledMessage from the DB using the ID,
// keeping the queue lightweight and the domain data authoritative.
type DeliveryJob struct {
	MessageID   string
	RecipientID string
	Priority    domain.Priority
}
