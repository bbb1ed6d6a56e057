package events

import (
	"context"
	"log"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
)

const publishTimeout = 5 * time.Second

// EventPublisher is implemented by Publisher
type EventPublisher interface {
	Publish(ctx context.Context, event string, data any) error
}

// QueueDispatcher hands notifications to the message queue for cmd/notifier to deliver.
// Publish failures are logged and swallowed.
type QueueDispatcher struct {
	publisher EventPublisher
}

func NewQueueDispatcher(publisher EventPublisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) PaymentSucceeded(ctx context.Context, r domain.PaymentReceipt) {
	d.publish(ctx, domain.EventPaymentSucceeded, r.Recipient.UserID, r)
}

func (d *QueueDispatcher) UserActivated(ctx context.Context, w domain.Welcome) {
	d.publish(ctx, domain.EventUserActivated, w.Recipient.UserID, w)
}

func (d *QueueDispatcher) publish(ctx context.Context, event, userID string, data any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event, data); err != nil {
		log.Printf("[Events] Failed to publish %s for user %s: %v", event, userID, err)
		return
	}
	log.Printf("[Events] Published %s for user %s", event, userID)
}
