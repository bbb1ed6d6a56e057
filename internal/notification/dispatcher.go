package notification

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
)

// DefaultDeliveryTimeout bounds a single background delivery
const DefaultDeliveryTimeout = 30 * time.Second

// Deliverer is implemented by Notifier
type Deliverer interface {
	SendPaymentReceipt(ctx context.Context, r domain.PaymentReceipt) error
	SendWelcome(ctx context.Context, w domain.Welcome) error
}

// AsyncDispatcher delivers notifications in background goroutines.
// Errors are logged, never returned to the caller.
type AsyncDispatcher struct {
	deliverer Deliverer
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewAsyncDispatcher creates an in-process dispatcher
func NewAsyncDispatcher(deliverer Deliverer, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &AsyncDispatcher{deliverer: deliverer, timeout: timeout}
}

// PaymentSucceeded queues the payment receipt
func (d *AsyncDispatcher) PaymentSucceeded(ctx context.Context, r domain.PaymentReceipt) {
	d.run(ctx, domain.EventPaymentSucceeded, r.Recipient.UserID, func(ctx context.Context) error {
		return d.deliverer.SendPaymentReceipt(ctx, r)
	})
}

// UserActivated queues the welcome notification
func (d *AsyncDispatcher) UserActivated(ctx context.Context, w domain.Welcome) {
	d.run(ctx, domain.EventUserActivated, w.Recipient.UserID, func(ctx context.Context) error {
		return d.deliverer.SendWelcome(ctx, w)
	})
}

// Wait blocks until all queued deliveries finished
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

func (d *AsyncDispatcher) run(parent context.Context, event, userID string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Notify] Panic delivering %s to user %s: %v", event, userID, r)
			}
		}()

		if err := fn(ctx); err != nil {
			log.Printf("[Notify] Failed to deliver %s to user %s: %v", event, userID, err)
			return
		}
		log.Printf("[Notify] Delivered %s to user %s", event, userID)
	}()
}
