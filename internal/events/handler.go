package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/notification"
)

// ErrMalformedEvent marks events that can never be processed
var ErrMalformedEvent = errors.New("malformed event")

// RoutingKeys are the events the notifier queue is bound to
var RoutingKeys = []string{domain.EventPaymentSucceeded, domain.EventUserActivated}

// Handler processes one event body
type Handler interface {
	Handle(ctx context.Context, routingKey string, body []byte) error
}

// NotificationHandler delivers queued notification events
type NotificationHandler struct {
	deliverer notification.Deliverer
}

// NewNotificationHandler creates a handler that delivers events through the given Deliverer
func NewNotificationHandler(deliverer notification.Deliverer) *NotificationHandler {
	return &NotificationHandler{deliverer: deliverer}
}

func (h *NotificationHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Version != EventVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformedEvent, env.Version)
	}

	switch routingKey {
	case domain.EventPaymentSucceeded:
		var r domain.PaymentReceipt
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if r.Recipient.Email == "" || r.TransactionID == "" {
			return fmt.Errorf("%w: payment receipt without recipient or transaction", ErrMalformedEvent)
		}
		return h.deliverer.SendPaymentReceipt(ctx, r)
	case domain.EventUserActivated:
		var w domain.Welcome
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if w.Recipient.Email == "" {
			return fmt.Errorf("%w: welcome without recipient", ErrMalformedEvent)
		}
		return h.deliverer.SendWelcome(ctx, w)
	default:
		log.Printf("[Notifier] Ignoring unknown event %s", routingKey)
		return nil
	}
}
