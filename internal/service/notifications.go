package service

import (
	"context"

	"github.com/mansoorceksport/recgetup/internal/domain"
)

// NotificationDispatcher hands notifications off for background delivery.
// Implementations never fail the caller.
type NotificationDispatcher interface {
	PaymentSucceeded(ctx context.Context, r domain.PaymentReceipt)
	UserActivated(ctx context.Context, w domain.Welcome)
}

// AccountMailer sends the emails of the account flows
type AccountMailer interface {
	SendActivationLink(ctx context.Context, to domain.Recipient, link string) error
	SendPasswordReset(ctx context.Context, to domain.Recipient, link string) error
}
