package domain

import (
	"context"
	"time"
)

// Payment status constants
const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// PaymentHistory records a gateway order and its settlement.
// TransactionID holds the gateway order id and is unique.
type PaymentHistory struct {
	ID               string     `bson:"_id,omitempty" json:"id"`
	UserID           string     `bson:"user_id" json:"user_id"`
	PackageID        string     `bson:"package_id" json:"package_id"`
	PackageName      string     `bson:"package_name" json:"package_name"`
	Amount           int64      `bson:"amount" json:"amount"` // Amount in smallest currency unit
	Currency         string     `bson:"currency" json:"currency"`
	TransactionID    string     `bson:"transaction_id" json:"transaction_id"`
	GatewayPaymentID string     `bson:"gateway_payment_id,omitempty" json:"gateway_payment_id,omitempty"`
	Status           string     `bson:"status" json:"status"`
	FailureReason    string     `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	PaymentDate      time.Time  `bson:"payment_date" json:"payment_date"`
	SettledAt        *time.Time `bson:"settled_at,omitempty" json:"settled_at,omitempty"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsSettled reports whether the payment reached the terminal success state
func (p *PaymentHistory) IsSettled() bool {
	return p.Status == PaymentStatusSuccess
}

// PaymentRepository defines operations for managing payment history
type PaymentRepository interface {
	Create(ctx context.Context, payment *PaymentHistory) error
	GetByTransactionID(ctx context.Context, transactionID string) (*PaymentHistory, error)
	ListByUserID(ctx context.Context, userID string) ([]*PaymentHistory, error)
	// MarkSuccess moves a pending or failed payment to success.
	// Returns ErrNotFound when no unsettled row matches the transaction id.
	MarkSuccess(ctx context.Context, transactionID, gatewayPaymentID string, settledAt time.Time) (*PaymentHistory, error)
	// MarkFailed moves a pending payment to failed. Returns ErrNotFound when no pending row matches.
	MarkFailed(ctx context.Context, transactionID, reason string, at time.Time) error
}
