package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Verification outcomes recorded on the payments counter
const (
	outcomeSettled           = "settled"
	outcomeAlreadySettled    = "already_settled"
	outcomeSignatureMismatch = "signature_mismatch"
	outcomeNotFound          = "payment_not_found"
	outcomeError             = "error"
)

// PaymentService creates gateway orders and settles them into subscriptions
type PaymentService struct {
	packages    domain.PackageRepository
	payments    domain.PaymentRepository
	subs        domain.SubscriptionRepository
	users       domain.UserRepository
	gateway     PaymentGateway
	dispatcher  NotificationDispatcher
	clock       domain.Clock
	currency    string
	callbackURL string
	outcomes    metric.Int64Counter
}

// NewPaymentService creates a new payment service.
// callbackURL is where the checkout widget posts the payment result.
func NewPaymentService(
	packages domain.PackageRepository,
	payments domain.PaymentRepository,
	subs domain.SubscriptionRepository,
	users domain.UserRepository,
	gateway PaymentGateway,
	dispatcher NotificationDispatcher,
	clock domain.Clock,
	currency string,
	callbackURL string,
) *PaymentService {
	outcomes, err := otel.Meter("recgetup/payments").Int64Counter(
		"payments.verifications",
		metric.WithDescription("Payment verification callbacks by outcome"),
	)
	if err != nil {
		log.Printf("[Payment] Failed to create verification counter: %v", err)
	}

	return &PaymentService{
		packages:    packages,
		payments:    payments,
		subs:        subs,
		users:       users,
		gateway:     gateway,
		dispatcher:  dispatcher,
		clock:       clock,
		currency:    currency,
		callbackURL: callbackURL,
		outcomes:    outcomes,
	}
}

// CheckoutOrder is everything the client needs to open the checkout widget
type CheckoutOrder struct {
	OrderID     string               `json:"order_id"`
	Amount      int64                `json:"amount"`
	Currency    string               `json:"currency"`
	KeyID       string               `json:"key_id"`
	Package     *domain.ClassPackage `json:"package"`
	CallbackURL string               `json:"callback_url"`
	Prefill     CheckoutPrefill      `json:"prefill"`
}

// CheckoutPrefill pre-populates the customer fields of the checkout widget
type CheckoutPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact,omitempty"`
}

// InitiateOrder creates a gateway order for a package and records a pending payment
func (s *PaymentService) InitiateOrder(ctx context.Context, userID, packageID string) (*CheckoutOrder, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	if !pkg.Purchasable() {
		return nil, domain.ErrPackageInactive
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	order, err := s.gateway.CreateOrder(ctx, OrderParams{
		Amount:   pkg.Price,
		Currency: s.currency,
		Receipt:  "rcpt_" + ulid.Make().String(),
		Notes: map[string]string{
			"package_id": pkg.ID,
			"user_id":    userID,
		},
	})
	if err != nil {
		log.Printf("[Payment] Order creation failed for user %s, package %s: %v", userID, pkg.ID, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	payment := &domain.PaymentHistory{
		UserID:        userID,
		PackageID:     pkg.ID,
		PackageName:   pkg.Name,
		Amount:        pkg.Price,
		Currency:      s.currency,
		TransactionID: order.ID,
		Status:        domain.PaymentStatusPending,
		PaymentDate:   s.clock.Now(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	log.Printf("[Payment] Order %s created for user %s (%s, %s %s)",
		order.ID, userID, pkg.Name, s.currency, domain.FormatAmount(pkg.Price))

	return &CheckoutOrder{
		OrderID:     order.ID,
		Amount:      pkg.Price,
		Currency:    s.currency,
		KeyID:       s.gateway.KeyID(),
		Package:     pkg,
		CallbackURL: s.callbackURL,
		Prefill: CheckoutPrefill{
			Name:    user.FullName(),
			Email:   user.Email,
			Contact: user.Profile.PhoneNumber,
		},
	}, nil
}

// PaymentCallback is the untrusted result posted by the checkout widget
type PaymentCallback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// VerifyResult describes the settled payment
type VerifyResult struct {
	Payment      *domain.PaymentHistory
	Subscription *domain.UserSubscription
	// AlreadySettled is set when an earlier callback settled the payment
	AlreadySettled bool
}

// VerifyPayment checks the callback signature, settles the payment and activates the subscription
func (s *PaymentService) VerifyPayment(ctx context.Context, cb PaymentCallback) (*VerifyResult, error) {
	if !s.gateway.VerifySignature(cb.OrderID, cb.PaymentID, cb.Signature) {
		log.Printf("[Payment] Signature mismatch for order %s (payment %s)", cb.OrderID, cb.PaymentID)
		s.record(ctx, outcomeSignatureMismatch)
		return nil, domain.ErrSignatureMismatch
	}

	payment, err := s.payments.GetByTransactionID(ctx, cb.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("[Payment] Verified callback for unknown order %s (payment %s)", cb.OrderID, cb.PaymentID)
			s.record(ctx, outcomeNotFound)
			return nil, domain.ErrPaymentNotFound
		}
		s.record(ctx, outcomeError)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if payment.IsSettled() {
		s.record(ctx, outcomeAlreadySettled)
		return s.settledResult(ctx, payment), nil
	}

	pkg, err := s.packages.GetByID(ctx, payment.PackageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("[Payment] Package %s of order %s (user %s) no longer exists", payment.PackageID, cb.OrderID, payment.UserID)
			s.record(ctx, outcomeError)
			return nil, domain.ErrPackageNotFound
		}
		s.record(ctx, outcomeError)
		return nil, fmt.Errorf("failed to get package: %w", err)
	}

	// A payment is marked success only after its subscription is written.
	// Until then it stays unsettled and a retried callback redoes both writes.
	now := s.clock.Now()
	sub, err := s.subs.Upsert(ctx, payment.UserID, pkg.ID, now, domain.SubscriptionEndDate(now, pkg.DurationMonths))
	if err != nil {
		log.Printf("[Payment] Subscription of user %s not activated for order %s: %v", payment.UserID, cb.OrderID, err)
		s.record(ctx, outcomeError)
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	settled, err := s.payments.MarkSuccess(ctx, cb.OrderID, cb.PaymentID, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A concurrent callback settled it first
			current, getErr := s.payments.GetByTransactionID(ctx, cb.OrderID)
			if getErr == nil && current.IsSettled() {
				s.record(ctx, outcomeAlreadySettled)
				return s.settledResult(ctx, current), nil
			}
		}
		log.Printf("[Payment] Subscription of user %s active but order %s not settled: %v", payment.UserID, cb.OrderID, err)
		s.record(ctx, outcomeError)
		return nil, fmt.Errorf("failed to settle payment %s: %w", cb.OrderID, err)
	}

	log.Printf("[Payment] Order %s settled; user %s subscribed to %s until %s",
		cb.OrderID, settled.UserID, pkg.ID, sub.EndDate.Format("2006-01-02"))
	s.record(ctx, outcomeSettled)

	s.notifyPaymentSucceeded(ctx, settled)

	return &VerifyResult{Payment: settled, Subscription: sub}, nil
}

// GatewayFailure is a failed payment reported by the checkout widget
type GatewayFailure struct {
	OrderID     string
	PaymentID   string
	Code        string
	Description string
}

// RecordFailure marks a pending payment as failed. Unknown or settled orders are ignored.
func (s *PaymentService) RecordFailure(ctx context.Context, f GatewayFailure) error {
	if f.OrderID == "" {
		log.Printf("[Payment] Gateway failure without order id: %s %s", f.Code, f.Description)
		return nil
	}

	reason := f.Description
	if f.Code != "" {
		reason = f.Code + ": " + f.Description
	}
	if err := s.payments.MarkFailed(ctx, f.OrderID, reason, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("[Payment] No pending payment for failed order %s", f.OrderID)
			return nil
		}
		return fmt.Errorf("failed to record payment failure: %w", err)
	}

	log.Printf("[Payment] Order %s failed (payment %s): %s", f.OrderID, f.PaymentID, reason)
	return nil
}

// History returns the user's payments, newest first
func (s *PaymentService) History(ctx context.Context, userID string) ([]*domain.PaymentHistory, error) {
	payments, err := s.payments.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *PaymentService) settledResult(ctx context.Context, payment *domain.PaymentHistory) *VerifyResult {
	log.Printf("[Payment] Order %s already settled, nothing to do", payment.TransactionID)
	sub, err := s.subs.GetByUserID(ctx, payment.UserID)
	if err != nil {
		sub = nil
	}
	return &VerifyResult{Payment: payment, Subscription: sub, AlreadySettled: true}
}

func (s *PaymentService) notifyPaymentSucceeded(ctx context.Context, payment *domain.PaymentHistory) {
	if s.dispatcher == nil {
		return
	}
	user, err := s.users.GetByID(ctx, payment.UserID)
	if err != nil {
		log.Printf("[Payment] Skipping receipt for order %s: user %s: %v", payment.TransactionID, payment.UserID, err)
		return
	}
	s.dispatcher.PaymentSucceeded(ctx, domain.PaymentReceipt{
		Recipient:     domain.RecipientFromUser(user),
		PackageName:   payment.PackageName,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		TransactionID: payment.TransactionID,
	})
}

func (s *PaymentService) record(ctx context.Context, outcome string) {
	if s.outcomes == nil {
		return
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
