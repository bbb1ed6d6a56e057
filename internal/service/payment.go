package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/infrastructure/razorpay"
	"github.com/oklog/ulid/v2"
)

// MockKeySecret signs callbacks accepted by the mock gateway
const MockKeySecret = "mock_razorpay_secret"

// GatewayOrder is an order created on the payment gateway
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// OrderParams describes an order to create
type OrderParams struct {
	Amount   int64 // smallest currency unit
	Currency string
	Receipt  string
	Notes    map[string]string
}

// PaymentGateway defines the interface for payment gateway integrations
type PaymentGateway interface {
	// CreateOrder creates an auto-captured order for the checkout widget
	CreateOrder(ctx context.Context, params OrderParams) (*GatewayOrder, error)
	// VerifySignature checks a checkout callback. It never panics; any failure is false.
	VerifySignature(orderID, paymentID, signature string) bool
	// KeyID is the public key the checkout widget is opened with
	KeyID() string
}

// MockGateway is a PaymentGateway for development without gateway credentials.
// Callbacks are verified with an HMAC under MockKeySecret.
type MockGateway struct{}

// RazorpayGatewayAdapter adapts razorpay.Client to the PaymentGateway interface
type RazorpayGatewayAdapter struct {
	client *razorpay.Client
}

// NewPaymentGateway returns the Razorpay gateway, or the mock when no credentials are configured
func NewPaymentGateway(cfg config.RazorpayConfig) PaymentGateway {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		log.Println("[Payment] Using mock gateway (no Razorpay credentials configured)")
		return &MockGateway{}
	}

	log.Printf("[Payment] Using Razorpay gateway (key: %s)", cfg.KeyID)
	return &RazorpayGatewayAdapter{
		client: razorpay.NewClient(razorpay.Config{KeyID: cfg.KeyID, KeySecret: cfg.KeySecret}),
	}
}

// CreateOrder returns a mock order id
func (m *MockGateway) CreateOrder(ctx context.Context, params OrderParams) (*GatewayOrder, error) {
	return &GatewayOrder{
		ID:       "order_MOCK" + ulid.Make().String(),
		Amount:   params.Amount,
		Currency: params.Currency,
		Receipt:  params.Receipt,
	}, nil
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := MockSignature(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (m *MockGateway) KeyID() string {
	return "rzp_test_mock"
}

// MockSignature computes the signature the mock gateway accepts for a payment
func MockSignature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(MockKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// CreateOrder creates a real order via the Razorpay API
func (a *RazorpayGatewayAdapter) CreateOrder(ctx context.Context, params OrderParams) (*GatewayOrder, error) {
	order, err := a.client.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   params.Amount,
		Currency: params.Currency,
		Receipt:  params.Receipt,
		Notes:    params.Notes,
	})
	if err != nil {
		log.Printf("[Payment] Razorpay API error: %v", err)
		return nil, fmt.Errorf("payment provider error: %w", err)
	}

	return &GatewayOrder{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
	}, nil
}

func (a *RazorpayGatewayAdapter) VerifySignature(orderID, paymentID, signature string) bool {
	return a.client.VerifyPaymentSignature(orderID, paymentID, signature)
}

func (a *RazorpayGatewayAdapter) KeyID() string {
	return a.client.KeyID()
}
