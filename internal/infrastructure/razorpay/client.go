package razorpay

import (
	"context"
	"fmt"
	"log"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Config holds Razorpay API credentials
type Config struct {
	KeyID     string
	KeySecret string
}

// OrderRequest describes an order to create on the gateway
type OrderRequest struct {
	Amount   int64 // smallest currency unit
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the subset of the gateway order we keep
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Client wraps the Razorpay SDK
type Client struct {
	config Config
	sdk    *rzp.Client
}

// NewClient creates a new Razorpay client
func NewClient(cfg Config) *Client {
	return &Client{
		config: cfg,
		sdk:    rzp.NewClient(cfg.KeyID, cfg.KeySecret),
	}
}

// KeyID is the public key the checkout widget is opened with
func (c *Client) KeyID() string {
	return c.config.KeyID
}

// CreateOrder creates an auto-captured order
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
		"notes":           notes,
	}

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := c.sdk.Order.Create(data, nil)
		done <- result{body: body, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		log.Printf("[Razorpay] Order create failed (receipt=%s): %v", req.Receipt, res.err)
		return nil, fmt.Errorf("razorpay order create: %w", res.err)
	}

	order := &Order{
		ID:       stringField(res.body, "id"),
		Amount:   int64Field(res.body, "amount"),
		Currency: stringField(res.body, "currency"),
		Receipt:  stringField(res.body, "receipt"),
		Status:   stringField(res.body, "status"),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("razorpay order create: response without order id")
	}
	return order, nil
}

// VerifyPaymentSignature checks the checkout callback signature
// (HMAC-SHA256 of "order_id|payment_id" with the key secret).
// Any panic inside the SDK counts as a failed verification.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) (ok bool) {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Razorpay] Signature verification panicked for order %s: %v", orderID, r)
			ok = false
		}
	}()

	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, c.config.KeySecret)
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// JSON numbers arrive as float64 from the SDK
func int64Field(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
