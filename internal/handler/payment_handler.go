package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/service"
)

// PaymentHandler handles the package checkout flow
type PaymentHandler struct {
	payments    *service.PaymentService
	catalog     *service.CatalogService
	frontendURL string
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *service.PaymentService, catalog *service.CatalogService, frontendURL string) *PaymentHandler {
	return &PaymentHandler{
		payments:    payments,
		catalog:     catalog,
		frontendURL: frontendURL,
	}
}

// ListPackages handles GET /v1/packages
func (h *PaymentHandler) ListPackages(c *fiber.Ctx) error {
	pkgs, err := h.catalog.ListPackages(c.UserContext())
	if err != nil {
		return serviceError(c, "Payment", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    pkgs,
	})
}

// Initiate handles POST /v1/payments/initiate/:package_id
// Creates a gateway order and returns the checkout widget options
func (h *PaymentHandler) Initiate(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	packageID := c.Params("package_id")
	if packageID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "package_id is required")
	}

	order, err := h.payments.InitiateOrder(c.UserContext(), userID, packageID)
	if err != nil {
		return serviceError(c, "Payment", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// verifyRequest is the checkout widget callback. Razorpay posts the success
// fields, or error[...] fields when the payment failed.
type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id" form:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id" form:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature" form:"razorpay_signature"`
	Error     *struct {
		Code        string          `json:"code"`
		Description string          `json:"description"`
		Metadata    json.RawMessage `json:"metadata"`
	} `json:"error" form:"-"`
}

type failureMetadata struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

// Verify handles POST /v1/payments/verify.
// The browser is always redirected back to the frontend with the outcome.
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("[Payment] Unreadable verification callback: %v", err)
		return h.redirect(c, "/packages", "error", "Invalid payment response.")
	}

	if failure, ok := gatewayFailure(c, &req); ok {
		if err := h.payments.RecordFailure(c.UserContext(), failure); err != nil {
			log.Printf("[Payment] %v", err)
		}
		message := failure.Description
		if message == "" {
			message = "Payment failed."
		}
		return h.redirect(c, "/packages", "error", message)
	}

	res, err := h.payments.VerifyPayment(c.UserContext(), service.PaymentCallback{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSignatureMismatch):
			return h.redirect(c, "/packages", "error", "Payment verification failed.")
		case errors.Is(err, domain.ErrPaymentNotFound):
			return h.redirect(c, "/packages", "error", "Payment record not found.")
		default:
			log.Printf("[Payment] Verification of order %s failed: %v", req.OrderID, err)
			return h.redirect(c, "/packages", "error", "System error processing payment.")
		}
	}

	message := "Payment successful! Welcome to " + res.Payment.PackageName + "."
	if res.AlreadySettled {
		message = "Payment already processed."
	}
	return h.redirect(c, "/", "success", message)
}

// History handles GET /v1/payments/history
func (h *PaymentHandler) History(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	payments, err := h.payments.History(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, "Payment", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    payments,
	})
}

// gatewayFailure extracts the failure fields from a form or JSON callback
func gatewayFailure(c *fiber.Ctx, req *verifyRequest) (service.GatewayFailure, bool) {
	var (
		code, description string
		metadata          []byte
	)
	if req.Error != nil {
		code, description, metadata = req.Error.Code, req.Error.Description, req.Error.Metadata
	} else {
		code = c.FormValue("error[code]")
		description = c.FormValue("error[description]")
		metadata = []byte(c.FormValue("error[metadata]"))
	}
	if code == "" && description == "" {
		return service.GatewayFailure{}, false
	}

	failure := service.GatewayFailure{Code: code, Description: description}
	if len(metadata) > 0 {
		var meta failureMetadata
		// metadata arrives either as an object or as a JSON encoded string
		var encoded string
		if json.Unmarshal(metadata, &encoded) == nil {
			metadata = []byte(encoded)
		}
		if err := json.Unmarshal(metadata, &meta); err == nil {
			failure.OrderID = meta.OrderID
			failure.PaymentID = meta.PaymentID
		}
	}
	return failure, true
}

func (h *PaymentHandler) redirect(c *fiber.Ctx, path, status, message string) error {
	q := url.Values{}
	q.Set("status", status)
	q.Set("message", message)
	return c.Redirect(h.frontendURL+path+"?"+q.Encode(), fiber.StatusFound)
}
