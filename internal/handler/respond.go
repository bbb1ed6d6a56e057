package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/middleware"
	"github.com/mansoorceksport/recgetup/internal/service"
)

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrPackageNotFound),
		errors.Is(err, domain.ErrClassNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrEmailNotVerified):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrPackageInactive),
		errors.Is(err, domain.ErrSignatureMismatch),
		errors.Is(err, service.ErrUnsupportedImage):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrClassLocked),
		errors.Is(err, domain.ErrMeetingLinkMissing):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return fiber.StatusBadGateway
	case errors.Is(err, service.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// serviceError writes the JSON error response for err.
// Validation errors carry their per-field messages; unexpected errors are logged and hidden.
func serviceError(c *fiber.Ctx, component string, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "validation failed",
			"fields":  verr.Fields,
		})
	}

	switch status := statusFor(err); status {
	case fiber.StatusInternalServerError:
		log.Printf("[%s] %s %s: %v", component, c.Method(), c.Path(), err)
		return errorJSON(c, status, "internal server error")
	case fiber.StatusBadGateway:
		log.Printf("[%s] %v", component, err)
		return errorJSON(c, status, "payment service unavailable, please try again later")
	default:
		return errorJSON(c, status, err.Error())
	}
}

// requireUser returns the authenticated user id or writes a 401
func requireUser(c *fiber.Ctx) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		_ = errorJSON(c, fiber.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}
