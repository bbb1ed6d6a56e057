package handler

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/service"
)

// RefreshCookieName is the httpOnly cookie holding the refresh token
const RefreshCookieName = "recgetup-refresh-token"

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService  *service.AuthService
	tokenService *service.TokenService
	frontendURL  string
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, tokenService *service.TokenService, app config.AppConfig) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenService: tokenService,
		frontendURL:  app.FrontendURL,
		secureCookie: strings.HasPrefix(app.BaseURL, "https://"),
	}
}

type registerRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.authService.Register(c.UserContext(), service.RegisterInput{
		FullName:        req.FullName,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return serviceError(c, "Auth", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful! Please check your email to activate your account.",
		"data":    user,
	})
}

// Activate handles GET /v1/auth/activate?token=... from the emailed link
// and redirects the browser to the sign-in page with the outcome.
func (h *AuthHandler) Activate(c *fiber.Ctx) error {
	_, err := h.authService.Activate(c.UserContext(), c.Query("token"))
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidToken) && !errors.Is(err, domain.ErrUserNotFound) {
			return serviceError(c, "Auth", err)
		}
		return c.Redirect(h.redirectURL("/login", "error", "Activation link is invalid or has expired."), fiber.StatusFound)
	}
	return c.Redirect(h.redirectURL("/login", "success", "Thank you for your email confirmation. Now you can login your account."), fiber.StatusFound)
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendActivation handles POST /v1/auth/activate/resend
func (h *AuthHandler) ResendActivation(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.authService.ResendActivation(c.UserContext(), req.Email); err != nil {
		return serviceError(c, "Auth", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "If the account exists and is not yet active, a new activation link has been sent.",
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.authService.Login(c.UserContext(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		UserAgent:  c.Get("User-Agent"),
		IPAddress:  c.IP(),
	})
	if err != nil {
		return serviceError(c, "Auth", err)
	}

	h.setRefreshCookie(c, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)

	return c.JSON(fiber.Map{
		"success":    true,
		"token":      res.Tokens.AccessToken,
		"expires_in": res.Tokens.ExpiresIn,
		"user":       res.User,
	})
}

// RefreshToken handles POST /v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshCookieName)
	if refreshToken == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "no refresh token provided")
	}

	tokenPair, err := h.tokenService.RefreshAccessToken(c.UserContext(), refreshToken, c.Get("User-Agent"), c.IP())
	if err != nil {
		h.clearRefreshCookie(c)
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return errorJSON(c, fiber.StatusUnauthorized, "invalid or expired refresh token")
		}
		return serviceError(c, "Auth", err)
	}

	h.setRefreshCookie(c, tokenPair.RefreshToken, tokenPair.RefreshExpiresAt)

	return c.JSON(fiber.Map{
		"success":    true,
		"token":      tokenPair.AccessToken,
		"expires_in": tokenPair.ExpiresIn,
	})
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if refreshToken := c.Cookies(RefreshCookieName); refreshToken != "" {
		_ = h.tokenService.RevokeRefreshToken(c.UserContext(), refreshToken)
	}
	h.clearRefreshCookie(c)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// RequestPasswordReset handles POST /v1/auth/password/reset
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.authService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return serviceError(c, "Auth", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "If an account exists for this email, a password reset link has been sent.",
	})
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ResetPassword handles POST /v1/auth/password/reset/confirm
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.authService.ResetPassword(c.UserContext(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		return serviceError(c, "Auth", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Your password has been reset. Please sign in.",
	})
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ChangePassword handles POST /v1/me/password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.authService.ChangePassword(c.UserContext(), userID, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		return serviceError(c, "Auth", err)
	}

	// All sessions were revoked, including this one
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password changed. Please sign in again.",
	})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: "Lax",
		Path:     "/",
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	h.setRefreshCookie(c, "", time.Now().Add(-1*time.Hour))
}

func (h *AuthHandler) redirectURL(path, status, message string) string {
	q := url.Values{}
	q.Set("status", status)
	q.Set("message", message)
	return h.frontendURL + path + "?" + q.Encode()
}
