package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Password length bounds. bcrypt only hashes the first 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// AuthService handles registration, activation, login and password management
type AuthService struct {
	userRepo   domain.UserRepository
	tokens     *TokenService
	mailer     AccountMailer
	dispatcher NotificationDispatcher
	jwtConfig  config.JWTConfig
	appConfig  config.AppConfig
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo domain.UserRepository,
	tokens *TokenService,
	mailer AccountMailer,
	dispatcher NotificationDispatcher,
	jwtConfig config.JWTConfig,
	appConfig config.AppConfig,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		tokens:     tokens,
		mailer:     mailer,
		dispatcher: dispatcher,
		jwtConfig:  jwtConfig,
		appConfig:  appConfig,
	}
}

// RegisterInput is the sign-up form
type RegisterInput struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register creates an inactive account and emails the activation link
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.PhoneNumber)

	verr := domain.NewValidationError()
	if strings.TrimSpace(in.FullName) == "" {
		verr.Add("full_name", "full name is required")
	}
	if email == "" {
		verr.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("email", "enter a valid email address")
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		verr.Add("phone_number", "enter a valid phone number")
	}
	validatePassword(verr, "password", in.Password)
	if in.Password != in.ConfirmPassword {
		verr.Add("confirm_password", "passwords do not match")
	}
	if !verr.HasErrors() {
		if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
			verr.Add("email", domain.ErrEmailTaken.Error())
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	first, last := domain.SplitFullName(in.FullName)
	user := &domain.User{
		Email:        email,
		FirstName:    first,
		LastName:     last,
		PasswordHash: string(hash),
		IsActive:     false,
		Roles:        []string{domain.RoleStudent},
		Profile:      domain.Profile{PhoneNumber: phone},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			verr.Add("email", domain.ErrEmailTaken.Error())
			return nil, verr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[Auth] Registered user %s (%s), awaiting activation", user.ID, user.Email)
	s.sendActivationLink(ctx, user)
	return user, nil
}

// Activate verifies an activation link, activates the account and sends the welcome notification
func (s *AuthService) Activate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.ParseLinkToken(token, domain.TokenPurposeActivate)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsActive {
		return user, nil
	}

	if err := s.userRepo.SetActive(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}
	user.IsActive = true
	log.Printf("[Auth] Activated user %s", user.ID)

	if s.dispatcher != nil {
		s.dispatcher.UserActivated(ctx, domain.Welcome{Recipient: domain.RecipientFromUser(user)})
	}
	return user, nil
}

// ResendActivation emails a fresh activation link. Unknown and active accounts are ignored.
func (s *AuthService) ResendActivation(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		s.sendActivationLink(ctx, user)
	}
	return nil
}

// LoginInput is the sign-in form
type LoginInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
	UserAgent  string `json:"-"`
	IPAddress  string `json:"-"`
}

// LoginResult is a signed-in session
type LoginResult struct {
	User   *domain.User
	Tokens *TokenPair
}

// Login checks the credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrEmailNotVerified
	}

	tokens, err := s.tokens.GenerateTokenPair(ctx, user, in.RememberMe, in.UserAgent, in.IPAddress)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// RequestPasswordReset emails a reset link when the account exists and is active.
// The outcome is not revealed to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens.GenerateLinkToken(user.ID, domain.TokenPurposeReset, passwordFingerprint(user.PasswordHash), s.jwtConfig.PasswordResetTTL)
	if err != nil {
		return fmt.Errorf("failed to sign reset link: %w", err)
	}
	link := s.appConfig.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, domain.RecipientFromUser(user), link); err != nil {
		log.Printf("[Auth] Failed to send password reset to user %s: %v", user.ID, err)
	}
	return nil
}

// ResetPassword sets a new password from a reset link. A link stops working once the password changed.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	claims, err := s.tokens.ParseLinkToken(token, domain.TokenPurposeReset)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if claims.Fingerprint != passwordFingerprint(user.PasswordHash) {
		return domain.ErrInvalidToken
	}

	verr := domain.NewValidationError()
	validatePassword(verr, "password", password)
	if password != confirm {
		verr.Add("confirm_password", "passwords do not match")
	}
	if verr.HasErrors() {
		return verr
	}

	return s.setPassword(ctx, user.ID, password)
}

// ChangePassword replaces the password of a signed-in user
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirm string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	verr := domain.NewValidationError()
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		verr.Add("old_password", "your old password was entered incorrectly")
	}
	validatePassword(verr, "new_password", newPassword)
	if newPassword != confirm {
		verr.Add("confirm_password", "passwords do not match")
	}
	if verr.HasErrors() {
		return verr
	}

	return s.setPassword(ctx, user.ID, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	// Sign out every session
	if err := s.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
		log.Printf("[Auth] Failed to revoke sessions of user %s: %v", userID, err)
	}
	log.Printf("[Auth] Password changed for user %s", userID)
	return nil
}

func (s *AuthService) sendActivationLink(ctx context.Context, user *domain.User) {
	token, err := s.tokens.GenerateLinkToken(user.ID, domain.TokenPurposeActivate, "", s.jwtConfig.ActivationExpiry)
	if err != nil {
		log.Printf("[Auth] Failed to sign activation link for user %s: %v", user.ID, err)
		return
	}
	link := s.appConfig.BaseURL + "/v1/auth/activate?token=" + url.QueryEscape(token)
	if err := s.mailer.SendActivationLink(ctx, domain.RecipientFromUser(user), link); err != nil {
		log.Printf("[Auth] Failed to send activation email to user %s: %v", user.ID, err)
	}
}

func validatePassword(verr *domain.ValidationError, field, password string) {
	if len(password) < MinPasswordLength {
		verr.Add(field, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
		return
	}
	if len(password) > MaxPasswordLength {
		verr.Add(field, fmt.Sprintf("password must be at most %d characters", MaxPasswordLength))
		return
	}
	if strings.TrimLeft(password, "0123456789") == "" {
		verr.Add(field, "password cannot be entirely numeric")
	}
}

// passwordFingerprint ties a reset link to the password hash it was issued against
func passwordFingerprint(passwordHash string) string {
	return hashToken(passwordHash)[:16]
}
