package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
)

// ErrInvalidRefreshToken is returned for unknown, expired or revoked refresh tokens
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// TokenService issues access tokens, rotating refresh tokens and signed email links
type TokenService struct {
	jwtConfig        config.JWTConfig
	refreshTokenRepo domain.RefreshTokenRepository
	userRepo         domain.UserRepository
	clock            domain.Clock
}

// NewTokenService creates a new token service
func NewTokenService(
	jwtConfig config.JWTConfig,
	refreshTokenRepo domain.RefreshTokenRepository,
	userRepo domain.UserRepository,
	clock domain.Clock,
) *TokenService {
	return &TokenService{
		jwtConfig:        jwtConfig,
		refreshTokenRepo: refreshTokenRepo,
		userRepo:         userRepo,
		clock:            clock,
	}
}

// TokenPair contains both access and refresh tokens
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresIn        int64     `json:"expires_in"` // Seconds until access token expires
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// GenerateTokenPair creates both access and refresh tokens for a user.
// rememberMe extends the refresh token lifetime.
func (s *TokenService) GenerateTokenPair(ctx context.Context, user *domain.User, rememberMe bool, userAgent, ipAddress string) (*TokenPair, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	expiry := s.jwtConfig.RefreshTokenExpiry
	if rememberMe {
		expiry = s.jwtConfig.RememberMeExpiry
	}
	refreshToken, expiresAt, err := s.generateAndStoreRefreshToken(ctx, user.ID, expiry, userAgent, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(s.jwtConfig.AccessTokenExpiry.Seconds()),
		RefreshExpiresAt: expiresAt,
	}, nil
}

// RefreshAccessToken validates a refresh token, revokes it and returns a new pair.
// A remember-me session stays a remember-me session.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken, userAgent, ipAddress string) (*TokenPair, error) {
	tokenHash := hashToken(refreshToken)

	storedToken, err := s.refreshTokenRepo.FindByHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if storedToken == nil || !storedToken.IsValid(s.clock.Now()) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}

	// Rotation: the presented token can be used only once
	if err := s.refreshTokenRepo.RevokeByHash(ctx, tokenHash); err != nil {
		return nil, fmt.Errorf("failed to revoke old token: %w", err)
	}

	rememberMe := storedToken.ExpiresAt.Sub(storedToken.CreatedAt) > s.jwtConfig.RefreshTokenExpiry
	return s.GenerateTokenPair(ctx, user, rememberMe, userAgent, ipAddress)
}

// RevokeRefreshToken invalidates a specific refresh token (logout)
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.refreshTokenRepo.RevokeByHash(ctx, hashToken(refreshToken))
}

// RevokeAllUserTokens invalidates all refresh tokens for a user (force logout)
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.refreshTokenRepo.RevokeAllByUserID(ctx, userID)
}

// ParseAccessToken validates an access token and returns its claims
func (s *TokenService) ParseAccessToken(tokenString string) (*domain.AccessClaims, error) {
	return ParseAccessToken(tokenString, s.jwtConfig.Secret)
}

// ParseAccessToken validates an HS256 access token signed with secret
func ParseAccessToken(tokenString, secret string) (*domain.AccessClaims, error) {
	claims := &domain.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// GenerateLinkToken signs a single-purpose token for an emailed link
func (s *TokenService) GenerateLinkToken(userID, purpose, fingerprint string, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := domain.LinkClaims{
		UserID:      userID,
		Purpose:     purpose,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.Secret))
}

// ParseLinkToken validates a link token for the expected purpose
func (s *TokenService) ParseLinkToken(tokenString, purpose string) (*domain.LinkClaims, error) {
	claims := &domain.LinkClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Purpose != purpose || claims.UserID == "" {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// generateAccessToken creates a short-lived JWT access token
func (s *TokenService) generateAccessToken(user *domain.User) (string, error) {
	now := s.clock.Now()
	claims := domain.AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.Secret))
}

// generateAndStoreRefreshToken creates a random refresh token and stores its hash
func (s *TokenService) generateAndStoreRefreshToken(ctx context.Context, userID string, expiry time.Duration, userAgent, ipAddress string) (string, time.Time, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	rawToken := hex.EncodeToString(tokenBytes)

	now := s.clock.Now()
	refreshToken := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(rawToken), // never store the raw token
		ExpiresAt: now.Add(expiry),
		CreatedAt: now,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, refreshToken.ExpiresAt, nil
}

// hashToken creates a SHA256 hash of the token
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
