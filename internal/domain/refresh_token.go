package domain

import (
	"context"
	"time"
)

// RefreshToken represents a stored refresh token for session management
type RefreshToken struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	TokenHash string    `bson:"token_hash" json:"-"` // SHA256 hash, never expose
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UserAgent string    `bson:"user_agent" json:"user_agent"`
	IPAddress string    `bson:"ip_address" json:"ip_address"`
	Revoked   bool      `bson:"revoked" json:"revoked"`
}

// IsValid checks the token is neither expired nor revoked at now
func (r *RefreshToken) IsValid(now time.Time) bool {
	return now.Before(r.ExpiresAt) && !r.Revoked
}

// RefreshTokenRepository defines the interface for refresh token storage
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error

	// FindByHash retrieves a non-revoked token by its hash, nil when absent
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)

	RevokeByHash(ctx context.Context, hash string) error

	// RevokeAllByUserID revokes all refresh tokens for a user (password change, reset)
	RevokeAllByUserID(ctx context.Context, userID string) error
}
