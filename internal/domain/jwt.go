package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes for single-use email links
const (
	TokenPurposeActivate = "activate"
	TokenPurposeReset    = "reset"
)

// AccessClaims represents the claims of an API access token
type AccessClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// LinkClaims represents the claims of an emailed activation or password reset link.
// Fingerprint binds a reset link to the password hash it was issued against.
type LinkClaims struct {
	UserID      string `json:"uid"`
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fp,omitempty"`
	jwt.RegisteredClaims
}
