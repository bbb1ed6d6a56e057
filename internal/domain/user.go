package domain

import (
	"context"
	"strings"
	"time"
)

// Gender values accepted on the profile
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

// Role constants
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Profile holds optional personal details of a user
type Profile struct {
	PhoneNumber string     `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	Bio         string     `bson:"bio,omitempty" json:"bio,omitempty"`
	Gender      string     `bson:"gender,omitempty" json:"gender,omitempty"`
	DateOfBirth *time.Time `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	AvatarURL   string     `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	PushToken   string     `bson:"push_token,omitempty" json:"-"` // FCM registration token
}

// User is an account identified by email
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	FirstName    string    `bson:"first_name" json:"first_name"`
	LastName     string    `bson:"last_name" json:"last_name"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	Roles        []string  `bson:"roles" json:"roles"`
	Profile      Profile   `bson:"profile" json:"profile"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasRole checks if user has a specific role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SplitFullName splits on the first space into first and last name
func SplitFullName(fullName string) (first, last string) {
	fullName = strings.TrimSpace(fullName)
	if i := strings.Index(fullName, " "); i >= 0 {
		return fullName[:i], strings.TrimSpace(fullName[i+1:])
	}
	return fullName, ""
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository defines operations for managing users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	UpdateAvatar(ctx context.Context, id string, avatarURL string) error
}
