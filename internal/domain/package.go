package domain

import (
	"context"
	"fmt"
	"time"
)

// ClassPackage represents a purchasable tier (e.g. Bronze, Silver, Gold)
type ClassPackage struct {
	ID             string    `bson:"_id,omitempty" json:"id"` // e.g. "pkg_gold"
	Name           string    `bson:"name" json:"name"`
	Description    string    `bson:"description" json:"description"`
	Price          int64     `bson:"price" json:"price"` // Price in smallest currency unit (paise)
	DurationMonths int       `bson:"duration_months" json:"duration_months"`
	MaxClasses     int       `bson:"max_classes" json:"max_classes"`
	IsActive       bool      `bson:"is_active" json:"is_active"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// Validate checks the package invariants
func (p *ClassPackage) Validate() error {
	verr := NewValidationError()
	if p.Name == "" {
		verr.Add("name", "name is required")
	}
	if p.Price < 0 {
		verr.Add("price", "price must not be negative")
	}
	if p.DurationMonths < 1 {
		verr.Add("duration_months", "duration must be at least 1 month")
	}
	if p.MaxClasses < 0 {
		verr.Add("max_classes", "max classes must not be negative")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Purchasable reports whether new orders may be created for the package
func (p *ClassPackage) Purchasable() bool {
	return p.IsActive && p.Price >= 0
}

// FormatAmount renders a minor-unit amount as major units with two decimals (99900 -> "999.00")
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// PackageRepository defines operations for managing class packages
type PackageRepository interface {
	Create(ctx context.Context, pkg *ClassPackage) error
	GetByID(ctx context.Context, id string) (*ClassPackage, error)
	GetActivePackages(ctx context.Context) ([]*ClassPackage, error)
	Update(ctx context.Context, pkg *ClassPackage) error
}
