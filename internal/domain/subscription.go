package domain

import (
	"context"
	"time"
)

// DaysPerMonth is the fixed month length used for subscription periods.
// Periods are not calendar accurate: one month is always 30 days.
const DaysPerMonth = 30

// UserSubscription is the single subscription row owned by a user
type UserSubscription struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	PackageID string    `bson:"package_id,omitempty" json:"package_id,omitempty"` // empty when the package was removed
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the subscription period is over at the given instant
func (s *UserSubscription) IsExpired(now time.Time) bool {
	return now.After(s.EndDate)
}

// Grants reports whether the subscription currently gives access to its package
func (s *UserSubscription) Grants(now time.Time) bool {
	return s != nil && s.IsActive && !s.IsExpired(now) && s.PackageID != ""
}

// SubscriptionEndDate returns the end of a new subscription period started at now.
// The period always starts at now; it does not stack onto a running subscription.
func SubscriptionEndDate(now time.Time, durationMonths int) time.Time {
	return now.Add(time.Duration(durationMonths*DaysPerMonth) * 24 * time.Hour)
}

// SubscriptionRepository defines operations for managing subscriptions
type SubscriptionRepository interface {
	// Upsert creates or replaces the user's subscription in a single atomic write keyed on user_id.
	// Repeating it with the same arguments leaves the same row behind.
	Upsert(ctx context.Context, userID, packageID string, startDate, endDate time.Time) (*UserSubscription, error)
	GetByUserID(ctx context.Context, userID string) (*UserSubscription, error)
	Deactivate(ctx context.Context, userID string, at time.Time) error
	CountByUserID(ctx context.Context, userID string) (int64, error)
}
