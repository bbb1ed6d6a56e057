package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
)

// ScheduleService answers which classes a user can see and join
type ScheduleService struct {
	classes  domain.ClassRepository
	subs     domain.SubscriptionRepository
	packages domain.PackageRepository
	clock    domain.Clock
}

// NewScheduleService creates a new schedule service
func NewScheduleService(
	classes domain.ClassRepository,
	subs domain.SubscriptionRepository,
	packages domain.PackageRepository,
	clock domain.Clock,
) *ScheduleService {
	return &ScheduleService{
		classes:  classes,
		subs:     subs,
		packages: packages,
		clock:    clock,
	}
}

// ActiveSubscription returns the user's subscription if it currently grants access, nil otherwise.
// An active subscription found past its end date is flipped to inactive.
func (s *ScheduleService) ActiveSubscription(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	now := s.clock.Now()
	if sub.IsActive && sub.IsExpired(now) {
		if err := s.subs.Deactivate(ctx, userID, now); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Printf("[Schedule] Failed to deactivate expired subscription of user %s: %v", userID, err)
		} else {
			log.Printf("[Schedule] Subscription of user %s expired on %s", userID, sub.EndDate.Format(time.RFC3339))
		}
		sub.IsActive = false
	}

	if !sub.Grants(now) {
		return nil, nil
	}
	return sub, nil
}

// VisibleClasses lists the upcoming classes the user can see: universal classes
// plus those of the user's active package, ascending by start time.
func (s *ScheduleService) VisibleClasses(ctx context.Context, userID string) ([]*domain.ScheduledClass, error) {
	packageID, err := s.activePackageID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.listVisible(ctx, packageID, 0)
}

// Dashboard is the signed-in landing view
type Dashboard struct {
	Subscription  *domain.UserSubscription `json:"subscription"`
	Package       *domain.ClassPackage     `json:"package,omitempty"`
	DaysRemaining int                      `json:"days_remaining"`
	NextClass     *domain.ScheduledClass   `json:"next_class"`
}

// Dashboard returns the user's subscription state and the next class they can attend
func (s *ScheduleService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	sub, err := s.ActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Subscription: sub}
	packageID := ""
	if sub != nil {
		packageID = sub.PackageID
		d.DaysRemaining = int(sub.EndDate.Sub(s.clock.Now()).Hours() / 24)
		pkg, err := s.packages.GetByID(ctx, sub.PackageID)
		if err == nil {
			d.Package = pkg
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to get package: %w", err)
		}
	}

	next, err := s.listVisible(ctx, packageID, 1)
	if err != nil {
		return nil, err
	}
	if len(next) > 0 {
		d.NextClass = next[0]
	}
	return d, nil
}

// JoinDecision is the result of a join attempt
type JoinDecision struct {
	Class       *domain.ScheduledClass
	MeetingLink string
	OpensAt     time.Time
}

// JoinClass returns the meeting link when the class is open for joining.
// Package restrictions only govern listing; a direct join link is not gated.
// Returns ErrClassLocked (with OpensAt set) before the join window and
// ErrMeetingLinkMissing when the class has no link yet.
func (s *ScheduleService) JoinClass(ctx context.Context, userID, classID string) (*JoinDecision, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return nil, domain.ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	decision := &JoinDecision{Class: class, OpensAt: class.StartTime.Add(-domain.JoinWindow)}
	link, err := domain.CheckJoin(class, s.clock.Now())
	if err != nil {
		return decision, err
	}
	decision.MeetingLink = link
	log.Printf("[Schedule] User %s joining class %s", userID, class.ID)
	return decision, nil
}

func (s *ScheduleService) activePackageID(ctx context.Context, userID string) (string, error) {
	sub, err := s.ActiveSubscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", nil
	}
	return sub.PackageID, nil
}

func (s *ScheduleService) listVisible(ctx context.Context, packageID string, limit int64) ([]*domain.ScheduledClass, error) {
	now := s.clock.Now()
	classes, err := s.classes.ListUpcomingVisible(ctx, packageID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return domain.FilterVisibleClasses(classes, packageID, now), nil
}
