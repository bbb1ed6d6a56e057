package domain

import (
	"context"
	"sort"
	"time"
)

// JoinWindow is how long before the start time a class can be joined
const JoinWindow = 15 * time.Minute

// ScheduledClass is a live class session. An empty PackageIDs list makes the class universal.
type ScheduledClass struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	StartTime   time.Time `json:"start_time" bson:"start_time"`
	EndTime     time.Time `json:"end_time" bson:"end_time"`
	Instructor  string    `json:"instructor" bson:"instructor"`
	MeetingLink string    `json:"-" bson:"meeting_link,omitempty"`
	PackageIDs  []string  `json:"package_ids" bson:"package_ids"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// IsUniversal reports whether the class is visible to every authenticated user
func (c *ScheduledClass) IsUniversal() bool {
	return len(c.PackageIDs) == 0
}

// IsUpcoming reports whether the class has not started yet
func (c *ScheduledClass) IsUpcoming(now time.Time) bool {
	return c.StartTime.After(now)
}

// AvailableTo reports whether a subscriber of packageID (empty for none) may see the class
func (c *ScheduledClass) AvailableTo(packageID string) bool {
	if c.IsUniversal() {
		return true
	}
	if packageID == "" {
		return false
	}
	for _, id := range c.PackageIDs {
		if id == packageID {
			return true
		}
	}
	return false
}

// Validate checks the class invariants
func (c *ScheduledClass) Validate() error {
	verr := NewValidationError()
	if c.Title == "" {
		verr.Add("title", "title is required")
	}
	if c.StartTime.IsZero() {
		verr.Add("start_time", "start time is required")
	}
	if !c.EndTime.After(c.StartTime) {
		verr.Add("end_time", "end time must be after start time")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// FilterVisibleClasses returns the classes a subscriber of packageID can see:
// universal classes plus classes restricted to packageID, starting at or after now,
// de-duplicated by id and ordered by start time.
func FilterVisibleClasses(classes []*ScheduledClass, packageID string, now time.Time) []*ScheduledClass {
	seen := make(map[string]bool, len(classes))
	visible := make([]*ScheduledClass, 0, len(classes))
	for _, c := range classes {
		if c == nil || c.StartTime.Before(now) || !c.AvailableTo(packageID) {
			continue
		}
		if c.ID != "" {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
		}
		visible = append(visible, c)
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].StartTime.Before(visible[j].StartTime)
	})
	return visible
}

// CheckJoin decides whether the class can be joined at now and returns the meeting link.
// Joining opens JoinWindow before the start (inclusive) and stays open once started.
func CheckJoin(c *ScheduledClass, now time.Time) (string, error) {
	if c.StartTime.Sub(now) > JoinWindow {
		return "", ErrClassLocked
	}
	if c.MeetingLink == "" {
		return "", ErrMeetingLinkMissing
	}
	return c.MeetingLink, nil
}

// ClassRepository defines operations for managing scheduled classes
type ClassRepository interface {
	Create(ctx context.Context, class *ScheduledClass) error
	GetByID(ctx context.Context, id string) (*ScheduledClass, error)
	Update(ctx context.Context, class *ScheduledClass) error
	// ListUpcomingVisible returns classes starting at or after from that are universal
	// or restricted to packageID (universal only when packageID is empty), ascending by start time.
	ListUpcomingVisible(ctx context.Context, packageID string, from time.Time, limit int64) ([]*ScheduledClass, error)
}
