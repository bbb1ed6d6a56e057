package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterVisibleClasses(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	universal := &ScheduledClass{ID: "u1", Title: "Open Warmups", StartTime: now.Add(3 * time.Hour)}
	gold := &ScheduledClass{ID: "g1", Title: "Gold Raag", StartTime: now.Add(1 * time.Hour), PackageIDs: []string{"pkg_gold"}}
	silver := &ScheduledClass{ID: "s1", Title: "Silver Pop", StartTime: now.Add(2 * time.Hour), PackageIDs: []string{"pkg_silver"}}
	both := &ScheduledClass{ID: "b1", Title: "Shared Sufi", StartTime: now.Add(4 * time.Hour), PackageIDs: []string{"pkg_silver", "pkg_gold"}}
	past := &ScheduledClass{ID: "p1", Title: "Yesterday", StartTime: now.Add(-24 * time.Hour)}
	startsNow := &ScheduledClass{ID: "n1", Title: "Right Now", StartTime: now}

	all := []*ScheduledClass{universal, gold, silver, both, past, startsNow, gold}

	t.Run("no subscription sees universal only", func(t *testing.T) {
		got := FilterVisibleClasses(all, "", now)
		assert.Equal(t, []*ScheduledClass{startsNow, universal}, got)
	})

	t.Run("gold subscriber sees universal and gold, deduplicated and ordered", func(t *testing.T) {
		got := FilterVisibleClasses(all, "pkg_gold", now)
		assert.Equal(t, []*ScheduledClass{startsNow, gold, universal, both}, got)
	})

	t.Run("silver subscriber does not see gold-only classes", func(t *testing.T) {
		got := FilterVisibleClasses(all, "pkg_silver", now)
		assert.Equal(t, []*ScheduledClass{startsNow, silver, universal, both}, got)
	})
}

func TestCheckJoin(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	link := "https://meet.example.com/abc"

	tests := []struct {
		name    string
		start   time.Time
		link    string
		wantErr error
	}{
		{name: "exactly fifteen minutes before start", start: now.Add(900 * time.Second), link: link},
		{name: "just past the window", start: now.Add(900*time.Second + time.Millisecond), link: link, wantErr: ErrClassLocked},
		{name: "hours away", start: now.Add(5 * time.Hour), link: link, wantErr: ErrClassLocked},
		{name: "already started", start: now.Add(-10 * time.Minute), link: link},
		{name: "within window but no link", start: now.Add(5 * time.Minute), wantErr: ErrMeetingLinkMissing},
		{name: "locked wins over missing link", start: now.Add(time.Hour), wantErr: ErrClassLocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &ScheduledClass{Title: "Class", StartTime: tt.start, EndTime: tt.start.Add(time.Hour), MeetingLink: tt.link}
			got, err := CheckJoin(c, now)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, link, got)
		})
	}
}

func TestScheduledClassValidate(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	valid := &ScheduledClass{Title: "Breath Control", StartTime: start, EndTime: start.Add(time.Hour)}
	assert.NoError(t, valid.Validate())

	invalid := &ScheduledClass{StartTime: start, EndTime: start}
	err := invalid.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "end_time")
}

func TestSplitFullName(t *testing.T) {
	first, last := SplitFullName("  Asha Rani Bhosle ")
	assert.Equal(t, "Asha", first)
	assert.Equal(t, "Rani Bhosle", last)

	first, last = SplitFullName("Lata")
	assert.Equal(t, "Lata", first)
	assert.Equal(t, "", last)
}
