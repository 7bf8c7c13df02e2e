// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sprint

import (
	"encoding/json"
	"time"

	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/errs"
)

const (
	// DefaultAnnouncementDelay separates the raffle draw from its announcement.
	DefaultAnnouncementDelay = 15 * time.Minute
	// DefaultDuration of a planned sprint.
	DefaultDuration = 60 * time.Minute
)

// Status of a sprint. UPCOMING, ACTIVE and ENDED follow each other in order.
type Status string

const (
	StatusUpcoming Status = "UPCOMING"
	StatusActive   Status = "ACTIVE"
	StatusEnded    Status = "ENDED"
)

// Rank orders statuses along the lifecycle.
func (s Status) Rank() int {
	switch s {
	case StatusActive:
		return 1
	case StatusEnded:
		return 2
	default:
		return 0
	}
}

var (
	ErrSprintNotFound = errs.New(errs.NotFound, "SPRINT_NOT_FOUND", "sprint not found")
	ErrSprintExists   = errs.New(errs.Conflict, "SPRINT_EXISTS", "a sprint already starts at that time")
	ErrInvalidSprint  = errs.New(errs.Validation, "INVALID_SPRINT", "invalid sprint")
)

// Sprint is a time-boxed window in which watching ads earns tickets.
// Status is a cache of StatusAt and never authoritative.
type Sprint struct {
	ID                string             `json:"id"`
	DayOfWeek         time.Weekday       `json:"dayOfWeek"`
	Start             calendar.TimeOfDay `json:"startTime"`
	End               calendar.TimeOfDay `json:"endTime"`
	DurationMinutes   int                `json:"durationMinutes"`
	Category          string             `json:"category"`
	Status            Status             `json:"status"`
	StartDate         time.Time          `json:"startDate"`
	EndDate           time.Time          `json:"endDate"`
	TotalViews        int64              `json:"totalViews"`
	TotalParticipants int64              `json:"totalParticipants"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// StatusAt computes a sprint status from its bounds.
func StatusAt(start, end, now time.Time) Status {
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.Before(end):
		return StatusActive
	default:
		return StatusEnded
	}
}

// StatusAt computes the sprint's status at now.
func (s *Sprint) StatusAt(now time.Time) Status {
	return StatusAt(s.StartDate, s.EndDate, now)
}

// CanWatchAds reports whether a view at now may earn tickets.
func CanWatchAds(s *Sprint, now time.Time) bool {
	return s.StatusAt(now) == StatusActive && now.Before(s.EndDate)
}

// Validate checks the sprint's bounds.
func (s *Sprint) Validate() error {
	switch {
	case s.StartDate.IsZero() || s.EndDate.IsZero():
		return ErrInvalidSprint.With("start and end are required")
	case !s.StartDate.Before(s.EndDate):
		return ErrInvalidSprint.With("start must be before end")
	}
	return nil
}

// TimeRemaining is the countdown to a sprint's bounds. Elapsed bounds are zero.
type TimeRemaining struct {
	UntilStart time.Duration
	UntilEnd   time.Duration
}

// Remaining returns the countdown at now.
func (s *Sprint) Remaining(now time.Time) TimeRemaining {
	return TimeRemaining{
		UntilStart: positive(s.StartDate.Sub(now)),
		UntilEnd:   positive(s.EndDate.Sub(now)),
	}
}

func (t TimeRemaining) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UntilStart int64 `json:"untilStartSeconds"`
		UntilEnd   int64 `json:"untilEndSeconds"`
	}{int64(t.UntilStart / time.Second), int64(t.UntilEnd / time.Second)})
}

func (t *TimeRemaining) UnmarshalJSON(b []byte) error {
	var v struct {
		UntilStart int64 `json:"untilStartSeconds"`
		UntilEnd   int64 `json:"untilEndSeconds"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	t.UntilStart = time.Duration(v.UntilStart) * time.Second
	t.UntilEnd = time.Duration(v.UntilEnd) * time.Second
	return nil
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Tier is a prize level unlocked by a sprint's total views.
type Tier struct {
	Name     string `json:"name"`
	MinViews int64  `json:"minViews"`
}

// Tiers in ascending order.
var Tiers = []Tier{
	{Name: "Basic", MinViews: 1000},
	{Name: "Medium", MinViews: 5000},
	{Name: "Premium", MinViews: 10000},
	{Name: "Mega", MinViews: 50000},
}

// TierProgress reports the unlocked tier and the next one.
type TierProgress struct {
	Current     *Tier `json:"current,omitempty"`
	Next        *Tier `json:"next,omitempty"`
	ViewsToNext int64 `json:"viewsToNext"`
}

// TierFor returns the tier progress for a view count.
func TierFor(views int64) TierProgress {
	var p TierProgress
	for i := range Tiers {
		t := Tiers[i]
		if views >= t.MinViews {
			p.Current = &t
			continue
		}
		p.Next = &t
		p.ViewsToNext = t.MinViews - views
		break
	}
	return p
}
