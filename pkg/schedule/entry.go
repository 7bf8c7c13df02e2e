// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schedule

import (
	"fmt"
	"time"

	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/errs"
)

// Source records who created an entry.
type Source string

const (
	SourceManual  Source = "manual"
	SourceAuction Source = "auction"
)

// Entry assigns an advertiser, and optionally an ad, to a recurring weekly
// time range within a validity window.
type Entry struct {
	ID            string             `json:"id"`
	AdvertiserID  string             `json:"advertiserId"`
	AdID          string             `json:"adId,omitempty"`
	DayOfWeek     time.Weekday       `json:"dayOfWeek"`
	Start         calendar.TimeOfDay `json:"startTime"`
	End           calendar.TimeOfDay `json:"endTime"`
	StartDate     time.Time          `json:"startDate"`
	EndDate       time.Time          `json:"endDate"`
	Priority      int                `json:"priority"`
	Active        bool               `json:"active"`
	AllowFallback bool               `json:"allowFallback"`
	Source        Source             `json:"source"`
	SlotID        string             `json:"slotId,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// Range is the entry's same-day time range.
func (e *Entry) Range() calendar.Range {
	return calendar.Range{Start: e.Start, End: e.End}
}

// Matches reports whether the entry covers now. now must already be in the
// business location.
func (e *Entry) Matches(now time.Time) bool {
	return e.Active &&
		e.DayOfWeek == now.Weekday() &&
		e.Range().Contains(calendar.Of(now)) &&
		calendar.DateWithin(now, e.StartDate, e.EndDate)
}

// Overlaps reports whether two active entries can ever cover the same moment.
func (e *Entry) Overlaps(o *Entry) bool {
	return e.Active && o.Active &&
		e.DayOfWeek == o.DayOfWeek &&
		e.Range().Overlaps(o.Range()) &&
		calendar.WindowsOverlap(e.StartDate, e.EndDate, o.StartDate, o.EndDate)
}

// Validate checks the entry's shape.
func (e *Entry) Validate() error {
	switch {
	case e.AdvertiserID == "":
		return ErrInvalidEntry.With("advertiser id is required")
	case e.DayOfWeek < time.Sunday || e.DayOfWeek > time.Saturday:
		return ErrInvalidEntry.With("day of week must be 0-6")
	case !e.Range().Valid():
		return ErrInvalidEntry.With("start %s must be before end %s", e.Start, e.End)
	case !e.StartDate.IsZero() && !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate):
		return ErrInvalidEntry.With("end date is before start date")
	}
	return nil
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s (%s %s-%s priority %d)", e.ID, e.DayOfWeek, e.Start, e.End, e.Priority)
}

var (
	ErrEntryNotFound     = errs.New(errs.NotFound, "ENTRY_NOT_FOUND", "schedule entry not found")
	ErrInvalidEntry      = errs.New(errs.Validation, "INVALID_ENTRY", "invalid schedule entry")
	ErrAdNotOwned        = errs.New(errs.Validation, "AD_NOT_OWNED", "ad does not belong to the advertiser")
	ErrEntryNotOwned     = errs.New(errs.Validation, "ENTRY_NOT_OWNED", "entry does not belong to the advertiser")
	ErrScheduleConflict  = errs.New(errs.Conflict, "SCHEDULE_CONFLICT", "schedule entry collides with an existing entry")
	ErrEntryImmutable    = errs.New(errs.Conflict, "ENTRY_IMMUTABLE", "auction-won entries cannot be changed")
	ErrAmbiguousPriority = errs.New(errs.Invariant, "AMBIGUOUS_PRIORITY", "several entries share the highest priority")
	ErrAwardMismatch     = errs.New(errs.Invariant, "AWARD_MISMATCH", "slot already awarded to another advertiser")
)

// ConflictError names the entry a new entry collides with.
type ConflictError struct {
	Existing Entry
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflict: equal priority with entry %s", e.Existing.String())
}

func (e *ConflictError) Unwrap() error { return ErrScheduleConflict }

// Select picks the entry covering now: the unique highest priority match.
// It returns nil when nothing matches. A tie at the top means the no-tie
// rule was bypassed and is reported as ErrAmbiguousPriority.
func Select(entries []Entry, now time.Time) (*Entry, error) {
	var (
		best *Entry
		tied *Entry
	)
	for i := range entries {
		e := &entries[i]
		if !e.Matches(now) {
			continue
		}
		switch {
		case best == nil || e.Priority > best.Priority:
			best, tied = e, nil
		case e.Priority == best.Priority:
			tied = e
		}
	}
	if tied != nil {
		return nil, ErrAmbiguousPriority.With("entries %s and %s", best.ID, tied.ID)
	}
	return best, nil
}
