// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package calendar holds the wall-clock arithmetic shared by schedule
// entries, time slots and sprints.
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// MinutesPerDay bounds TimeOfDay. 24:00 is allowed as an end of day.
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// Clock builds a TimeOfDay from hour and minute.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:mm".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return Clock(h, m), nil
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	return Clock(t.Hour(), t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid reports whether t lies within a day, 24:00 included.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

// Duration since midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// On returns the instant at t on the day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return StartOfDay(date).Add(t.Duration())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Range is a same-day half open interval [Start, End).
type Range struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Valid reports whether the range is well formed and non-empty.
func (r Range) Valid() bool {
	return r.Start.Valid() && r.End.Valid() && r.Start < r.End
}

// Contains reports whether t falls in [Start, End).
func (r Range) Contains(t TimeOfDay) bool {
	return t >= r.Start && t < r.End
}

// Overlaps reports whether the two ranges share any minute.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b share a calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DateWithin reports whether the date of t lies in the inclusive window
// [from, to]. A zero bound is open.
func DateWithin(t, from, to time.Time) bool {
	day := StartOfDay(t)
	if !from.IsZero() && day.Before(StartOfDay(from.In(t.Location()))) {
		return false
	}
	if !to.IsZero() && day.After(StartOfDay(to.In(t.Location()))) {
		return false
	}
	return true
}

// WindowsOverlap reports whether two inclusive date windows share a day.
// Zero bounds are open.
func WindowsOverlap(aFrom, aTo, bFrom, bTo time.Time) bool {
	if !aTo.IsZero() && !bFrom.IsZero() && StartOfDay(aTo).Before(StartOfDay(bFrom.In(aTo.Location()))) {
		return false
	}
	if !bTo.IsZero() && !aFrom.IsZero() && StartOfDay(bTo).Before(StartOfDay(aFrom.In(bTo.Location()))) {
		return false
	}
	return true
}

// NextWeekday returns the first date on or after from that falls on day.
func NextWeekday(from time.Time, day time.Weekday) time.Time {
	d := StartOfDay(from)
	offset := (int(day) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}
