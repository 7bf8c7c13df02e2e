// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a random record identifier.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a well formed record identifier.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// SlotID derives the identifier of the time slot starting at hour on date.
// The date component is taken in date's own location.
func SlotID(date time.Time, hour int) string {
	return fmt.Sprintf("%s-%d", date.Format(time.DateOnly), hour)
}

// ParseSlotID splits a slot identifier back into its date and start hour.
func ParseSlotID(id string, loc *time.Location) (time.Time, int, error) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 {
		return time.Time{}, 0, fmt.Errorf("invalid slot id %q", id)
	}
	date, err := time.ParseInLocation(time.DateOnly, id[:i], loc)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid slot id %q: %w", id, err)
	}
	hour, err := strconv.Atoi(id[i+1:])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, 0, fmt.Errorf("invalid slot id %q: bad hour", id)
	}
	return date, hour, nil
}
