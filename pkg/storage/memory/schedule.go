// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/adsprint/pkg/schedule"
)

// Schedule is a schedule.Repository.
type Schedule struct {
	mu      sync.RWMutex
	entries map[string]schedule.Entry
}

func NewSchedule() *Schedule {
	return &Schedule{entries: make(map[string]schedule.Entry)}
}

func (s *Schedule) CreateChecked(_ context.Context, e *schedule.Entry, check func([]schedule.Entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := check(s.byDay(e.DayOfWeek)); err != nil {
		return err
	}
	s.entries[e.ID] = *e
	return nil
}

func (s *Schedule) Get(_ context.Context, id string) (*schedule.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, schedule.ErrEntryNotFound.With("entry %s", id)
	}
	return &e, nil
}

func (s *Schedule) GetBySlot(_ context.Context, slotID string) (*schedule.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.SlotID != "" && e.SlotID == slotID {
			e := e
			return &e, nil
		}
	}
	return nil, schedule.ErrEntryNotFound.With("slot %s", slotID)
}

func (s *Schedule) ListByDay(_ context.Context, day time.Weekday) ([]schedule.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byDay(day), nil
}

func (s *Schedule) byDay(day time.Weekday) []schedule.Entry {
	var out []schedule.Entry
	for _, e := range s.entries {
		if e.Active && e.DayOfWeek == day {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

func (s *Schedule) List(_ context.Context, f schedule.Filter) ([]schedule.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []schedule.Entry
	for _, e := range s.entries {
		if f.AdvertiserID != "" && e.AdvertiserID != f.AdvertiserID {
			continue
		}
		if f.Day != nil && e.DayOfWeek != *f.Day {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (s *Schedule) Update(_ context.Context, id string, fn func(*schedule.Entry) error) (*schedule.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, schedule.ErrEntryNotFound.With("entry %s", id)
	}
	if err := fn(&e); err != nil {
		return nil, err
	}
	s.entries[id] = e
	return &e, nil
}

func (s *Schedule) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return schedule.ErrEntryNotFound.With("entry %s", id)
	}
	delete(s.entries, id)
	return nil
}

func (s *Schedule) DeleteEndedBefore(_ context.Context, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.entries {
		if !e.EndDate.IsZero() && e.EndDate.Before(day) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func sortEntries(entries []schedule.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DayOfWeek != entries[j].DayOfWeek {
			return entries[i].DayOfWeek < entries[j].DayOfWeek
		}
		if entries[i].Start != entries[j].Start {
			return entries[i].Start < entries[j].Start
		}
		return entries[i].ID < entries[j].ID
	})
}
