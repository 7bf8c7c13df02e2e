// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/adsprint/pkg/sprint"
)

// Sprints is a sprint.Repository.
type Sprints struct {
	mu      sync.RWMutex
	sprints map[string]sprint.Sprint
}

func NewSprints() *Sprints {
	return &Sprints{sprints: make(map[string]sprint.Sprint)}
}

func (s *Sprints) Create(_ context.Context, sp *sprint.Sprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, x := range s.sprints {
		if x.StartDate.Equal(sp.StartDate) && x.Category == sp.Category {
			return sprint.ErrSprintExists.With("sprint %s", x.ID)
		}
	}
	s.sprints[sp.ID] = *sp
	return nil
}

func (s *Sprints) Get(_ context.Context, id string) (*sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.sprints[id]
	if !ok {
		return nil, sprint.ErrSprintNotFound.With("sprint %s", id)
	}
	return &sp, nil
}

func (s *Sprints) ActiveAt(_ context.Context, now time.Time) (*sprint.Sprint, error) {
	return s.first(func(sp sprint.Sprint) bool {
		return !now.Before(sp.StartDate) && now.Before(sp.EndDate)
	})
}

func (s *Sprints) NextAfter(_ context.Context, t time.Time) (*sprint.Sprint, error) {
	return s.first(func(sp sprint.Sprint) bool { return sp.StartDate.After(t) })
}

func (s *Sprints) first(match func(sprint.Sprint) bool) (*sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *sprint.Sprint
	for _, sp := range s.sprints {
		if !match(sp) {
			continue
		}
		if best == nil || sp.StartDate.Before(best.StartDate) ||
			(sp.StartDate.Equal(best.StartDate) && sp.ID < best.ID) {
			sp := sp
			best = &sp
		}
	}
	if best == nil {
		return nil, sprint.ErrSprintNotFound
	}
	return best, nil
}

func (s *Sprints) List(_ context.Context, from, to time.Time) ([]sprint.Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sprint.Sprint
	for _, sp := range s.sprints {
		if !sp.StartDate.Before(from) && sp.StartDate.Before(to) {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Sprints) AdvanceStatus(_ context.Context, id string, status sprint.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.sprints[id]
	if !ok {
		return sprint.ErrSprintNotFound.With("sprint %s", id)
	}
	if status.Rank() > sp.Status.Rank() {
		sp.Status = status
		s.sprints[id] = sp
	}
	return nil
}

func (s *Sprints) AddViews(_ context.Context, id string, views, participants int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.sprints[id]
	if !ok {
		return sprint.ErrSprintNotFound.With("sprint %s", id)
	}
	sp.TotalViews += views
	sp.TotalParticipants += participants
	s.sprints[id] = sp
	return nil
}
