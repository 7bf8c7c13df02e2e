// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sprint

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/ids"
	"github.com/luxfi/adsprint/pkg/log"
)

// Repository stores sprints.
type Repository interface {
	// Create fails with ErrSprintExists when a sprint with the same start and
	// category exists.
	Create(ctx context.Context, s *Sprint) error
	Get(ctx context.Context, id string) (*Sprint, error)
	// ActiveAt returns the sprint covering now, or ErrSprintNotFound.
	ActiveAt(ctx context.Context, now time.Time) (*Sprint, error)
	// NextAfter returns the earliest sprint starting after t, or ErrSprintNotFound.
	NextAfter(ctx context.Context, t time.Time) (*Sprint, error)
	// List returns sprints starting in [from, to).
	List(ctx context.Context, from, to time.Time) ([]Sprint, error)
	// AdvanceStatus stores status only if it is later than the stored one.
	AdvanceStatus(ctx context.Context, id string, status Status) error
	// AddViews increments the aggregate counters.
	AddViews(ctx context.Context, id string, views, participants int64) error
}

// Config for the controller.
type Config struct {
	Location          *time.Location
	AnnouncementDelay time.Duration
	DefaultDuration   time.Duration
}

// Report is the sprint status as served to clients.
type Report struct {
	Sprint         Sprint        `json:"sprint"`
	Status         Status        `json:"status"`
	TimeRemaining  TimeRemaining `json:"timeRemaining"`
	CanWatchAds    bool          `json:"canWatchAds"`
	ServerTime     time.Time     `json:"serverTime"`
	DrawAt         *time.Time    `json:"drawAt,omitempty"`
	AnnouncementAt *time.Time    `json:"announcementAt,omitempty"`
	Tier           TierProgress  `json:"tier"`
}

// Controller evaluates sprint status lazily against the clock.
type Controller struct {
	cfg   Config
	repo  Repository
	clock clock.Clock
	log   log.Logger
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c clock.Clock) Option { return func(s *Controller) { s.clock = c } }
func WithLogger(l log.Logger) Option { return func(s *Controller) { s.log = l } }

// NewController creates a controller.
func NewController(cfg Config, repo Repository, opts ...Option) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AnnouncementDelay <= 0 {
		cfg.AnnouncementDelay = DefaultAnnouncementDelay
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultDuration
	}
	c := &Controller{cfg: cfg, repo: repo, clock: clock.Real, log: log.NoOp()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now is the controller's clock reading.
func (c *Controller) Now() time.Time { return c.clock.Now() }

// AnnouncementTime is when a raffle drawn at drawTime is announced.
func (c *Controller) AnnouncementTime(drawTime time.Time) time.Time {
	return drawTime.Add(c.cfg.AnnouncementDelay)
}

// DrawTime is when a sprint's raffle may be drawn.
func (c *Controller) DrawTime(s *Sprint) time.Time {
	return s.EndDate
}

// Get returns a sprint with its cached status refreshed.
func (c *Controller) Get(ctx context.Context, id string) (*Sprint, error) {
	s, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.refresh(ctx, s, c.clock.Now())
	return s, nil
}

// Status reports a sprint's status and countdown.
func (c *Controller) Status(ctx context.Context, id string) (*Report, error) {
	s, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.report(ctx, s, c.clock.Now()), nil
}

// Current reports the sprint running now.
func (c *Controller) Current(ctx context.Context) (*Report, error) {
	now := c.clock.Now()
	s, err := c.repo.ActiveAt(ctx, now)
	if err != nil {
		return nil, err
	}
	return c.report(ctx, s, now), nil
}

// Next reports the next sprint to start.
func (c *Controller) Next(ctx context.Context) (*Report, error) {
	now := c.clock.Now()
	s, err := c.repo.NextAfter(ctx, now)
	if err != nil {
		return nil, err
	}
	return c.report(ctx, s, now), nil
}

// List returns sprints starting in [from, to).
func (c *Controller) List(ctx context.Context, from, to time.Time) ([]Sprint, error) {
	sprints, err := c.repo.List(ctx, from, to)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	for i := range sprints {
		sprints[i].Status = sprints[i].StatusAt(now)
	}
	return sprints, nil
}

// CanWatchAds is the watch gate, evaluated at the moment of the call.
func (c *Controller) CanWatchAds(ctx context.Context, id string) (bool, error) {
	s, err := c.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return CanWatchAds(s, c.clock.Now()), nil
}

// HasEnded reports whether a sprint is over.
func (c *Controller) HasEnded(ctx context.Context, id string) (bool, error) {
	s, err := c.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.StatusAt(c.clock.Now()) == StatusEnded, nil
}

// RecordView updates a sprint's aggregate counters for an accepted view.
func (c *Controller) RecordView(ctx context.Context, id string, newParticipant bool) error {
	var participants int64
	if newParticipant {
		participants = 1
	}
	return c.repo.AddViews(ctx, id, 1, participants)
}

func (c *Controller) report(ctx context.Context, s *Sprint, now time.Time) *Report {
	c.refresh(ctx, s, now)
	r := &Report{
		Sprint:        *s,
		Status:        s.Status,
		TimeRemaining: s.Remaining(now),
		CanWatchAds:   CanWatchAds(s, now),
		ServerTime:    now,
		Tier:          TierFor(s.TotalViews),
	}
	if s.Status == StatusEnded {
		draw := c.DrawTime(s)
		announce := c.AnnouncementTime(draw)
		r.DrawAt, r.AnnouncementAt = &draw, &announce
	}
	return r
}

// refresh recomputes the status and moves the cached value forward. The
// store ignores stale writes, so concurrent readers cannot regress it.
func (c *Controller) refresh(ctx context.Context, s *Sprint, now time.Time) {
	st := s.StatusAt(now)
	if st.Rank() > s.Status.Rank() {
		if err := c.repo.AdvanceStatus(ctx, s.ID, st); err != nil {
			c.log.Warn("sprint status cache not updated", zap.String("sprint", s.ID), zap.Error(err))
		} else if st == StatusEnded {
			c.log.Info("sprint ended",
				zap.String("sprint", s.ID),
				zap.Time("drawAt", c.DrawTime(s)),
				zap.Time("announcementAt", c.AnnouncementTime(c.DrawTime(s))),
			)
		}
	}
	s.Status = st
}

// Template describes a weekly recurring sprint.
type Template struct {
	DayOfWeek time.Weekday       `json:"dayOfWeek"`
	Start     calendar.TimeOfDay `json:"startTime"`
	Duration  time.Duration      `json:"-"`
	Category  string             `json:"category"`
}

// Plan creates the sprints of a template for the coming weeks. Occurrences
// already started or already stored are skipped.
func (c *Controller) Plan(ctx context.Context, tpl Template, weeks int) ([]Sprint, error) {
	if tpl.Duration <= 0 {
		tpl.Duration = c.cfg.DefaultDuration
	}
	switch {
	case weeks <= 0:
		return nil, ErrInvalidSprint.With("weeks must be positive")
	case tpl.DayOfWeek < time.Sunday || tpl.DayOfWeek > time.Saturday:
		return nil, ErrInvalidSprint.With("day of week must be 0-6")
	case !tpl.Start.Valid() || tpl.Start.Duration()+tpl.Duration > calendar.MinutesPerDay*time.Minute:
		return nil, ErrInvalidSprint.With("sprint must end on the day it starts")
	}

	now := c.clock.Now()
	first := calendar.NextWeekday(now.In(c.cfg.Location), tpl.DayOfWeek)

	var created []Sprint
	for w := 0; w < weeks; w++ {
		start := tpl.Start.On(first.AddDate(0, 0, 7*w))
		if start.Before(now) {
			continue
		}
		end := start.Add(tpl.Duration)
		s := Sprint{
			ID:              ids.New(),
			DayOfWeek:       tpl.DayOfWeek,
			Start:           tpl.Start,
			End:             tpl.Start + calendar.TimeOfDay(tpl.Duration/time.Minute),
			DurationMinutes: int(tpl.Duration / time.Minute),
			Category:        tpl.Category,
			Status:          StatusAt(start, end, now),
			StartDate:       start,
			EndDate:         end,
			CreatedAt:       now,
		}
		err := c.repo.Create(ctx, &s)
		if errors.Is(err, ErrSprintExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, s)
	}
	if len(created) > 0 {
		c.log.Info("sprints planned", zap.Int("count", len(created)), zap.String("category", tpl.Category))
	}
	return created, nil
}

// Create stores a single sprint with explicit bounds.
func (c *Controller) Create(ctx context.Context, s Sprint) (*Sprint, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	start := s.StartDate.In(c.cfg.Location)
	end := s.EndDate.In(c.cfg.Location)
	s.ID = ids.New()
	s.DayOfWeek = start.Weekday()
	s.Start = calendar.Of(start)
	s.End = calendar.Of(end)
	if !calendar.SameDay(start, end) {
		s.End = calendar.MinutesPerDay
	}
	s.DurationMinutes = int(end.Sub(start) / time.Minute)
	now := c.clock.Now()
	s.Status = s.StatusAt(now)
	s.CreatedAt = now
	if err := c.repo.Create(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
