// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sprint_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/sprint"
	"github.com/luxfi/adsprint/pkg/storage/memory"
)

// Tuesday 2026-10-20 10:00 UTC.
var epoch = time.Date(2026, time.October, 20, 10, 0, 0, 0, time.UTC)

func newController() (*sprint.Controller, *memory.Sprints, *clock.Manual) {
	clk := clock.NewManual(epoch)
	repo := memory.NewSprints()
	return sprint.NewController(sprint.Config{Location: time.UTC}, repo, sprint.WithClock(clk)), repo, clk
}

func TestStatusAt(t *testing.T) {
	require := require.New(t)
	start := epoch
	end := epoch.Add(time.Hour)

	require.Equal(sprint.StatusUpcoming, sprint.StatusAt(start, end, start.Add(-time.Nanosecond)))
	require.Equal(sprint.StatusActive, sprint.StatusAt(start, end, start))
	require.Equal(sprint.StatusActive, sprint.StatusAt(start, end, end.Add(-time.Nanosecond)))
	require.Equal(sprint.StatusEnded, sprint.StatusAt(start, end, end))

	s := &sprint.Sprint{StartDate: start, EndDate: end}
	require.False(sprint.CanWatchAds(s, start.Add(-time.Second)))
	require.True(sprint.CanWatchAds(s, start))
	require.False(sprint.CanWatchAds(s, end))
}

func TestLifecycle(t *testing.T) {
	require := require.New(t)
	c, repo, clk := newController()
	ctx := context.Background()

	s, err := c.Create(ctx, sprint.Sprint{
		StartDate: epoch.Add(time.Hour),
		EndDate:   epoch.Add(2 * time.Hour),
		Category:  "tech",
	})
	require.NoError(err)
	require.Equal(sprint.StatusUpcoming, s.Status)
	require.Equal(time.Tuesday, s.DayOfWeek)
	require.Equal(calendar.Clock(11, 0), s.Start)
	require.Equal(60, s.DurationMinutes)

	r, err := c.Status(ctx, s.ID)
	require.NoError(err)
	require.Equal(sprint.StatusUpcoming, r.Status)
	require.False(r.CanWatchAds)
	require.Equal(time.Hour, r.TimeRemaining.UntilStart)
	require.Nil(r.DrawAt)

	_, err = c.Current(ctx)
	require.ErrorIs(err, sprint.ErrSprintNotFound)
	next, err := c.Next(ctx)
	require.NoError(err)
	require.Equal(s.ID, next.Sprint.ID)

	clk.Set(epoch.Add(90 * time.Minute))
	cur, err := c.Current(ctx)
	require.NoError(err)
	require.Equal(sprint.StatusActive, cur.Status)
	require.True(cur.CanWatchAds)
	require.Zero(cur.TimeRemaining.UntilStart)
	require.Equal(30*time.Minute, cur.TimeRemaining.UntilEnd)

	ok, err := c.CanWatchAds(ctx, s.ID)
	require.NoError(err)
	require.True(ok)

	clk.Set(epoch.Add(2 * time.Hour))
	r, err = c.Status(ctx, s.ID)
	require.NoError(err)
	require.Equal(sprint.StatusEnded, r.Status)
	require.False(r.CanWatchAds)
	require.Equal(epoch.Add(2*time.Hour), *r.DrawAt)
	require.Equal(epoch.Add(2*time.Hour+15*time.Minute), *r.AnnouncementAt)

	ended, err := c.HasEnded(ctx, s.ID)
	require.NoError(err)
	require.True(ended)

	stored, err := repo.Get(ctx, s.ID)
	require.NoError(err)
	require.Equal(sprint.StatusEnded, stored.Status)

	// A reader with an older clock never moves the cache backwards.
	clk.Set(epoch.Add(90 * time.Minute))
	_, err = c.Get(ctx, s.ID)
	require.NoError(err)
	stored, err = repo.Get(ctx, s.ID)
	require.NoError(err)
	require.Equal(sprint.StatusEnded, stored.Status)
}

func TestCreateValidation(t *testing.T) {
	require := require.New(t)
	c, _, _ := newController()
	ctx := context.Background()

	_, err := c.Create(ctx, sprint.Sprint{StartDate: epoch, EndDate: epoch})
	require.ErrorIs(err, sprint.ErrInvalidSprint)
	_, err = c.Create(ctx, sprint.Sprint{EndDate: epoch})
	require.ErrorIs(err, sprint.ErrInvalidSprint)

	_, err = c.Create(ctx, sprint.Sprint{StartDate: epoch, EndDate: epoch.Add(time.Hour), Category: "x"})
	require.NoError(err)
	_, err = c.Create(ctx, sprint.Sprint{StartDate: epoch, EndDate: epoch.Add(time.Hour), Category: "x"})
	require.ErrorIs(err, sprint.ErrSprintExists)
}

func TestPlan(t *testing.T) {
	require := require.New(t)
	c, _, _ := newController()
	ctx := context.Background()

	tpl := sprint.Template{DayOfWeek: time.Tuesday, Start: calendar.Clock(9, 0), Category: "music"}
	created, err := c.Plan(ctx, tpl, 3)
	require.NoError(err)
	// This week's 09:00 has already started.
	require.Len(created, 2)
	require.Equal(time.Date(2026, time.October, 27, 9, 0, 0, 0, time.UTC), created[0].StartDate)
	require.Equal(time.Date(2026, time.October, 27, 10, 0, 0, 0, time.UTC), created[0].EndDate)
	require.Equal(calendar.Clock(10, 0), created[0].End)
	require.Equal(sprint.StatusUpcoming, created[0].Status)

	again, err := c.Plan(ctx, tpl, 3)
	require.NoError(err)
	require.Empty(again)

	_, err = c.Plan(ctx, tpl, 0)
	require.ErrorIs(err, sprint.ErrInvalidSprint)

	late := sprint.Template{DayOfWeek: time.Friday, Start: calendar.Clock(23, 30), Duration: time.Hour}
	_, err = c.Plan(ctx, late, 1)
	require.ErrorIs(err, sprint.ErrInvalidSprint)

	list, err := c.List(ctx, epoch, epoch.AddDate(0, 0, 21))
	require.NoError(err)
	require.Len(list, 2)
}

func TestRecordView(t *testing.T) {
	require := require.New(t)
	c, _, _ := newController()
	ctx := context.Background()

	s, err := c.Create(ctx, sprint.Sprint{StartDate: epoch, EndDate: epoch.Add(time.Hour)})
	require.NoError(err)

	require.NoError(c.RecordView(ctx, s.ID, true))
	require.NoError(c.RecordView(ctx, s.ID, false))
	require.NoError(c.RecordView(ctx, s.ID, true))
	require.ErrorIs(c.RecordView(ctx, "missing", true), sprint.ErrSprintNotFound)

	got, err := c.Get(ctx, s.ID)
	require.NoError(err)
	require.Equal(int64(3), got.TotalViews)
	require.Equal(int64(2), got.TotalParticipants)
}

func TestTierFor(t *testing.T) {
	require := require.New(t)

	p := sprint.TierFor(0)
	require.Nil(p.Current)
	require.Equal("Basic", p.Next.Name)
	require.Equal(int64(1000), p.ViewsToNext)

	p = sprint.TierFor(5000)
	require.Equal("Medium", p.Current.Name)
	require.Equal("Premium", p.Next.Name)
	require.Equal(int64(5000), p.ViewsToNext)

	p = sprint.TierFor(60000)
	require.Equal("Mega", p.Current.Name)
	require.Nil(p.Next)
}

func TestTimeRemainingJSON(t *testing.T) {
	require := require.New(t)

	b, err := json.Marshal(sprint.TimeRemaining{UntilStart: 90 * time.Second, UntilEnd: time.Hour})
	require.NoError(err)
	require.JSONEq(`{"untilStartSeconds":90,"untilEndSeconds":3600}`, string(b))

	var r sprint.TimeRemaining
	require.NoError(json.Unmarshal(b, &r))
	require.Equal(time.Hour, r.UntilEnd)
}
