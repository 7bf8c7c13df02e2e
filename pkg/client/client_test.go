// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/api"
	"github.com/luxfi/adsprint/pkg/app"
	"github.com/luxfi/adsprint/pkg/client"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/schedule"
	"github.com/luxfi/adsprint/pkg/sprint"
)

// Tuesday 2026-10-20 10:00 UTC.
var epoch = time.Date(2026, time.October, 20, 10, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	url      string
	app      *app.App
	clock    *clock.Manual
	sprintID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.Load("")
	require.NoError(t, err)
	clk := clock.NewManual(epoch)
	a, err := app.New(ctx, cfg, log.NoOp(), app.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	a.Loop().RunOnce(ctx)
	require.NoError(t, a.Ads.CreateAdvertiser(ctx, &ads.Advertiser{ID: "adv-1", Name: "Acme", Active: true}))
	require.NoError(t, a.Ads.CreateAd(ctx, &ads.Ad{
		ID: "ad-1", AdvertiserID: "adv-1", MediaURL: "https://cdn.example.com/a.mp4",
		DurationSeconds: 30, Status: ads.StatusApproved, Active: true,
	}))
	s, err := a.Sprints.Create(ctx, sprint.Sprint{StartDate: epoch, EndDate: epoch.Add(time.Hour), Category: "tech"})
	require.NoError(t, err)

	srv := httptest.NewServer(a.API(api.WithClockInterval(10 * time.Millisecond)).Handler())
	t.Cleanup(srv.Close)
	return &fixture{url: srv.URL, app: a, clock: clk, sprintID: s.ID}
}

func apiError(t *testing.T, err error) *client.Error {
	t.Helper()
	var e *client.Error
	require.True(t, errors.As(err, &e), "unexpected error %v", err)
	return e
}

func TestAuction(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	adv := client.New(f.url, "adv-1", api.RoleAdvertiser)

	day := time.Date(2026, time.October, 22, 0, 0, 0, 0, time.UTC)
	slots, err := adv.Slots(ctx, day, day)
	require.NoError(err)
	require.Len(slots, 4)

	bid, err := adv.PlaceBid(ctx, "2026-10-22-20", decimal.NewFromInt(1_500_000), decimal.RequireFromString("0.005"))
	require.NoError(err)
	require.Equal("adv-1", bid.AdvertiserID)

	_, err = adv.PlaceBid(ctx, "2026-10-22-14", decimal.NewFromInt(10), decimal.RequireFromString("0.005"))
	e := apiError(t, err)
	require.Equal(http.StatusBadRequest, e.Status)
	require.Equal("BID_TOO_LOW", e.Code)

	viewer := client.New(f.url, "u1", api.RoleUser)
	_, err = viewer.PlaceBid(ctx, "2026-10-22-22", decimal.NewFromInt(1_500_000), decimal.RequireFromString("0.005"))
	require.Equal(http.StatusForbidden, apiError(t, err).Status)
}

func TestViews(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	viewer := client.New(f.url, "u1", api.RoleUser)

	res, err := viewer.ResolvedAd(ctx, epoch)
	require.NoError(err)
	require.Equal(schedule.KindFallback, res.Kind)
	require.Equal(schedule.FallbackNetwork, res.Fallback.Source)

	report, err := viewer.CurrentSprint(ctx)
	require.NoError(err)
	require.Equal(f.sprintID, report.Sprint.ID)
	require.True(report.CanWatchAds)

	receipt, err := viewer.RecordView(ctx, "attempt-1", "ad-1", f.sprintID, 20)
	require.NoError(err)
	require.Equal(int64(1), receipt.TicketsEarned)

	_, err = viewer.RecordView(ctx, "attempt-1", "ad-1", f.sprintID, 20)
	e := apiError(t, err)
	require.Equal(http.StatusConflict, e.Status)
	require.Equal("DUPLICATE_VIEW", e.Code)

	_, err = viewer.RecordView(ctx, "attempt-2", "ad-1", f.sprintID, 5)
	e = apiError(t, err)
	require.Equal(http.StatusUnprocessableEntity, e.Status)
	require.True(e.Informational)
	require.NotNil(e.View)
	require.False(e.View.TicketEligible)

	acct, err := viewer.Account(ctx)
	require.NoError(err)
	require.Equal(int64(1), acct.Tickets)

	status, err := viewer.SprintStatus(ctx, f.sprintID)
	require.NoError(err)
	require.Equal(sprint.StatusActive, status.Status)

	_, err = viewer.SprintStatus(ctx, "missing")
	require.Equal(http.StatusNotFound, apiError(t, err).Status)
}

func TestClock(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	viewer := client.New(f.url, "u1", api.RoleUser)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames := 0
	err := viewer.StreamClock(ctx, f.sprintID, func(frame api.ClockFrame) error {
		require.True(frame.ServerTime.Equal(epoch))
		require.NotNil(frame.Sprint)
		require.Equal(f.sprintID, frame.Sprint.ID)
		frames++
		if frames == 3 {
			return errors.New("enough")
		}
		return nil
	})
	require.EqualError(err, "enough")
	require.Equal(3, frames)

	c, offset, err := viewer.SyncClock(ctx)
	require.NoError(err)
	require.NotZero(offset)
	require.WithinDuration(epoch, c.Now(), time.Minute)

	err = viewer.StreamClock(ctx, "missing", func(api.ClockFrame) error { return nil })
	require.Equal(http.StatusNotFound, apiError(t, err).Status)
}
