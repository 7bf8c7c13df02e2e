// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/app"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/sprint"
)

// Tuesday 2026-10-20 10:00 UTC.
var epoch = time.Date(2026, time.October, 20, 10, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type chanReminder chan ledger.Announcement

func (c chanReminder) Announce(_ context.Context, a ledger.Announcement) error {
	c <- a
	return nil
}

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestConvertConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		require := require.New(t)
		cfg := loadConfig(t)

		ac, err := app.AuctionConfig(cfg)
		require.NoError(err)
		require.True(ac.PrimeBasePrice.Equal(decimal.NewFromInt(1_000_000)))
		require.True(ac.MinImpressionPrice.Equal(decimal.RequireFromString("0.001")))
		require.Equal(19, ac.PrimeStartHour)
		require.Equal(time.UTC, ac.Location)

		lc, err := app.LedgerConfig(cfg)
		require.NoError(err)
		require.True(lc.WinnerMultiplier.Equal(decimal.RequireFromString("0.25")))
		require.True(lc.LoserIncrease.Equal(decimal.RequireFromString("0.1")))
		require.Equal(int64(1), lc.BaseTicketsPerView)
	})

	t.Run("bad decimal", func(t *testing.T) {
		require := require.New(t)
		cfg := loadConfig(t)
		cfg.Auction.BasePrice = "lots"
		_, err := app.AuctionConfig(cfg)
		require.ErrorContains(err, "auction.base_price")

		cfg.Rewards.LoserIncrease = "x"
		_, err = app.LedgerConfig(cfg)
		require.ErrorContains(err, "rewards.loser_increase")
	})
}

func TestNewRejectsBadNode(t *testing.T) {
	require := require.New(t)
	cfg := loadConfig(t)
	cfg.App.Node = 1 << 20

	_, err := app.New(context.Background(), cfg, log.NoOp())
	require.ErrorContains(err, "snowflake node")
}

func TestAppLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	cfg := loadConfig(t)
	clk := clock.NewManual(epoch)
	reminders := make(chanReminder, 1)
	a, err := app.New(ctx, cfg, log.NoOp(), app.WithClock(clk), app.WithReminder(reminders))
	require.NoError(err)
	defer a.Close()

	require.False(a.AsynqEnabled())
	require.NoError(a.Ready(ctx))

	// Housekeeping generates the slot horizon. Today's slots are already
	// inside the closing window.
	a.Loop().RunOnce(ctx)
	views, err := a.Auctions.Availability(ctx, epoch, epoch.AddDate(0, 0, 14))
	require.NoError(err)
	require.Len(views, 13*4)

	require.NoError(a.Ads.CreateAdvertiser(ctx, &ads.Advertiser{ID: "adv-1", Name: "Acme", Active: true}))
	bid, err := a.Auctions.PlaceBid(ctx, auction.BidRequest{
		SlotID:               "2026-10-22-20",
		AdvertiserID:         "adv-1",
		BasePriceOffer:       decimal.NewFromInt(1_200_000),
		ImpressionPriceOffer: decimal.RequireFromString("0.004"),
	})
	require.NoError(err)
	require.Equal("adv-1", bid.AdvertiserID)

	// The HTTP surface serves the same components.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?from=2026-10-22&to=2026-10-22", nil)
	a.API().Handler().ServeHTTP(rec, req)
	require.Equal(http.StatusOK, rec.Code)
	var slots struct {
		Slots []auction.SlotView `json:"slots"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(slots.Slots, 4)

	// A sprint with one view and a raffle schedules the announcement.
	s, err := a.Sprints.Create(ctx, sprint.Sprint{StartDate: epoch, EndDate: epoch.Add(time.Hour), Category: "tech"})
	require.NoError(err)
	require.NoError(a.Ads.CreateAd(ctx, &ads.Ad{
		ID: "ad-1", AdvertiserID: "adv-1", MediaURL: "https://cdn.example.com/a.mp4",
		DurationSeconds: 30, Status: ads.StatusApproved, Active: true,
	}))
	receipt, err := a.Ledger.RecordView(ctx, ledger.ViewRequest{
		AttemptID: "attempt-1", UserID: "u1", AdID: "ad-1", SprintID: s.ID, DurationSeconds: 30,
	})
	require.NoError(err)
	require.Equal(int64(1), receipt.TicketsEarned)

	_, err = a.Ledger.RecordView(ctx, ledger.ViewRequest{
		AttemptID: "attempt-1", UserID: "u1", AdID: "ad-1", SprintID: s.ID, DurationSeconds: 30,
	})
	require.ErrorIs(err, ledger.ErrDuplicateView)

	clk.Set(epoch.Add(2 * time.Hour))
	out, err := a.Ledger.ApplyRaffleResult(ctx, ledger.RaffleInput{
		SprintID: s.ID, Winners: []string{"u1"}, DrawnAt: epoch.Add(time.Hour),
	})
	require.NoError(err)
	require.True(out.Created)

	select {
	case ann := <-reminders:
		require.Equal(s.ID, ann.SprintID)
		require.Equal([]string{"u1"}, ann.Winners)
	case <-time.After(time.Second):
		require.FailNow("announcement reminder not delivered")
	}

	acct, err := a.Ledger.Account(ctx, "u1")
	require.NoError(err)
	require.True(acct.Multiplier.Equal(decimal.RequireFromString("0.25")))
}
