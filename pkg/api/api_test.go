// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/api"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/dedupe"
	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/schedule"
	"github.com/luxfi/adsprint/pkg/sprint"
	"github.com/luxfi/adsprint/pkg/storage/memory"
)

// Tuesday 2026-10-20 10:00 UTC.
var epoch = time.Date(2026, time.October, 20, 10, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	server   *api.Server
	handler  http.Handler
	backend  *memory.Backend
	clock    *clock.Manual
	sprintID string
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{backend: memory.New(), clock: clock.NewManual(epoch)}

	alloc := schedule.NewAllocator(schedule.Config{Location: time.UTC}, f.backend.Schedule, f.backend.Ads, schedule.WithClock(f.clock))
	engine := auction.NewEngine(auction.DefaultConfig(), f.backend.Slots, alloc,
		auction.WithClock(f.clock),
		auction.WithAdvertisers(f.backend.Ads),
	)
	_, err := engine.GenerateSlots(ctx, 3)
	require.NoError(t, err)

	sprints := sprint.NewController(sprint.Config{}, f.backend.Sprints, sprint.WithClock(f.clock))
	s, err := sprints.Create(ctx, sprint.Sprint{StartDate: epoch, EndDate: epoch.Add(time.Hour), Category: "tech"})
	require.NoError(t, err)
	f.sprintID = s.ID

	l := ledger.New(ledger.DefaultConfig(), f.backend.Ledger, f.backend.Ads, sprints,
		ledger.WithClock(f.clock),
		ledger.WithDeduplicator(dedupe.NewMemory(time.Hour, f.clock)),
	)

	require.NoError(t, f.backend.Ads.CreateAd(ctx, &ads.Ad{
		ID: "house-1", AdvertiserID: "platform", MediaURL: "https://cdn.example.com/house.mp4",
		DurationSeconds: 30, Status: ads.StatusApproved, Active: true,
	}))

	srv := api.New(api.Deps{Auctions: engine, Schedule: alloc, Sprints: sprints, Ledger: l, Ads: f.backend.Ads},
		append([]api.Option{api.WithClock(f.clock)}, opts...)...)
	f.server = srv
	f.handler = srv.Handler()
	return f
}

type caller struct {
	user string
	role api.Role
}

var (
	anonymous  = caller{}
	admin      = caller{"root", api.RoleAdmin}
	advertiser = caller{"adv-1", api.RoleAdvertiser}
	viewer     = caller{"u1", api.RoleUser}
)

func (f *fixture) do(t *testing.T, who caller, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who.user != "" {
		req.Header.Set(api.HeaderUserID, who.user)
		req.Header.Set(api.HeaderUserRole, string(who.role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) api.ErrorInfo {
	t.Helper()
	return decode[api.ErrorBody](t, w).Error
}

func TestStatusOf(t *testing.T) {
	require := require.New(t)
	tests := []struct {
		kind errs.Kind
		want int
	}{
		{errs.Validation, http.StatusBadRequest},
		{errs.NotFound, http.StatusNotFound},
		{errs.Conflict, http.StatusConflict},
		{errs.Eligibility, http.StatusUnprocessableEntity},
		{errs.Invariant, http.StatusInternalServerError},
		{errs.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(tt.want, api.StatusOf(tt.kind), tt.kind.String())
	}
}

func TestIdentity(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	bid := map[string]string{"basePriceOffer": "100000", "impressionPriceOffer": "0.001"}

	w := f.do(t, anonymous, http.MethodPost, "/api/v1/slots/2026-10-21-14/bids", bid)
	require.Equal(http.StatusUnauthorized, w.Code)
	require.Equal("UNAUTHENTICATED", errorOf(t, w).Code)

	w = f.do(t, viewer, http.MethodPost, "/api/v1/slots/2026-10-21-14/bids", bid)
	require.Equal(http.StatusForbidden, w.Code)

	w = f.do(t, advertiser, http.MethodPost, "/api/v1/admin/advertisers", map[string]string{"name": "x"})
	require.Equal(http.StatusForbidden, w.Code)

	// Reads need no identity.
	w = f.do(t, anonymous, http.MethodGet, "/api/v1/slots", nil)
	require.Equal(http.StatusOK, w.Code)
}

func TestAuctionFlow(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	w := f.do(t, admin, http.MethodPost, "/api/v1/admin/advertisers", map[string]string{"id": "adv-1", "name": "Acme"})
	require.Equal(http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/slots?from=2026-10-21&to=2026-10-21", nil)
	require.Equal(http.StatusOK, w.Code)
	listing := decode[struct {
		Slots []auction.SlotView `json:"slots"`
	}](t, w)
	require.Len(listing.Slots, 4)
	require.Equal("2026-10-21-14", listing.Slots[0].ID)
	require.Equal(auction.StatusOpen, listing.Slots[0].Status)

	w = f.do(t, advertiser, http.MethodPost, "/api/v1/slots/2026-10-21-14/bids",
		map[string]string{"basePriceOffer": "100000", "impressionPriceOffer": "0.001"})
	require.Equal(http.StatusCreated, w.Code, w.Body.String())
	placed := decode[auction.Bid](t, w)
	require.Equal("adv-1", placed.AdvertiserID)
	require.True(placed.BasePriceOffer.Equal(decimal.NewFromInt(100000)))

	w = f.do(t, advertiser, http.MethodPost, "/api/v1/slots/2026-10-21-14/bids",
		map[string]string{"basePriceOffer": "100000", "impressionPriceOffer": "0.001"})
	require.Equal(http.StatusConflict, w.Code)
	require.Equal("BID_NOT_COMPETITIVE", errorOf(t, w).Code)

	w = f.do(t, advertiser, http.MethodPost, "/api/v1/slots/2026-10-21-14/bids",
		map[string]string{"basePriceOffer": "10", "impressionPriceOffer": "0.001"})
	require.Equal(http.StatusBadRequest, w.Code)
	require.Equal("BID_TOO_LOW", errorOf(t, w).Code)

	w = f.do(t, advertiser, http.MethodPost, "/api/v1/slots/2030-01-01-14/bids",
		map[string]string{"basePriceOffer": "100000", "impressionPriceOffer": "0.001"})
	require.Equal(http.StatusNotFound, w.Code)

	// Still open: manual award is refused.
	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/slots/2026-10-21-14/award", nil)
	require.Equal(http.StatusConflict, w.Code)
	require.Equal("SLOT_STILL_OPEN", errorOf(t, w).Code)

	f.clock.Set(time.Date(2026, time.October, 20, 14, 0, 0, 0, time.UTC))
	w = f.do(t, advertiser, http.MethodPost, "/api/v1/slots/2026-10-21-14/bids",
		map[string]string{"basePriceOffer": "200000", "impressionPriceOffer": "0.002"})
	require.Equal(http.StatusConflict, w.Code)
	closed := errorOf(t, w)
	require.Equal("SLOT_CLOSED", closed.Code)
	require.True(closed.Informational)

	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/slots/2026-10-21-14/award", nil)
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	settlement := decode[auction.Settlement](t, w)
	require.Equal(auction.StatusAwarded, settlement.Slot.Status)
	require.Equal(placed.ID, settlement.Award.BidID)

	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/slots/2026-10-21-14/award", nil)
	require.Equal(http.StatusOK, w.Code)
	require.True(decode[auction.Settlement](t, w).AlreadySettled)

	// The winner uploads a creative, an admin approves it and it is attached.
	w = f.do(t, advertiser, http.MethodPost, "/api/v1/ads", map[string]any{"mediaUrl": "https://cdn.example.com/a.mp4", "durationSeconds": 30})
	require.Equal(http.StatusCreated, w.Code, w.Body.String())
	ad := decode[ads.Ad](t, w)
	require.Equal(ads.StatusPending, ad.Status)

	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/ads/"+ad.ID+"/review", map[string]string{"status": "APPROVED"})
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/ads/"+ad.ID+"/review", map[string]string{"status": "REJECTED"})
	require.Equal(http.StatusConflict, w.Code)

	w = f.do(t, admin, http.MethodGet, "/api/v1/admin/schedule-entries?advertiserId=adv-1", nil)
	require.Equal(http.StatusOK, w.Code)
	entries := decode[struct {
		Entries []schedule.Entry `json:"entries"`
	}](t, w).Entries
	require.Len(entries, 1)
	require.Equal(schedule.SourceAuction, entries[0].Source)

	w = f.do(t, advertiser, http.MethodPut, "/api/v1/schedule-entries/"+entries[0].ID+"/ad", map[string]string{"adId": ad.ID})
	require.Equal(http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, admin, http.MethodDelete, "/api/v1/admin/schedule-entries/"+entries[0].ID, nil)
	require.Equal(http.StatusConflict, w.Code)
	require.Equal("ENTRY_IMMUTABLE", errorOf(t, w).Code)

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/resolved-ad?at=2026-10-21T14:30:00Z", nil)
	require.Equal(http.StatusOK, w.Code)
	res := decode[schedule.Resolution](t, w)
	require.Equal(schedule.KindScheduled, res.Kind)
	require.Equal(ad.ID, res.Ad.ID)

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/resolved-ad?at=tomorrow", nil)
	require.Equal(http.StatusBadRequest, w.Code)
}

func TestScheduleEntryConflict(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	body := map[string]any{
		"advertiserId": "adv-1",
		"dayOfWeek":    3,
		"startTime":    "09:00",
		"endTime":      "12:00",
		"priority":     5,
	}
	w := f.do(t, admin, http.MethodPost, "/api/v1/admin/schedule-entries", body)
	require.Equal(http.StatusCreated, w.Code, w.Body.String())
	first := decode[schedule.Entry](t, w)

	body["advertiserId"] = "adv-2"
	body["startTime"] = "11:00"
	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/schedule-entries", body)
	require.Equal(http.StatusConflict, w.Code)
	conflict := decode[struct {
		Error    api.ErrorInfo  `json:"error"`
		Conflict schedule.Entry `json:"conflict"`
	}](t, w)
	require.Equal("SCHEDULE_CONFLICT", conflict.Error.Code)
	require.Equal(first.ID, conflict.Conflict.ID)

	body["priority"] = 1000
	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/schedule-entries", body)
	require.Equal(http.StatusBadRequest, w.Code)

	w = f.do(t, admin, http.MethodDelete, "/api/v1/admin/schedule-entries/"+first.ID, nil)
	require.Equal(http.StatusNoContent, w.Code)
	w = f.do(t, admin, http.MethodDelete, "/api/v1/admin/schedule-entries/"+first.ID, nil)
	require.Equal(http.StatusNotFound, w.Code)
}

func TestViewsAndRaffle(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	f.clock.Set(epoch.Add(10 * time.Minute))
	view := map[string]any{"adId": "house-1", "sprintId": f.sprintID, "durationSeconds": 20}

	w := f.do(t, viewer, http.MethodPost, "/api/v1/views", view, api.HeaderIdempotencyKey, "attempt-1")
	require.Equal(http.StatusCreated, w.Code, w.Body.String())
	receipt := decode[ledger.Receipt](t, w)
	require.Equal(int64(1), receipt.TicketsEarned)
	require.Equal(int64(1), receipt.Balance)

	w = f.do(t, viewer, http.MethodPost, "/api/v1/views", view, api.HeaderIdempotencyKey, "attempt-1")
	require.Equal(http.StatusConflict, w.Code)
	require.Equal("DUPLICATE_VIEW", errorOf(t, w).Code)

	view["durationSeconds"] = 5
	w = f.do(t, viewer, http.MethodPost, "/api/v1/views", view, api.HeaderIdempotencyKey, "attempt-2")
	require.Equal(http.StatusUnprocessableEntity, w.Code)
	info := errorOf(t, w)
	require.Equal("VIEW_TOO_SHORT", info.Code)
	require.True(info.Informational)
	require.NotNil(info.View)
	require.False(info.View.TicketEligible)

	w = f.do(t, viewer, http.MethodGet, "/api/v1/me/account", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Equal(int64(1), decode[ledger.Account](t, w).Tickets)

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/sprints/"+f.sprintID+"/status", nil)
	require.Equal(http.StatusOK, w.Code)
	report := decode[sprint.Report](t, w)
	require.Equal(sprint.StatusActive, report.Status)
	require.True(report.CanWatchAds)
	require.Equal(50*time.Minute, report.TimeRemaining.UntilEnd)

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/sprints/current", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Equal(f.sprintID, decode[sprint.Report](t, w).Sprint.ID)

	raffle := map[string]any{
		"sprintId": f.sprintID,
		"winners":  []string{"u1"},
		"prizes":   []map[string]string{{"userId": "u1", "name": "Headphones"}},
		"drawnAt":  epoch.Add(time.Hour),
	}
	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/raffles", raffle)
	require.Equal(http.StatusConflict, w.Code)
	require.Equal("SPRINT_NOT_ENDED", errorOf(t, w).Code)

	f.clock.Set(epoch.Add(2 * time.Hour))
	w = f.do(t, viewer, http.MethodPost, "/api/v1/views", view, api.HeaderIdempotencyKey, "attempt-3")
	require.Equal(http.StatusUnprocessableEntity, w.Code)
	require.Equal("SPRINT_NOT_ACTIVE", errorOf(t, w).Code)

	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/raffles", raffle)
	require.Equal(http.StatusCreated, w.Code, w.Body.String())
	out := decode[ledger.RaffleOutcome](t, w)
	require.True(out.Created)
	require.True(epoch.Add(75 * time.Minute).Equal(out.Result.AnnouncedAt))

	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/raffles", raffle)
	require.Equal(http.StatusOK, w.Code)

	w = f.do(t, viewer, http.MethodGet, "/api/v1/me/account", nil)
	require.True(decode[ledger.Account](t, w).Multiplier.Equal(decimal.RequireFromString("0.25")))

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/sprints/"+f.sprintID+"/result", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Equal(out.Result.NotaryHash, decode[ledger.RaffleResult](t, w).NotaryHash)
}

func TestPlanSprints(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	w := f.do(t, admin, http.MethodPost, "/api/v1/admin/sprints/plan", map[string]any{
		"dayOfWeek": 5, "startTime": "20:00", "durationMinutes": 60, "category": "gaming", "weeks": 2,
	})
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	created := decode[struct {
		Created []sprint.Sprint `json:"created"`
	}](t, w).Created
	require.Len(created, 2)

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/sprints/next", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Equal(created[0].ID, decode[sprint.Report](t, w).Sprint.ID)

	w = f.do(t, admin, http.MethodPost, "/api/v1/admin/sprints/plan", map[string]any{"dayOfWeek": 5, "startTime": "23:30", "durationMinutes": 60, "weeks": 1})
	require.Equal(http.StatusBadRequest, w.Code)

	w = f.do(t, anonymous, http.MethodGet, "/api/v1/sprints/missing/status", nil)
	require.Equal(http.StatusNotFound, w.Code)
}

func TestClockStream(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, api.WithClockInterval(10*time.Millisecond))
	f.clock.Set(epoch.Add(10 * time.Minute))

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/clock?sprintId=" + f.sprintID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(err)
	defer resp.Body.Close()
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var frame api.ClockFrame
		require.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
		require.NoError(conn.ReadJSON(&frame))
		require.True(epoch.Add(10 * time.Minute).Equal(frame.ServerTime))
		require.NotNil(frame.Sprint)
		require.Equal(sprint.StatusActive, frame.Sprint.Status)
		require.Equal(50*time.Minute, frame.Sprint.TimeRemaining.UntilEnd)
	}

	w := f.do(t, anonymous, http.MethodGet, "/api/v1/ws/clock?sprintId=missing", nil)
	require.Equal(http.StatusNotFound, w.Code)

	// Closing the server ends the stream with a going-away frame.
	f.server.Close()
	f.server.Close()
	require.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		var frame api.ClockFrame
		if err = conn.ReadJSON(&frame); err != nil {
			break
		}
	}
	require.True(websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error %v", err)
}
