// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client is a Go client for the adsprint HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/luxfi/adsprint/pkg/api"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/schedule"
	"github.com/luxfi/adsprint/pkg/sprint"
)

// Error is a failed API call.
type Error struct {
	Status        int
	Code          string
	Message       string
	Informational bool
	View          *ledger.View
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the API as one identity.
type Client struct {
	baseURL    string
	userID     string
	role       api.Role
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// New creates a client for baseURL, e.g. http://localhost:8080.
func New(baseURL, userID string, role api.Role) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		userID:  userID,
		role:    role,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		dialer: websocket.DefaultDialer,
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

// Slots lists slot availability between two dates, both inclusive.
func (c *Client) Slots(ctx context.Context, from, to time.Time) ([]auction.SlotView, error) {
	q := url.Values{}
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	var out struct {
		Slots []auction.SlotView `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/slots?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// PlaceBid bids on a slot as the client's advertiser.
func (c *Client) PlaceBid(ctx context.Context, slotID string, base, impression decimal.Decimal) (*auction.Bid, error) {
	body := map[string]decimal.Decimal{"basePriceOffer": base, "impressionPriceOffer": impression}
	var bid auction.Bid
	if err := c.do(ctx, http.MethodPost, "/api/v1/slots/"+url.PathEscape(slotID)+"/bids", body, &bid); err != nil {
		return nil, err
	}
	return &bid, nil
}

// ResolvedAd asks which ad airs at the given instant.
func (c *Client) ResolvedAd(ctx context.Context, at time.Time) (*schedule.Resolution, error) {
	var res schedule.Resolution
	path := "/api/v1/resolved-ad?at=" + url.QueryEscape(at.UTC().Format(time.RFC3339))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RecordView reports a completed view. attemptID makes retries safe.
func (c *Client) RecordView(ctx context.Context, attemptID, adID, sprintID string, seconds int) (*ledger.Receipt, error) {
	body := map[string]any{"adId": adID, "sprintId": sprintID, "durationSeconds": seconds}
	var r ledger.Receipt
	err := c.do(ctx, http.MethodPost, "/api/v1/views", body, &r, api.HeaderIdempotencyKey, attemptID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) SprintStatus(ctx context.Context, id string) (*sprint.Report, error) {
	return c.report(ctx, "/api/v1/sprints/"+url.PathEscape(id)+"/status")
}

func (c *Client) CurrentSprint(ctx context.Context) (*sprint.Report, error) {
	return c.report(ctx, "/api/v1/sprints/current")
}

func (c *Client) NextSprint(ctx context.Context) (*sprint.Report, error) {
	return c.report(ctx, "/api/v1/sprints/next")
}

func (c *Client) report(ctx context.Context, path string) (*sprint.Report, error) {
	var r sprint.Report
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Account returns the caller's ticket balance and multiplier.
func (c *Client) Account(ctx context.Context) (*ledger.Account, error) {
	var a ledger.Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/me/account", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// StreamClock subscribes to the clock stream and calls fn for every frame
// until ctx is done or fn returns an error.
func (c *Client) StreamClock(ctx context.Context, sprintID string, fn func(api.ClockFrame) error) error {
	conn, err := c.dialClock(ctx, sprintID)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame api.ClockFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}

// SyncClock reads one clock frame and returns a clock following the
// server's time. The offset assumes a symmetric network delay.
func (c *Client) SyncClock(ctx context.Context) (clock.Clock, time.Duration, error) {
	conn, err := c.dialClock(ctx, "")
	if err != nil {
		return nil, 0, err
	}
	defer conn.Close()

	sent := time.Now()
	var frame api.ClockFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, 0, err
	}
	received := time.Now()
	midpoint := sent.Add(received.Sub(sent) / 2)
	offset := frame.ServerTime.Sub(midpoint)
	return clock.Func(func() time.Time { return time.Now().Add(offset) }), offset, nil
}

func (c *Client) dialClock(ctx context.Context, sprintID string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/ws/clock"
	if sprintID != "" {
		wsURL += "?sprintId=" + url.QueryEscape(sprintID)
	}
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, c.headers())
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	if c.userID != "" {
		h.Set(api.HeaderUserID, c.userID)
		h.Set(api.HeaderUserRole, string(c.role))
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers ...string) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header = c.headers()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		if headers[i+1] != "" {
			req.Header.Set(headers[i], headers[i+1])
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var body api.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		return &Error{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: resp.Status}
	}
	return &Error{
		Status:        resp.StatusCode,
		Code:          body.Error.Code,
		Message:       body.Error.Message,
		Informational: body.Error.Informational,
		View:          body.Error.View,
	}
}
