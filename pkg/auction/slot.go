// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adsprint/pkg/calendar"
)

// Status of a time slot.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusClosed  Status = "CLOSED"
	StatusAwarded Status = "AWARDED"
)

// Slot is an auctionable calendar window. The stored Status is a cache:
// OPEN until the sweep settles the slot into AWARDED, or into CLOSED when
// nobody bid. Readers must use StatusAt.
type Slot struct {
	ID                 string          `json:"id"`
	Date               time.Time       `json:"date"`
	Start              time.Time       `json:"start"`
	End                time.Time       `json:"end"`
	PrimeTime          bool            `json:"isPrimeTime"`
	BasePrice          decimal.Decimal `json:"basePrice"`
	MinImpressionPrice decimal.Decimal `json:"minImpressionPrice"`
	Status             Status          `json:"status"`
	WinningBidID       string          `json:"winningBidId,omitempty"`
	SettledAt          *time.Time      `json:"settledAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// ClosesAt is the instant bidding stops.
func (s *Slot) ClosesAt(window time.Duration) time.Time {
	return s.Start.Add(-window)
}

// StatusAt derives the slot status at now. Bid history plays no part.
func (s *Slot) StatusAt(now time.Time, window time.Duration) Status {
	if s.Status == StatusAwarded {
		return StatusAwarded
	}
	if !now.Before(s.ClosesAt(window)) || s.Status == StatusClosed {
		return StatusClosed
	}
	return StatusOpen
}

// Settled reports whether the sweep has finished with the slot.
func (s *Slot) Settled() bool {
	return s.Status == StatusAwarded || s.Status == StatusClosed
}

// TimeRange is the slot's same-day window.
func (s *Slot) TimeRange() calendar.Range {
	end := calendar.Of(s.End)
	if !calendar.SameDay(s.Start, s.End) {
		end = calendar.MinutesPerDay
	}
	return calendar.Range{Start: calendar.Of(s.Start), End: end}
}

// Bid is an append-only offer on a slot.
type Bid struct {
	ID                   string          `json:"id"`
	Seq                  int64           `json:"-"`
	SlotID               string          `json:"slotId"`
	AdvertiserID         string          `json:"advertiserId"`
	BasePriceOffer       decimal.Decimal `json:"basePriceOffer"`
	ImpressionPriceOffer decimal.Decimal `json:"impressionPriceOffer"`
	PlacedAt             time.Time       `json:"placedAt"`
}

// Highest returns the current highest bid: among each advertiser's latest
// bid, the greatest base price offer, earliest placement first on ties.
func Highest(bids []Bid) *Bid {
	latest := make(map[string]Bid, len(bids))
	for _, b := range bids {
		cur, ok := latest[b.AdvertiserID]
		if !ok || later(b, cur) {
			latest[b.AdvertiserID] = b
		}
	}

	var best *Bid
	for _, b := range latest {
		b := b
		if best == nil || dominates(b, *best) {
			best = &b
		}
	}
	return best
}

func later(a, b Bid) bool {
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.After(b.PlacedAt)
	}
	return a.Seq > b.Seq
}

// dominates reports whether a ranks above b.
func dominates(a, b Bid) bool {
	if c := a.BasePriceOffer.Cmp(b.BasePriceOffer); c != 0 {
		return c > 0
	}
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.Seq < b.Seq
}

// SortBids orders bids by placement.
func SortBids(bids []Bid) {
	sort.SliceStable(bids, func(i, j int) bool { return later(bids[j], bids[i]) })
}
