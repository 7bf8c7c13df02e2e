// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/ids"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/metric"
)

// Repository stores slots and their bids. WithSlot must serialize all
// callers on the same slot id.
type Repository interface {
	// CreateSlots inserts the slots whose ids do not exist yet and returns
	// how many were created.
	CreateSlots(ctx context.Context, slots []Slot) (int, error)
	GetSlot(ctx context.Context, id string) (*Slot, error)
	// ListSlots returns slots starting in [from, to), ordered by start.
	ListSlots(ctx context.Context, from, to time.Time) ([]Slot, error)
	// ListBids returns a slot's bids in placement order.
	ListBids(ctx context.Context, slotID string) ([]Bid, error)
	// DueSlots returns unsettled slots starting at or before cutoff.
	DueSlots(ctx context.Context, cutoff time.Time) ([]Slot, error)
	// WithSlot runs fn holding the slot's lock. Writes through tx commit
	// only if fn returns nil.
	WithSlot(ctx context.Context, id string, fn func(tx SlotTx) error) error
}

// SlotTx is the view of one locked slot.
type SlotTx interface {
	Slot() *Slot
	Bids() ([]Bid, error)
	AppendBid(b *Bid) error
	SaveSlot(s *Slot) error
}

// Award is a won slot, handed to the schedule allocator.
type Award struct {
	SlotID          string          `json:"slotId"`
	BidID           string          `json:"bidId"`
	AdvertiserID    string          `json:"advertiserId"`
	Date            time.Time       `json:"date"`
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	ImpressionPrice decimal.Decimal `json:"impressionPrice"`
}

// AwardSink materializes awards. ApplyAward must be idempotent per slot.
type AwardSink interface {
	ApplyAward(ctx context.Context, a Award) error
}

// BidRequest is an advertiser's offer.
type BidRequest struct {
	SlotID               string          `json:"slotId"`
	AdvertiserID         string          `json:"advertiserId"`
	BasePriceOffer       decimal.Decimal `json:"basePriceOffer"`
	ImpressionPriceOffer decimal.Decimal `json:"impressionPriceOffer"`
}

func (r BidRequest) validate() error {
	switch {
	case r.SlotID == "":
		return ErrInvalidBid.With("slot id is required")
	case r.AdvertiserID == "":
		return ErrInvalidBid.With("advertiser id is required")
	case !r.BasePriceOffer.IsPositive():
		return ErrInvalidBid.With("base price offer must be positive")
	case !r.ImpressionPriceOffer.IsPositive():
		return ErrInvalidBid.With("impression price offer must be positive")
	}
	return nil
}

// SlotView is a slot as listed to advertisers.
type SlotView struct {
	Slot
	Status   Status    `json:"status"`
	ClosesAt time.Time `json:"closesAt"`
	Highest  *Bid      `json:"currentHighestBid,omitempty"`
	BidCount int       `json:"bidCount"`
}

// Settlement is the outcome of AwardSlot.
type Settlement struct {
	Slot           Slot   `json:"slot"`
	Award          *Award `json:"award,omitempty"`
	AlreadySettled bool   `json:"alreadySettled"`
}

// Engine runs slot auctions.
type Engine struct {
	cfg         Config
	repo        Repository
	sink        AwardSink
	advertisers ads.Catalog
	clock       clock.Clock
	seq         *ids.Sequencer
	log         log.Logger
	metrics     *metric.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c clock.Clock) Option        { return func(e *Engine) { e.clock = c } }
func WithLogger(l log.Logger) Option        { return func(e *Engine) { e.log = l } }
func WithMetrics(m *metric.Metrics) Option  { return func(e *Engine) { e.metrics = m } }
func WithSequencer(s *ids.Sequencer) Option { return func(e *Engine) { e.seq = s } }
func WithAdvertisers(c ads.Catalog) Option  { return func(e *Engine) { e.advertisers = c } }

// NewEngine creates an auction engine feeding awards into sink.
func NewEngine(cfg Config, repo Repository, sink AwardSink, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg.withDefaults(),
		repo:  repo,
		sink:  sink,
		clock: clock.Real,
		log:   log.NoOp(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seq == nil {
		e.seq = ids.MustSequencer(0)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// PlaceBid appends a bid if it beats the current highest bid on an open slot.
func (e *Engine) PlaceBid(ctx context.Context, req BidRequest) (*Bid, error) {
	started := time.Now()
	bid, err := e.placeBid(ctx, req)
	if err != nil {
		e.metrics.BidRejected(errs.CodeOf(err))
		if errs.Expected(err) {
			e.log.Debug("bid rejected",
				zap.String("slot", req.SlotID),
				zap.String("advertiser", req.AdvertiserID),
				zap.String("reason", errs.CodeOf(err)),
			)
		} else {
			e.log.Error("bid failed", zap.String("slot", req.SlotID), zap.Error(err))
		}
		return nil, err
	}
	e.metrics.BidAccepted(started)
	e.log.Info("bid accepted",
		zap.String("slot", bid.SlotID),
		zap.String("advertiser", bid.AdvertiserID),
		zap.String("bid", bid.ID),
		zap.String("basePriceOffer", bid.BasePriceOffer.String()),
	)
	return bid, nil
}

func (e *Engine) placeBid(ctx context.Context, req BidRequest) (*Bid, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if e.advertisers != nil {
		adv, err := e.advertisers.GetAdvertiser(ctx, req.AdvertiserID)
		if err != nil {
			return nil, err
		}
		if !adv.Active {
			return nil, ErrAdvertiserInactive.With("advertiser %s", adv.ID)
		}
	}

	var placed *Bid
	err := e.repo.WithSlot(ctx, req.SlotID, func(tx SlotTx) error {
		slot := tx.Slot()
		now := e.clock.Now()

		if st := slot.StatusAt(now, e.cfg.ClosingWindow); st != StatusOpen {
			return ErrSlotClosed.With("slot %s closed at %s", slot.ID, slot.ClosesAt(e.cfg.ClosingWindow).Format(time.RFC3339))
		}
		if req.BasePriceOffer.LessThan(slot.BasePrice) {
			return ErrBidTooLow.With("base price offer %s is below %s", req.BasePriceOffer, slot.BasePrice)
		}
		if req.ImpressionPriceOffer.LessThan(slot.MinImpressionPrice) {
			return ErrBidTooLow.With("impression price offer %s is below %s", req.ImpressionPriceOffer, slot.MinImpressionPrice)
		}

		bids, err := tx.Bids()
		if err != nil {
			return err
		}
		if h := Highest(bids); h != nil && !req.BasePriceOffer.GreaterThan(h.BasePriceOffer) {
			return ErrBidNotCompetitive.With("offer %s must exceed %s", req.BasePriceOffer, h.BasePriceOffer)
		}

		seq := e.seq.NextInt()
		placed = &Bid{
			ID:                   strconv.FormatInt(seq, 10),
			Seq:                  seq,
			SlotID:               slot.ID,
			AdvertiserID:         req.AdvertiserID,
			BasePriceOffer:       req.BasePriceOffer,
			ImpressionPriceOffer: req.ImpressionPriceOffer,
			PlacedAt:             now,
		}
		return tx.AppendBid(placed)
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// Highest returns the slot's current highest bid, or nil.
func (e *Engine) Highest(ctx context.Context, slotID string) (*Bid, error) {
	bids, err := e.repo.ListBids(ctx, slotID)
	if err != nil {
		return nil, err
	}
	return Highest(bids), nil
}

// Bids returns the full bid history of a slot.
func (e *Engine) Bids(ctx context.Context, slotID string) ([]Bid, error) {
	if _, err := e.repo.GetSlot(ctx, slotID); err != nil {
		return nil, err
	}
	return e.repo.ListBids(ctx, slotID)
}

// Availability lists slots starting in [from, to) with their derived status.
func (e *Engine) Availability(ctx context.Context, from, to time.Time) ([]SlotView, error) {
	if !from.Before(to) {
		return nil, errs.ErrInvalidInput.With("empty date range")
	}
	slots, err := e.repo.ListSlots(ctx, from, to)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	views := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		bids, err := e.repo.ListBids(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, SlotView{
			Slot:     s,
			Status:   s.StatusAt(now, e.cfg.ClosingWindow),
			ClosesAt: s.ClosesAt(e.cfg.ClosingWindow),
			Highest:  Highest(bids),
			BidCount: len(bids),
		})
	}
	return views, nil
}

// AwardSlot settles a slot that reached its closing boundary. The highest
// bidder gets a schedule entry through the sink. A slot without bids is
// settled as CLOSED. Settled slots are left untouched.
func (e *Engine) AwardSlot(ctx context.Context, slotID string) (*Settlement, error) {
	var (
		award   *Award
		settled *Settlement
	)

	// Decide under the lock. After the closing boundary no bid can be added,
	// so the winner computed here cannot change.
	err := e.repo.WithSlot(ctx, slotID, func(tx SlotTx) error {
		slot := tx.Slot()
		if slot.Settled() {
			settled = &Settlement{Slot: *slot, AlreadySettled: true}
			return nil
		}
		now := e.clock.Now()
		if now.Before(slot.ClosesAt(e.cfg.ClosingWindow)) {
			return ErrSlotStillOpen.With("slot %s closes at %s", slot.ID, slot.ClosesAt(e.cfg.ClosingWindow).Format(time.RFC3339))
		}

		bids, err := tx.Bids()
		if err != nil {
			return err
		}
		h := Highest(bids)
		if h == nil {
			slot.Status = StatusClosed
			slot.SettledAt = &now
			settled = &Settlement{Slot: *slot}
			return tx.SaveSlot(slot)
		}
		award = &Award{
			SlotID:          slot.ID,
			BidID:           h.ID,
			AdvertiserID:    h.AdvertiserID,
			Date:            slot.Date,
			Start:           slot.Start,
			End:             slot.End,
			BasePrice:       h.BasePriceOffer,
			ImpressionPrice: h.ImpressionPriceOffer,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settled != nil {
		if !settled.AlreadySettled {
			e.metrics.SlotSettled(false)
			e.log.Info("slot closed unsold", zap.String("slot", slotID))
		}
		return settled, nil
	}

	// The sink runs outside the slot lock and is idempotent per slot, so a
	// concurrent sweep applying the same award creates one entry.
	if err := e.sink.ApplyAward(ctx, *award); err != nil {
		return nil, fmt.Errorf("materialize award for slot %s: %w", slotID, err)
	}

	err = e.repo.WithSlot(ctx, slotID, func(tx SlotTx) error {
		slot := tx.Slot()
		if slot.Settled() {
			settled = &Settlement{Slot: *slot, AlreadySettled: true}
			return nil
		}
		now := e.clock.Now()
		slot.Status = StatusAwarded
		slot.WinningBidID = award.BidID
		slot.SettledAt = &now
		settled = &Settlement{Slot: *slot, Award: award}
		return tx.SaveSlot(slot)
	})
	if err != nil {
		return nil, err
	}
	if !settled.AlreadySettled {
		e.metrics.SlotSettled(true)
		e.log.Info("slot awarded",
			zap.String("slot", slotID),
			zap.String("advertiser", award.AdvertiserID),
			zap.String("bid", award.BidID),
		)
	}
	return settled, nil
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Due     int `json:"due"`
	Awarded int `json:"awarded"`
	Unsold  int `json:"unsold"`
	Failed  int `json:"failed"`
}

// Sweep settles every slot whose closing boundary has passed. Failures are
// reported but do not stop the sweep; the next run retries them.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	started := time.Now()
	defer e.metrics.Swept(started)

	now := e.clock.Now()
	due, err := e.repo.DueSlots(ctx, now.Add(e.cfg.ClosingWindow))
	if err != nil {
		return SweepReport{}, fmt.Errorf("list due slots: %w", err)
	}

	report := SweepReport{Due: len(due)}
	var failures []error
	for _, s := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		st, err := e.AwardSlot(ctx, s.ID)
		switch {
		case err != nil:
			report.Failed++
			failures = append(failures, err)
			e.log.Error("award failed", zap.String("slot", s.ID), zap.Error(err))
		case st.AlreadySettled:
		case st.Award != nil:
			report.Awarded++
		default:
			report.Unsold++
		}
	}
	return report, errors.Join(failures...)
}
