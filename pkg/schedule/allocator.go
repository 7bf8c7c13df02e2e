// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schedule

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/ids"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/metric"
)

// DefaultAuctionPriority is reserved for auction-won entries. Manual entries
// must stay below it.
const DefaultAuctionPriority = 1000

// Filter narrows List.
type Filter struct {
	AdvertiserID string
	Day          *time.Weekday
	Source       Source
}

// Repository stores schedule entries.
type Repository interface {
	// CreateChecked inserts e if check accepts the active entries sharing
	// e's weekday. Check and insert are atomic with respect to other
	// CreateChecked calls.
	CreateChecked(ctx context.Context, e *Entry, check func(sameDay []Entry) error) error
	Get(ctx context.Context, id string) (*Entry, error)
	GetBySlot(ctx context.Context, slotID string) (*Entry, error)
	// ListByDay returns the active entries on day.
	ListByDay(ctx context.Context, day time.Weekday) ([]Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
	Update(ctx context.Context, id string, fn func(*Entry) error) (*Entry, error)
	Delete(ctx context.Context, id string) error
	// DeleteEndedBefore removes entries whose end date is before day.
	DeleteEndedBefore(ctx context.Context, day time.Time) (int, error)
}

// Kind of a resolution.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindFallback  Kind = "fallback"
	KindNone      Kind = "none"
)

// Resolution is what occupies the ad slot at a moment.
type Resolution struct {
	Kind     Kind            `json:"kind"`
	At       time.Time       `json:"at"`
	Ad       *ads.Ad         `json:"ad,omitempty"`
	Entry    *Entry          `json:"entry,omitempty"`
	Fallback *FallbackMarker `json:"fallback,omitempty"`
}

// Config for the allocator.
type Config struct {
	Location        *time.Location
	AuctionPriority int
}

// Allocator resolves which ad plays when, from manual and auction entries.
type Allocator struct {
	cfg      Config
	repo     Repository
	catalog  ads.Catalog
	fallback *HybridFallback
	clock    clock.Clock
	log      log.Logger
	metrics  *metric.Metrics
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithFallback enables the hybrid fallback policy.
func WithFallback(f *HybridFallback) Option { return func(a *Allocator) { a.fallback = f } }

func WithClock(c clock.Clock) Option       { return func(a *Allocator) { a.clock = c } }
func WithLogger(l log.Logger) Option       { return func(a *Allocator) { a.log = l } }
func WithMetrics(m *metric.Metrics) Option { return func(a *Allocator) { a.metrics = m } }

// NewAllocator creates an allocator.
func NewAllocator(cfg Config, repo Repository, catalog ads.Catalog, opts ...Option) *Allocator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AuctionPriority <= 0 {
		cfg.AuctionPriority = DefaultAuctionPriority
	}
	a := &Allocator{
		cfg:     cfg,
		repo:    repo,
		catalog: catalog,
		clock:   clock.Real,
		log:     log.NoOp(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateEntry validates and stores a manual entry. An entry that overlaps
// an existing one at the same priority is rejected with a *ConflictError.
func (a *Allocator) CreateEntry(ctx context.Context, e Entry) (*Entry, error) {
	e.Source = SourceManual
	e.SlotID = ""
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.Priority >= a.cfg.AuctionPriority {
		return nil, ErrInvalidEntry.With("priority must be below %d", a.cfg.AuctionPriority)
	}
	if e.AdID != "" {
		if err := a.checkAdOwner(ctx, e.AdID, e.AdvertiserID); err != nil {
			return nil, err
		}
	}
	e.StartDate = a.dateOnly(e.StartDate)
	e.EndDate = a.dateOnly(e.EndDate)
	e.ID = ids.New()
	e.CreatedAt = a.clock.Now()

	if err := a.repo.CreateChecked(ctx, &e, noTie(&e)); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			a.metrics.EntryConflict()
			a.log.Debug("schedule entry rejected",
				zap.String("advertiser", e.AdvertiserID),
				zap.String("collidesWith", conflict.Existing.ID),
			)
		}
		return nil, err
	}
	a.metrics.EntryCreated(string(SourceManual))
	a.log.Info("schedule entry created", zap.String("entry", e.ID), zap.String("advertiser", e.AdvertiserID))
	return &e, nil
}

func noTie(e *Entry) func([]Entry) error {
	return func(sameDay []Entry) error {
		for i := range sameDay {
			x := &sameDay[i]
			if x.ID != e.ID && x.Priority == e.Priority && e.Overlaps(x) {
				return &ConflictError{Existing: *x}
			}
		}
		return nil
	}
}

// ApplyAward materializes an auction win as an entry at the reserved
// priority, valid for the slot's date only. Applying the same award twice
// is a no-op.
func (a *Allocator) ApplyAward(ctx context.Context, award auction.Award) error {
	existing, err := a.repo.GetBySlot(ctx, award.SlotID)
	switch {
	case err == nil:
		return a.sameAward(existing, award)
	case !errors.Is(err, ErrEntryNotFound):
		return err
	}

	start := award.Start.In(a.cfg.Location)
	end := award.End.In(a.cfg.Location)
	endTOD := calendar.Of(end)
	if !calendar.SameDay(start, end) {
		endTOD = calendar.MinutesPerDay
	}
	date := calendar.StartOfDay(start)

	e := Entry{
		ID:            ids.New(),
		AdvertiserID:  award.AdvertiserID,
		DayOfWeek:     start.Weekday(),
		Start:         calendar.Of(start),
		End:           endTOD,
		StartDate:     date,
		EndDate:       date,
		Priority:      a.cfg.AuctionPriority,
		Active:        true,
		AllowFallback: true,
		Source:        SourceAuction,
		SlotID:        award.SlotID,
		CreatedAt:     a.clock.Now(),
	}
	if err := e.Validate(); err != nil {
		return err
	}

	err = a.repo.CreateChecked(ctx, &e, func(sameDay []Entry) error {
		for i := range sameDay {
			x := &sameDay[i]
			if x.SlotID == award.SlotID {
				return errAlreadyApplied{entry: *x}
			}
			if x.Priority == e.Priority && e.Overlaps(x) {
				a.metrics.Invariant("schedule")
				return ErrAwardMismatch.With("slot %s overlaps auction entry %s", award.SlotID, x.String())
			}
		}
		return nil
	})
	var applied errAlreadyApplied
	if errors.As(err, &applied) {
		return a.sameAward(&applied.entry, award)
	}
	if err != nil {
		if errs.KindOf(err) == errs.Invariant {
			a.log.Error("award rejected", zap.String("slot", award.SlotID), zap.Error(err))
		}
		return err
	}
	a.metrics.EntryCreated(string(SourceAuction))
	a.log.Info("auction entry created",
		zap.String("entry", e.ID),
		zap.String("slot", award.SlotID),
		zap.String("advertiser", award.AdvertiserID),
	)
	return nil
}

type errAlreadyApplied struct{ entry Entry }

func (errAlreadyApplied) Error() string { return "award already applied" }

func (a *Allocator) sameAward(existing *Entry, award auction.Award) error {
	if existing.AdvertiserID != award.AdvertiserID {
		a.metrics.Invariant("schedule")
		err := ErrAwardMismatch.With("slot %s: entry %s belongs to %s, award to %s",
			award.SlotID, existing.ID, existing.AdvertiserID, award.AdvertiserID)
		a.log.Error("double award", zap.Error(err))
		return err
	}
	return nil
}

// AttachAd fills an entry's empty ad with a creative of its advertiser.
func (a *Allocator) AttachAd(ctx context.Context, entryID, advertiserID, adID string) (*Entry, error) {
	if adID == "" {
		return nil, ErrInvalidEntry.With("ad id is required")
	}
	if err := a.checkAdOwner(ctx, adID, advertiserID); err != nil {
		return nil, err
	}
	return a.repo.Update(ctx, entryID, func(e *Entry) error {
		if e.AdvertiserID != advertiserID {
			return ErrEntryNotOwned.With("entry %s", e.ID)
		}
		if e.AdID != "" {
			return ErrEntryImmutable.With("entry %s already has ad %s", e.ID, e.AdID)
		}
		e.AdID = adID
		return nil
	})
}

// DeleteEntry removes a manual entry.
func (a *Allocator) DeleteEntry(ctx context.Context, id string) error {
	e, err := a.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Source == SourceAuction {
		return ErrEntryImmutable.With("entry %s was won at auction for slot %s", e.ID, e.SlotID)
	}
	if err := a.repo.Delete(ctx, id); err != nil {
		return err
	}
	a.log.Info("schedule entry deleted", zap.String("entry", id))
	return nil
}

// Expire removes entries whose validity ended before today.
func (a *Allocator) Expire(ctx context.Context) (int, error) {
	today := calendar.StartOfDay(a.clock.Now().In(a.cfg.Location))
	n, err := a.repo.DeleteEndedBefore(ctx, today)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.Info("schedule entries expired", zap.Int("count", n))
	}
	return n, nil
}

// Entries lists entries.
func (a *Allocator) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	return a.repo.List(ctx, f)
}

// Resolve returns what plays at now. It has no side effects.
func (a *Allocator) Resolve(ctx context.Context, now time.Time) (*Resolution, error) {
	now = now.In(a.cfg.Location)
	entries, err := a.repo.ListByDay(ctx, now.Weekday())
	if err != nil {
		return nil, err
	}

	entry, err := Select(entries, now)
	if err != nil {
		a.metrics.Invariant("schedule")
		a.log.Error("ambiguous schedule", zap.Time("at", now), zap.Error(err))
		return nil, err
	}

	res, err := a.resolveEntry(ctx, entry, now)
	if err != nil {
		return nil, err
	}
	a.metrics.Resolved(string(res.Kind))
	return res, nil
}

func (a *Allocator) resolveEntry(ctx context.Context, entry *Entry, now time.Time) (*Resolution, error) {
	if entry == nil {
		return a.fallbackFor(ctx, nil, now)
	}
	if entry.AdID != "" {
		ad, err := a.catalog.GetAd(ctx, entry.AdID)
		if err != nil && !errors.Is(err, ads.ErrAdNotFound) {
			return nil, err
		}
		if ad.Servable() {
			return &Resolution{Kind: KindScheduled, At: now, Ad: ad, Entry: entry}, nil
		}
	}
	if entry.AllowFallback {
		return a.fallbackFor(ctx, entry, now)
	}
	return &Resolution{Kind: KindNone, At: now, Entry: entry}, nil
}

func (a *Allocator) fallbackFor(ctx context.Context, entry *Entry, now time.Time) (*Resolution, error) {
	if a.fallback == nil {
		return &Resolution{Kind: KindNone, At: now, Entry: entry}, nil
	}
	marker, ad, err := a.fallback.Choose(ctx, now)
	if err != nil {
		return nil, err
	}
	return &Resolution{Kind: KindFallback, At: now, Ad: ad, Entry: entry, Fallback: marker}, nil
}

func (a *Allocator) checkAdOwner(ctx context.Context, adID, advertiserID string) error {
	ad, err := a.catalog.GetAd(ctx, adID)
	if err != nil {
		return err
	}
	if ad.AdvertiserID != advertiserID {
		return ErrAdNotOwned.With("ad %s", adID)
	}
	return nil
}

func (a *Allocator) dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return calendar.StartOfDay(t.In(a.cfg.Location))
}
