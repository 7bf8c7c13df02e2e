// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/ads"
	"github.com/luxfi/adsprint/pkg/clock"
	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/ids"
	"github.com/luxfi/adsprint/pkg/log"
	"github.com/luxfi/adsprint/pkg/metric"
	"github.com/luxfi/adsprint/pkg/sprint"
)

// Config holds the reward rules.
type Config struct {
	MinViewDuration    time.Duration
	BaseTicketsPerView int64
	DefaultMultiplier  decimal.Decimal
	WinnerMultiplier   decimal.Decimal
	LoserIncrease      decimal.Decimal
	// MaxViewsPerSprint caps accepted views per user and sprint. Zero
	// disables the cap.
	MaxViewsPerSprint int
}

// DefaultConfig returns the standard rules: 15s minimum view, one ticket
// per view times the multiplier, winners reset to 0.25, others gain 0.1.
func DefaultConfig() Config {
	return Config{
		MinViewDuration:    15 * time.Second,
		BaseTicketsPerView: 1,
		DefaultMultiplier:  decimal.NewFromInt(1),
		WinnerMultiplier:   decimal.RequireFromString("0.25"),
		LoserIncrease:      decimal.RequireFromString("0.1"),
		MaxViewsPerSprint:  100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinViewDuration <= 0 {
		c.MinViewDuration = d.MinViewDuration
	}
	if c.BaseTicketsPerView <= 0 {
		c.BaseTicketsPerView = d.BaseTicketsPerView
	}
	if !c.DefaultMultiplier.IsPositive() {
		c.DefaultMultiplier = d.DefaultMultiplier
	}
	if !c.WinnerMultiplier.IsPositive() {
		c.WinnerMultiplier = d.WinnerMultiplier
	}
	if !c.LoserIncrease.IsPositive() {
		c.LoserIncrease = d.LoserIncrease
	}
	if c.MaxViewsPerSprint < 0 {
		c.MaxViewsPerSprint = 0
	}
	return c
}

// TicketsFor is floor(base * multiplier).
func TicketsFor(base int64, multiplier decimal.Decimal) int64 {
	t := decimal.NewFromInt(base).Mul(multiplier).Floor().IntPart()
	if t < 0 {
		return 0
	}
	return t
}

// Ledger issues tickets for views and adjusts multipliers after raffles.
type Ledger struct {
	cfg      Config
	repo     Repository
	catalog  ads.Store
	sprints  Sprints
	dedupe   Deduplicator
	notifier Notifier
	clock    clock.Clock
	seq      *ids.Sequencer
	log      log.Logger
	metrics  *metric.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(c clock.Clock) Option         { return func(l *Ledger) { l.clock = c } }
func WithLogger(lg log.Logger) Option        { return func(l *Ledger) { l.log = lg } }
func WithMetrics(m *metric.Metrics) Option   { return func(l *Ledger) { l.metrics = m } }
func WithSequencer(s *ids.Sequencer) Option  { return func(l *Ledger) { l.seq = s } }
func WithDeduplicator(d Deduplicator) Option { return func(l *Ledger) { l.dedupe = d } }
func WithNotifier(n Notifier) Option         { return func(l *Ledger) { l.notifier = n } }

// New creates a ledger.
func New(cfg Config, repo Repository, catalog ads.Store, sprints Sprints, opts ...Option) *Ledger {
	l := &Ledger{
		cfg:     cfg.withDefaults(),
		repo:    repo,
		catalog: catalog,
		sprints: sprints,
		clock:   clock.Real,
		log:     log.NoOp(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.seq == nil {
		l.seq = ids.MustSequencer(0)
	}
	return l
}

// Config returns the effective rules.
func (l *Ledger) Config() Config { return l.cfg }

func (l *Ledger) seed(userID string) Account {
	return Account{UserID: userID, Multiplier: l.cfg.DefaultMultiplier, UpdatedAt: l.clock.Now()}
}

// Account returns a user's account. Users without one get the defaults.
func (l *Ledger) Account(ctx context.Context, userID string) (*Account, error) {
	a, err := l.repo.GetAccount(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		s := l.seed(userID)
		return &s, nil
	}
	return a, err
}

// Views returns a user's view history in a sprint.
func (l *Ledger) Views(ctx context.Context, userID, sprintID string) ([]View, error) {
	return l.repo.ListViews(ctx, userID, sprintID)
}

// Result returns a sprint's raffle result.
func (l *Ledger) Result(ctx context.Context, sprintID string) (*RaffleResult, error) {
	return l.repo.GetResult(ctx, sprintID)
}

// ViewRequest is a completed viewing attempt.
type ViewRequest struct {
	AttemptID       string `json:"attemptId"`
	UserID          string `json:"userId"`
	AdID            string `json:"adId"`
	SprintID        string `json:"sprintId"`
	DurationSeconds int    `json:"durationSeconds"`
}

func (r ViewRequest) validate() error {
	switch {
	case r.UserID == "":
		return ErrInvalidView.With("user id is required")
	case r.AdID == "":
		return ErrInvalidView.With("ad id is required")
	case r.SprintID == "":
		return ErrInvalidView.With("sprint id is required")
	case r.DurationSeconds < 0:
		return ErrInvalidView.With("duration must not be negative")
	}
	return nil
}

// Receipt is the outcome of an accepted view.
type Receipt struct {
	View          View            `json:"view"`
	TicketsEarned int64           `json:"ticketsEarned"`
	Balance       int64           `json:"balance"`
	Multiplier    decimal.Decimal `json:"multiplier"`
}

// RecordView credits a qualifying view. Views that earn nothing are still
// written for audit and returned as a *RejectedView error.
func (l *Ledger) RecordView(ctx context.Context, req ViewRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if req.AttemptID == "" {
		req.AttemptID = ids.New()
	} else if l.dedupe != nil {
		claimed, err := l.dedupe.Claim(ctx, attemptKey(req))
		if err != nil {
			return nil, fmt.Errorf("claim view attempt: %w", err)
		}
		if !claimed {
			l.metrics.ViewRecorded("duplicate", 0)
			return nil, ErrDuplicateView.With("attempt %s", req.AttemptID)
		}
	}

	receipt, newParticipant, err := l.recordView(ctx, req)
	if err != nil {
		var rejected *RejectedView
		switch {
		case errors.As(err, &rejected):
			l.metrics.ViewRecorded(outcome(rejected.Reason.Code), 0)
			l.log.Debug("view rejected",
				zap.String("user", req.UserID),
				zap.String("sprint", req.SprintID),
				zap.String("reason", rejected.Reason.Code),
			)
		case errors.Is(err, ErrDuplicateView):
			l.metrics.ViewRecorded("duplicate", 0)
		default:
			l.release(ctx, req)
			if !errs.Expected(err) {
				l.log.Error("record view failed", zap.String("user", req.UserID), zap.Error(err))
			}
		}
		return nil, err
	}

	l.metrics.ViewRecorded("accepted", receipt.TicketsEarned)
	if err := l.catalog.RecordImpression(ctx, req.AdID); err != nil {
		l.log.Warn("impression counter not updated", zap.String("ad", req.AdID), zap.Error(err))
	}
	if err := l.sprints.RecordView(ctx, req.SprintID, newParticipant); err != nil {
		l.log.Warn("sprint counters not updated", zap.String("sprint", req.SprintID), zap.Error(err))
	}
	return receipt, nil
}

func (l *Ledger) recordView(ctx context.Context, req ViewRequest) (*Receipt, bool, error) {
	ad, err := l.catalog.GetAd(ctx, req.AdID)
	if err != nil {
		return nil, false, err
	}
	if !ad.Servable() {
		return nil, false, ErrAdNotServable.With("ad %s", ad.ID)
	}

	s, err := l.sprints.Get(ctx, req.SprintID)
	if err != nil {
		return nil, false, err
	}

	var (
		receipt        *Receipt
		rejected       *RejectedView
		newParticipant bool
	)
	err = l.repo.WithAccount(ctx, l.seed(req.UserID), func(tx AccountTx) error {
		acct := tx.Account()
		now := l.clock.Now()
		view := View{
			ID:              l.seq.Next(),
			AttemptID:       req.AttemptID,
			UserID:          req.UserID,
			AdID:            req.AdID,
			SprintID:        req.SprintID,
			DurationSeconds: req.DurationSeconds,
			Multiplier:      acct.Multiplier,
			RecordedAt:      now,
		}

		// The gate is evaluated under the account lock at the instant that
		// stamps the view, so a sprint that ended mid-view earns nothing.
		var reason *errs.Error
		switch {
		case !sprint.CanWatchAds(s, now):
			reason = ErrSprintNotActive
		case time.Duration(req.DurationSeconds)*time.Second < l.cfg.MinViewDuration:
			reason = ErrViewTooShort
		default:
			n, err := tx.CountEligibleViews(req.SprintID)
			if err != nil {
				return err
			}
			if l.cfg.MaxViewsPerSprint > 0 && n >= l.cfg.MaxViewsPerSprint {
				reason = ErrViewCapReached
			}
			newParticipant = n == 0
		}
		if reason != nil {
			view.Rejection = reason.Code
			if err := tx.AppendView(&view); err != nil {
				return err
			}
			rejected = &RejectedView{Reason: reason, View: view}
			return nil
		}

		tickets := TicketsFor(l.cfg.BaseTicketsPerView, acct.Multiplier)
		view.TicketEligible = true
		view.TicketsEarned = tickets
		if err := tx.AppendView(&view); err != nil {
			return err
		}
		acct.Tickets += tickets
		acct.UpdatedAt = now
		if err := tx.SaveAccount(acct); err != nil {
			return err
		}
		receipt = &Receipt{View: view, TicketsEarned: tickets, Balance: acct.Tickets, Multiplier: acct.Multiplier}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if rejected != nil {
		return nil, false, rejected
	}
	return receipt, newParticipant, nil
}

// attemptKey scopes a client attempt id to its user.
func attemptKey(req ViewRequest) string {
	return req.UserID + ":" + req.AttemptID
}

func (l *Ledger) release(ctx context.Context, req ViewRequest) {
	if l.dedupe == nil {
		return
	}
	if err := l.dedupe.Release(ctx, attemptKey(req)); err != nil {
		l.log.Warn("view attempt not released", zap.String("attempt", req.AttemptID), zap.Error(err))
	}
}

func outcome(code string) string {
	switch code {
	case ErrSprintNotActive.Code:
		return "sprint_not_active"
	case ErrViewTooShort.Code:
		return "too_short"
	case ErrViewCapReached.Code:
		return "cap_reached"
	}
	return "rejected"
}

// RaffleInput is a draw result reported by the external draw service.
type RaffleInput struct {
	SprintID string    `json:"sprintId"`
	Winners  []string  `json:"winners"`
	Prizes   []Prize   `json:"prizes"`
	DrawnAt  time.Time `json:"drawnAt"`
}

func (in RaffleInput) validate() error {
	if in.SprintID == "" {
		return ErrInvalidRaffle.With("sprint id is required")
	}
	if in.DrawnAt.IsZero() {
		return ErrInvalidRaffle.With("draw time is required")
	}
	seen := make(map[string]bool, len(in.Winners))
	for _, w := range in.Winners {
		if w == "" || seen[w] {
			return ErrInvalidRaffle.With("winners must be distinct user ids")
		}
		seen[w] = true
	}
	for _, p := range in.Prizes {
		if !seen[p.UserID] {
			return ErrInvalidRaffle.With("prize %q assigned to non-winner %s", p.Name, p.UserID)
		}
	}
	return nil
}

// RaffleOutcome summarizes ApplyRaffleResult.
type RaffleOutcome struct {
	Result   RaffleResult `json:"result"`
	Created  bool         `json:"created"`
	Adjusted int          `json:"adjusted"`
	Skipped  int          `json:"skipped"`
}

// ApplyRaffleResult stores a sprint's raffle result and adjusts every
// participant's multiplier once: winners drop to the winner multiplier,
// everyone else gains the loser increase. Replaying the same result is
// safe; a different result for the same sprint is refused.
func (l *Ledger) ApplyRaffleResult(ctx context.Context, in RaffleInput) (*RaffleOutcome, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ended, err := l.sprints.HasEnded(ctx, in.SprintID)
	if err != nil {
		return nil, err
	}
	if !ended {
		return nil, ErrSprintNotEnded.With("sprint %s", in.SprintID)
	}

	winners := append([]string(nil), in.Winners...)
	sort.Strings(winners)
	result := &RaffleResult{
		SprintID:    in.SprintID,
		Winners:     winners,
		Prizes:      in.Prizes,
		DrawnAt:     in.DrawnAt,
		AnnouncedAt: l.sprints.AnnouncementTime(in.DrawnAt),
		NotaryHash:  NotaryHash(in.SprintID, winners, in.Prizes, in.DrawnAt),
		CreatedAt:   l.clock.Now(),
	}

	stored, created, err := l.repo.CreateResult(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("store raffle result: %w", err)
	}
	if !created && stored.NotaryHash != result.NotaryHash {
		l.metrics.Invariant("ledger")
		err := ErrResultImmutable.With("sprint %s has result %s", in.SprintID, stored.NotaryHash)
		l.log.Error("conflicting raffle result", zap.String("sprint", in.SprintID), zap.Error(err))
		return nil, err
	}
	if created {
		l.metrics.RaffleApplied()
		l.log.Info("raffle result stored",
			zap.String("sprint", stored.SprintID),
			zap.Int("winners", len(stored.Winners)),
			zap.String("notaryHash", stored.NotaryHash),
		)
	}

	out := &RaffleOutcome{Result: *stored, Created: created}
	adjustErr := l.adjustMultipliers(ctx, stored, out)

	// Reminder scheduling never undoes the result or the adjustments.
	if l.notifier != nil {
		a := Announcement{SprintID: stored.SprintID, AnnounceAt: stored.AnnouncedAt, Winners: stored.Winners}
		if err := l.notifier.ScheduleAnnouncement(ctx, a); err != nil {
			l.log.Warn("announcement reminder not scheduled", zap.String("sprint", stored.SprintID), zap.Error(err))
		}
	}
	if adjustErr != nil {
		return out, adjustErr
	}
	return out, nil
}

func (l *Ledger) adjustMultipliers(ctx context.Context, result *RaffleResult, out *RaffleOutcome) error {
	participants, err := l.repo.Participants(ctx, result.SprintID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	users := make(map[string]struct{}, len(participants)+len(result.Winners))
	for _, u := range participants {
		users[u] = struct{}{}
	}
	for _, w := range result.Winners {
		users[w] = struct{}{}
	}
	ordered := make([]string, 0, len(users))
	for u := range users {
		ordered = append(ordered, u)
	}
	sort.Strings(ordered)

	var failures []error
	for _, user := range ordered {
		winner := result.IsWinner(user)
		var applied bool
		err := l.repo.WithAccount(ctx, l.seed(user), func(tx AccountTx) error {
			now := l.clock.Now()
			first, err := tx.MarkAdjusted(result.SprintID, now)
			if err != nil || !first {
				return err
			}
			acct := tx.Account()
			if winner {
				acct.Multiplier = l.cfg.WinnerMultiplier
			} else {
				acct.Multiplier = acct.Multiplier.Add(l.cfg.LoserIncrease)
			}
			acct.UpdatedAt = now
			applied = true
			return tx.SaveAccount(acct)
		})
		switch {
		case err != nil:
			failures = append(failures, fmt.Errorf("adjust %s: %w", user, err))
			l.log.Error("multiplier adjustment failed", zap.String("user", user), zap.Error(err))
		case applied:
			out.Adjusted++
			if winner {
				l.metrics.MultiplierAdjusted("winner")
			} else {
				l.metrics.MultiplierAdjusted("loser")
			}
		default:
			out.Skipped++
			l.metrics.MultiplierAdjusted("replay")
		}
	}
	return errors.Join(failures...)
}
