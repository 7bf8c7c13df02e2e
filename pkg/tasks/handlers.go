// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/ledger"
	"github.com/luxfi/adsprint/pkg/log"
)

// Auctions is the part of the auction engine the jobs drive.
type Auctions interface {
	Sweep(ctx context.Context) (auction.SweepReport, error)
	GenerateSlots(ctx context.Context, days int) (int, error)
}

// Expirer removes schedule entries that are no longer valid.
type Expirer interface {
	Expire(ctx context.Context) (int, error)
}

// Reminder delivers a raffle announcement when it is due.
type Reminder interface {
	Announce(ctx context.Context, a ledger.Announcement) error
}

// LogReminder only logs the announcement. Delivery to users is external.
type LogReminder struct {
	Log log.Logger
}

func (r LogReminder) Announce(_ context.Context, a ledger.Announcement) error {
	r.Log.Info("raffle announcement due",
		zap.String("sprint", a.SprintID),
		zap.Time("announce_at", a.AnnounceAt),
		zap.Strings("winners", a.Winners),
	)
	return nil
}

// Handlers executes the job types.
type Handlers struct {
	auctions    Auctions
	expirer     Expirer
	reminder    Reminder
	horizonDays int
	log         log.Logger
}

func NewHandlers(auctions Auctions, expirer Expirer, reminder Reminder, horizonDays int, logger log.Logger) *Handlers {
	if logger == nil {
		logger = log.NoOp()
	}
	if reminder == nil {
		reminder = LogReminder{Log: logger}
	}
	return &Handlers{
		auctions:    auctions,
		expirer:     expirer,
		reminder:    reminder,
		horizonDays: horizonDays,
		log:         logger.With(zap.String("component", "tasks")),
	}
}

// Register mounts every handler on mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAwardSweep, h.HandleSweep)
	mux.HandleFunc(TypeSlotHorizon, h.HandleHorizon)
	mux.HandleFunc(TypeEntryExpiry, h.HandleExpiry)
	mux.HandleFunc(TypeAnnouncement, h.HandleAnnouncement)
}

// HandleSweep settles every slot past its closing boundary.
func (h *Handlers) HandleSweep(ctx context.Context, t *asynq.Task) error {
	report, err := h.auctions.Sweep(ctx)
	if err != nil {
		h.log.Error("award sweep failed", zap.String("task_type", t.Type()), zap.Error(err))
		return err
	}
	if report.Due > 0 {
		h.log.Info("award sweep finished",
			zap.Int("due", report.Due),
			zap.Int("awarded", report.Awarded),
			zap.Int("unsold", report.Unsold),
			zap.Int("failed", report.Failed),
		)
	}
	return nil
}

// HandleHorizon keeps the rolling slot horizon filled. An empty payload uses
// the configured horizon.
func (h *Handlers) HandleHorizon(ctx context.Context, t *asynq.Task) error {
	days := h.horizonDays
	if len(t.Payload()) > 0 {
		var p HorizonPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("invalid horizon payload: %v: %w", err, asynq.SkipRetry)
		}
		if p.Days > 0 {
			days = p.Days
		}
	}
	n, err := h.auctions.GenerateSlots(ctx, days)
	if err != nil {
		h.log.Error("slot generation failed", zap.Int("days", days), zap.Error(err))
		return err
	}
	if n > 0 {
		h.log.Info("slots generated", zap.Int("created", n), zap.Int("days", days))
	}
	return nil
}

// HandleExpiry deletes entries whose end date has passed.
func (h *Handlers) HandleExpiry(ctx context.Context, _ *asynq.Task) error {
	if _, err := h.expirer.Expire(ctx); err != nil {
		h.log.Error("entry expiry failed", zap.Error(err))
		return err
	}
	return nil
}

// HandleAnnouncement hands a due raffle announcement to the reminder.
func (h *Handlers) HandleAnnouncement(ctx context.Context, t *asynq.Task) error {
	var p AnnouncementPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.log.Error("invalid announcement payload", zap.Error(err))
		return fmt.Errorf("invalid announcement payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.SprintID == "" {
		return fmt.Errorf("announcement without sprint: %w", asynq.SkipRetry)
	}
	return h.reminder.Announce(ctx, p.announcement())
}
