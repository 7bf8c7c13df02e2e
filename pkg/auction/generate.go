// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/adsprint/pkg/calendar"
	"github.com/luxfi/adsprint/pkg/errs"
	"github.com/luxfi/adsprint/pkg/ids"
)

// PlanSlots builds the slots for days calendar days starting at from's date.
// Slots whose bidding would already be closed at now are skipped.
func (c Config) PlanSlots(from time.Time, days int, now time.Time) []Slot {
	c = c.withDefaults()
	hours := append([]int(nil), c.SlotHours...)
	sort.Ints(hours)

	first := calendar.StartOfDay(from.In(c.Location))
	var slots []Slot
	for d := 0; d < days; d++ {
		date := first.AddDate(0, 0, d)
		for _, h := range hours {
			start := time.Date(date.Year(), date.Month(), date.Day(), h, 0, 0, 0, c.Location)
			if !now.Before(start.Add(-c.ClosingWindow)) {
				continue
			}
			base, minImp := c.Pricing(h)
			slots = append(slots, Slot{
				ID:                 ids.SlotID(date, h),
				Date:               date,
				Start:              start,
				End:                start.Add(c.SlotLength),
				PrimeTime:          c.IsPrimeTime(h),
				BasePrice:          base,
				MinImpressionPrice: minImp,
				Status:             StatusOpen,
				CreatedAt:          now,
			})
		}
	}
	return slots
}

// GenerateSlots makes sure slots exist for the rolling horizon of days
// starting today. Existing slots are never modified.
func (e *Engine) GenerateSlots(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, errs.ErrInvalidInput.With("horizon must be at least one day")
	}
	now := e.clock.Now()
	slots := e.cfg.PlanSlots(now, days, now)
	if len(slots) == 0 {
		return 0, nil
	}
	n, err := e.repo.CreateSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("create slots: %w", err)
	}
	e.metrics.SlotsGenerated(n)
	if n > 0 {
		e.log.Info("slots generated", zap.Int("created", n), zap.Int("horizonDays", days))
	}
	return n, nil
}
