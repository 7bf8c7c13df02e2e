// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/luxfi/adsprint/pkg/schedule"
)

// Schedule is a schedule.Repository.
type Schedule struct {
	db *gorm.DB
}

// CreateChecked locks the weekday's row in schedule_day_locks so checks
// for the same weekday run one at a time.
func (s *Schedule) CreateChecked(ctx context.Context, e *schedule.Entry, check func([]schedule.Entry) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := dayLockRecord{Day: int(e.DayOfWeek)}
		if err := tx.Clauses(doNothing).Create(&lock).Error; err != nil {
			return err
		}
		if err := tx.Clauses(forUpdate).First(&lock, "day = ?", lock.Day).Error; err != nil {
			return err
		}

		sameDay, err := listByDay(tx, e.DayOfWeek)
		if err != nil {
			return err
		}
		if err := check(sameDay); err != nil {
			return err
		}
		rec := entryRecord(e)
		err = tx.Create(&rec).Error
		if duplicate(err) {
			return schedule.ErrScheduleConflict.With("slot %s already has an entry", e.SlotID)
		}
		return err
	})
}

func (s *Schedule) Get(ctx context.Context, id string) (*schedule.Entry, error) {
	return getEntry(s.db.WithContext(ctx), "id = ?", id)
}

func (s *Schedule) GetBySlot(ctx context.Context, slotID string) (*schedule.Entry, error) {
	return getEntry(s.db.WithContext(ctx), "slot_id = ?", slotID)
}

func getEntry(db *gorm.DB, query string, arg string) (*schedule.Entry, error) {
	var rec EntryRecord
	err := db.First(&rec, query, arg).Error
	if notFound(err) {
		return nil, schedule.ErrEntryNotFound.With("%s", arg)
	}
	if err != nil {
		return nil, err
	}
	e := rec.entry()
	return &e, nil
}

func (s *Schedule) ListByDay(ctx context.Context, day time.Weekday) ([]schedule.Entry, error) {
	return listByDay(s.db.WithContext(ctx), day)
}

func listByDay(db *gorm.DB, day time.Weekday) ([]schedule.Entry, error) {
	var recs []EntryRecord
	err := db.Where("active = ? AND day_of_week = ?", true, int(day)).
		Order("start_minute, id").
		Find(&recs).Error
	return entriesOf(recs), err
}

func (s *Schedule) List(ctx context.Context, f schedule.Filter) ([]schedule.Entry, error) {
	q := s.db.WithContext(ctx)
	if f.AdvertiserID != "" {
		q = q.Where("advertiser_id = ?", f.AdvertiserID)
	}
	if f.Day != nil {
		q = q.Where("day_of_week = ?", int(*f.Day))
	}
	if f.Source != "" {
		q = q.Where("source = ?", string(f.Source))
	}
	var recs []EntryRecord
	err := q.Order("day_of_week, start_minute, id").Find(&recs).Error
	return entriesOf(recs), err
}

func (s *Schedule) Update(ctx context.Context, id string, fn func(*schedule.Entry) error) (*schedule.Entry, error) {
	var updated *schedule.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := getEntry(tx.Clauses(forUpdate), "id = ?", id)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		rec := entryRecord(e)
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		updated = e
		return nil
	})
	return updated, err
}

func (s *Schedule) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&EntryRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return schedule.ErrEntryNotFound.With("entry %s", id)
	}
	return nil
}

func (s *Schedule) DeleteEndedBefore(ctx context.Context, day time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("end_date IS NOT NULL AND end_date < ?", day.UTC()).
		Delete(&EntryRecord{})
	return int(res.RowsAffected), res.Error
}

func entriesOf(recs []EntryRecord) []schedule.Entry {
	out := make([]schedule.Entry, len(recs))
	for i := range recs {
		out[i] = recs[i].entry()
	}
	return out
}
