// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/luxfi/adsprint/pkg/auction"
)

// Slots is an auction.Repository.
type Slots struct {
	db *gorm.DB
}

func (s *Slots) CreateSlots(ctx context.Context, slots []auction.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	recs := make([]SlotRecord, len(slots))
	for i := range slots {
		recs[i] = slotRecord(&slots[i])
	}
	res := s.db.WithContext(ctx).Clauses(doNothing).Create(&recs)
	return int(res.RowsAffected), res.Error
}

func (s *Slots) GetSlot(ctx context.Context, id string) (*auction.Slot, error) {
	return getSlot(s.db.WithContext(ctx), id)
}

func getSlot(db *gorm.DB, id string) (*auction.Slot, error) {
	var rec SlotRecord
	err := db.First(&rec, "id = ?", id).Error
	if notFound(err) {
		return nil, auction.ErrSlotNotFound.With("slot %s", id)
	}
	if err != nil {
		return nil, err
	}
	slot := rec.slot()
	return &slot, nil
}

func (s *Slots) ListSlots(ctx context.Context, from, to time.Time) ([]auction.Slot, error) {
	var recs []SlotRecord
	err := s.db.WithContext(ctx).
		Where("start_at >= ? AND start_at < ?", from.UTC(), to.UTC()).
		Order("start_at, id").
		Find(&recs).Error
	return slotsOf(recs), err
}

func (s *Slots) ListBids(ctx context.Context, slotID string) ([]auction.Bid, error) {
	return listBids(s.db.WithContext(ctx), slotID)
}

func listBids(db *gorm.DB, slotID string) ([]auction.Bid, error) {
	var recs []BidRecord
	if err := db.Where("slot_id = ?", slotID).Order("seq").Find(&recs).Error; err != nil {
		return nil, err
	}
	bids := make([]auction.Bid, len(recs))
	for i := range recs {
		bids[i] = recs[i].bid()
	}
	return bids, nil
}

func (s *Slots) DueSlots(ctx context.Context, cutoff time.Time) ([]auction.Slot, error) {
	var recs []SlotRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_at <= ?", string(auction.StatusOpen), cutoff.UTC()).
		Order("start_at, id").
		Find(&recs).Error
	return slotsOf(recs), err
}

// WithSlot locks the slot row for the transaction.
func (s *Slots) WithSlot(ctx context.Context, id string, fn func(tx auction.SlotTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, err := getSlot(tx.Clauses(forUpdate), id)
		if err != nil {
			return err
		}
		return fn(&slotTx{tx: tx, slot: slot})
	})
}

type slotTx struct {
	tx   *gorm.DB
	slot *auction.Slot
}

func (t *slotTx) Slot() *auction.Slot { return t.slot }

func (t *slotTx) Bids() ([]auction.Bid, error) { return listBids(t.tx, t.slot.ID) }

func (t *slotTx) AppendBid(b *auction.Bid) error {
	rec := bidRecord(b)
	return t.tx.Create(&rec).Error
}

func (t *slotTx) SaveSlot(s *auction.Slot) error {
	rec := slotRecord(s)
	return t.tx.Save(&rec).Error
}

func slotsOf(recs []SlotRecord) []auction.Slot {
	out := make([]auction.Slot, len(recs))
	for i := range recs {
		out[i] = recs[i].slot()
	}
	return out
}
