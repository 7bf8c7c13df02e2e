// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/adsprint/pkg/auction"
)

// Slots is an auction.Repository.
type Slots struct {
	mu    sync.RWMutex
	slots map[string]auction.Slot
	bids  map[string][]auction.Bid
}

func NewSlots() *Slots {
	return &Slots{
		slots: make(map[string]auction.Slot),
		bids:  make(map[string][]auction.Bid),
	}
}

func (s *Slots) CreateSlots(_ context.Context, slots []auction.Slot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for _, slot := range slots {
		if _, ok := s.slots[slot.ID]; ok {
			continue
		}
		s.slots[slot.ID] = slot
		created++
	}
	return created, nil
}

func (s *Slots) GetSlot(_ context.Context, id string) (*auction.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, auction.ErrSlotNotFound.With("slot %s", id)
	}
	return &slot, nil
}

func (s *Slots) ListSlots(_ context.Context, from, to time.Time) ([]auction.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []auction.Slot
	for _, slot := range s.slots {
		if !slot.Start.Before(from) && slot.Start.Before(to) {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out, nil
}

func (s *Slots) ListBids(_ context.Context, slotID string) ([]auction.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]auction.Bid(nil), s.bids[slotID]...), nil
}

func (s *Slots) DueSlots(_ context.Context, cutoff time.Time) ([]auction.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []auction.Slot
	for _, slot := range s.slots {
		if !slot.Settled() && !slot.Start.After(cutoff) {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out, nil
}

// WithSlot holds the store's write lock for the duration of fn.
func (s *Slots) WithSlot(_ context.Context, id string, fn func(tx auction.SlotTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return auction.ErrSlotNotFound.With("slot %s", id)
	}
	tx := &slotTx{slot: &slot, bids: s.bids[id]}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.saved != nil {
		s.slots[id] = *tx.saved
	}
	if len(tx.appended) > 0 {
		s.bids[id] = append(s.bids[id], tx.appended...)
	}
	return nil
}

type slotTx struct {
	slot     *auction.Slot
	bids     []auction.Bid
	appended []auction.Bid
	saved    *auction.Slot
}

func (t *slotTx) Slot() *auction.Slot { return t.slot }

func (t *slotTx) Bids() ([]auction.Bid, error) {
	out := make([]auction.Bid, 0, len(t.bids)+len(t.appended))
	out = append(out, t.bids...)
	return append(out, t.appended...), nil
}

func (t *slotTx) AppendBid(b *auction.Bid) error {
	t.appended = append(t.appended, *b)
	return nil
}

func (t *slotTx) SaveSlot(s *auction.Slot) error {
	saved := *s
	t.saved = &saved
	return nil
}

func sortSlots(slots []auction.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].ID < slots[j].ID
	})
}
