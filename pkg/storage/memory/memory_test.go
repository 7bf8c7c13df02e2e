// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/auction"
	"github.com/luxfi/adsprint/pkg/ledger"
)

var start = time.Date(2026, time.October, 21, 14, 0, 0, 0, time.UTC)

func TestSlotsTx(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := NewSlots()

	n, err := s.CreateSlots(ctx, []auction.Slot{
		{ID: "2026-10-21-14", Start: start, Status: auction.StatusOpen},
		{ID: "2026-10-21-16", Start: start.Add(2 * time.Hour), Status: auction.StatusOpen},
	})
	require.NoError(err)
	require.Equal(2, n)

	n, err = s.CreateSlots(ctx, []auction.Slot{{ID: "2026-10-21-14", Start: start, Status: auction.StatusClosed}})
	require.NoError(err)
	require.Zero(n)
	slot, err := s.GetSlot(ctx, "2026-10-21-14")
	require.NoError(err)
	require.Equal(auction.StatusOpen, slot.Status)

	boom := errors.New("boom")
	err = s.WithSlot(ctx, "2026-10-21-14", func(tx auction.SlotTx) error {
		require.NoError(tx.AppendBid(&auction.Bid{ID: "b1", SlotID: "2026-10-21-14", BasePriceOffer: decimal.NewFromInt(1)}))
		return boom
	})
	require.ErrorIs(err, boom)
	bids, err := s.ListBids(ctx, "2026-10-21-14")
	require.NoError(err)
	require.Empty(bids)

	err = s.WithSlot(ctx, "2026-10-21-14", func(tx auction.SlotTx) error {
		require.NoError(tx.AppendBid(&auction.Bid{ID: "b2", SlotID: "2026-10-21-14", BasePriceOffer: decimal.NewFromInt(2)}))
		in, err := tx.Bids()
		require.NoError(err)
		require.Len(in, 1)
		saved := *tx.Slot()
		saved.Status = auction.StatusAwarded
		return tx.SaveSlot(&saved)
	})
	require.NoError(err)
	bids, err = s.ListBids(ctx, "2026-10-21-14")
	require.NoError(err)
	require.Len(bids, 1)

	due, err := s.DueSlots(ctx, start.Add(3*time.Hour))
	require.NoError(err)
	require.Len(due, 1)
	require.Equal("2026-10-21-16", due[0].ID)

	listed, err := s.ListSlots(ctx, start, start.Add(2*time.Hour))
	require.NoError(err)
	require.Len(listed, 1)

	err = s.WithSlot(ctx, "missing", func(auction.SlotTx) error { return nil })
	require.ErrorIs(err, auction.ErrSlotNotFound)
}

func TestLedgerTx(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := NewLedger()
	seed := ledger.Account{UserID: "u1", Multiplier: decimal.NewFromInt(1)}

	_, err := l.GetAccount(ctx, "u1")
	require.ErrorIs(err, ledger.ErrAccountNotFound)

	err = l.WithAccount(ctx, seed, func(tx ledger.AccountTx) error {
		require.NoError(tx.AppendView(&ledger.View{AttemptID: "a1", UserID: "u1", SprintID: "s1", TicketEligible: true}))
		require.ErrorIs(tx.AppendView(&ledger.View{AttemptID: "a1", UserID: "u1", SprintID: "s1"}), ledger.ErrDuplicateView)
		n, err := tx.CountEligibleViews("s1")
		require.NoError(err)
		require.Equal(1, n)

		acct := *tx.Account()
		acct.Tickets = 1
		return tx.SaveAccount(&acct)
	})
	require.NoError(err)

	acct, err := l.GetAccount(ctx, "u1")
	require.NoError(err)
	require.Equal(int64(1), acct.Tickets)

	// Another user may reuse the attempt id.
	err = l.WithAccount(ctx, ledger.Account{UserID: "u2", Multiplier: decimal.NewFromInt(1)}, func(tx ledger.AccountTx) error {
		return tx.AppendView(&ledger.View{AttemptID: "a1", UserID: "u2", SprintID: "s2"})
	})
	require.NoError(err)

	participants, err := l.Participants(ctx, "s1")
	require.NoError(err)
	require.Equal([]string{"u1"}, participants)

	// A failed transaction leaves no trace.
	err = l.WithAccount(ctx, seed, func(tx ledger.AccountTx) error {
		require.ErrorIs(tx.AppendView(&ledger.View{AttemptID: "a1", UserID: "u1"}), ledger.ErrDuplicateView)
		require.NoError(tx.AppendView(&ledger.View{AttemptID: "a2", UserID: "u1", SprintID: "s1", TicketEligible: true}))
		ok, err := tx.MarkAdjusted("s1", start)
		require.NoError(err)
		require.True(ok)
		return errors.New("rollback")
	})
	require.Error(err)
	views, err := l.ListViews(ctx, "u1", "s1")
	require.NoError(err)
	require.Len(views, 1)

	for i, want := range []bool{true, false} {
		err = l.WithAccount(ctx, seed, func(tx ledger.AccountTx) error {
			ok, err := tx.MarkAdjusted("s1", start)
			require.NoError(err)
			require.Equal(want, ok, "attempt %d", i)
			return nil
		})
		require.NoError(err)
	}

	first, created, err := l.CreateResult(ctx, &ledger.RaffleResult{SprintID: "s1", NotaryHash: "h1"})
	require.NoError(err)
	require.True(created)
	again, created, err := l.CreateResult(ctx, &ledger.RaffleResult{SprintID: "s1", NotaryHash: "h2"})
	require.NoError(err)
	require.False(created)
	require.Equal(first.NotaryHash, again.NotaryHash)
}
