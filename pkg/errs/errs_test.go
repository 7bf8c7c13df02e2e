// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var errClosed = New(Conflict, "SLOT_CLOSED", "bidding closed")

func TestClassification(t *testing.T) {
	require := require.New(t)

	wrapped := fmt.Errorf("place bid: %w", errClosed.With("slot %s", "2026-10-20-14"))
	require.ErrorIs(wrapped, errClosed)
	require.Equal(Conflict, KindOf(wrapped))
	require.Equal("SLOT_CLOSED", CodeOf(wrapped))
	require.True(Expected(wrapped))
	require.Contains(wrapped.Error(), "2026-10-20-14")

	plain := errors.New("disk on fire")
	require.Equal(Internal, KindOf(plain))
	require.Equal("INTERNAL", CodeOf(plain))
	require.False(Expected(plain))

	inv := New(Invariant, "AMBIGUOUS", "tie").Wrap(plain)
	require.ErrorIs(inv, plain)
	require.False(Expected(inv))
	require.Equal("invariant", Invariant.String())
}

func TestInformational(t *testing.T) {
	require := require.New(t)

	notice := errClosed.AsNotice()
	require.False(errClosed.Notice)
	require.ErrorIs(notice, errClosed)
	require.True(Informational(fmt.Errorf("bid: %w", notice.With("slot %s", "x"))))
	require.True(Informational(notice.Wrap(errors.New("cause"))))
	require.False(Informational(errClosed))

	require.True(Informational(New(Eligibility, "TOO_SHORT", "view too short")))
	require.False(Informational(errors.New("plain")))
}
