// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReviewHappensOnce(t *testing.T) {
	require := require.New(t)
	now := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)

	ad := &Ad{ID: "ad-1", AdvertiserID: "adv-1", MediaURL: "https://cdn/x.mp4", DurationSeconds: 30, Status: StatusPending, Active: true}
	require.NoError(ad.Validate())
	require.False(ad.Servable())

	require.ErrorIs(ad.Review(StatusPending, now), ErrInvalidReview)
	require.NoError(ad.Review(StatusApproved, now))
	require.True(ad.Servable())
	require.Equal(now, *ad.ReviewedAt)

	require.ErrorIs(ad.Review(StatusRejected, now), ErrAlreadyReviewed)
	require.Equal(StatusApproved, ad.Status)

	ad.Active = false
	require.False(ad.Servable())
}

func TestValidate(t *testing.T) {
	require := require.New(t)
	require.ErrorIs((&Ad{MediaURL: "m", DurationSeconds: 1}).Validate(), ErrInvalidAd)
	require.ErrorIs((&Ad{AdvertiserID: "a", DurationSeconds: 1}).Validate(), ErrInvalidAd)
	require.ErrorIs((&Ad{AdvertiserID: "a", MediaURL: "m"}).Validate(), ErrInvalidAd)

	var nilAd *Ad
	require.False(nilAd.Servable())
}
