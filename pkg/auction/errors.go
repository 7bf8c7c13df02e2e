// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import "github.com/luxfi/adsprint/pkg/errs"

var (
	ErrSlotNotFound       = errs.New(errs.NotFound, "SLOT_NOT_FOUND", "slot not found")
	ErrInvalidBid         = errs.New(errs.Validation, "INVALID_BID", "invalid bid")
	ErrBidTooLow          = errs.New(errs.Validation, "BID_TOO_LOW", "bid below slot price")
	ErrAdvertiserInactive = errs.New(errs.Validation, "ADVERTISER_INACTIVE", "advertiser is not active")
	ErrSlotClosed         = errs.New(errs.Conflict, "SLOT_CLOSED", "bidding closed").AsNotice()
	ErrBidNotCompetitive  = errs.New(errs.Conflict, "BID_NOT_COMPETITIVE", "bid does not exceed the current highest bid")
	ErrSlotStillOpen      = errs.New(errs.Conflict, "SLOT_STILL_OPEN", "slot has not reached its closing boundary")
)
