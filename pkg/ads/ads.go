// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"context"
	"time"

	"github.com/luxfi/adsprint/pkg/errs"
)

// ApprovalStatus of an uploaded creative.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

var (
	ErrAdNotFound         = errs.New(errs.NotFound, "AD_NOT_FOUND", "ad not found")
	ErrAdvertiserNotFound = errs.New(errs.NotFound, "ADVERTISER_NOT_FOUND", "advertiser not found")
	ErrAlreadyReviewed    = errs.New(errs.Conflict, "AD_ALREADY_REVIEWED", "ad has already been reviewed")
	ErrInvalidAd          = errs.New(errs.Validation, "INVALID_AD", "invalid ad")
	ErrInvalidReview      = errs.New(errs.Validation, "INVALID_REVIEW", "review must approve or reject")
)

// Advertiser is owned by the platform and referenced by id only.
type Advertiser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ad is an advertiser creative.
type Ad struct {
	ID              string         `json:"id"`
	AdvertiserID    string         `json:"advertiserId"`
	MediaURL        string         `json:"mediaUrl"`
	DurationSeconds int            `json:"durationSeconds"`
	Status          ApprovalStatus `json:"status"`
	Active          bool           `json:"active"`
	Impressions     int64          `json:"impressions"`
	Clicks          int64          `json:"clicks"`
	CreatedAt       time.Time      `json:"createdAt"`
	ReviewedAt      *time.Time     `json:"reviewedAt,omitempty"`
}

// Servable reports whether the ad may be shown.
func (a *Ad) Servable() bool {
	return a != nil && a.Active && a.Status == StatusApproved
}

// Validate checks a freshly uploaded creative.
func (a *Ad) Validate() error {
	switch {
	case a.AdvertiserID == "":
		return ErrInvalidAd.With("advertiser id is required")
	case a.MediaURL == "":
		return ErrInvalidAd.With("media url is required")
	case a.DurationSeconds <= 0:
		return ErrInvalidAd.With("duration must be positive")
	}
	return nil
}

// Review moves a pending ad to APPROVED or REJECTED. It happens once.
func (a *Ad) Review(status ApprovalStatus, at time.Time) error {
	if status != StatusApproved && status != StatusRejected {
		return ErrInvalidReview
	}
	if a.Status != StatusPending {
		return ErrAlreadyReviewed.With("ad %s is %s", a.ID, a.Status)
	}
	a.Status = status
	a.ReviewedAt = &at
	return nil
}

// Catalog is the read side of ad storage.
type Catalog interface {
	GetAd(ctx context.Context, id string) (*Ad, error)
	GetAdvertiser(ctx context.Context, id string) (*Advertiser, error)
}

// Store adds the writes used by uploads, approvals and view recording.
type Store interface {
	Catalog
	CreateAdvertiser(ctx context.Context, a *Advertiser) error
	CreateAd(ctx context.Context, a *Ad) error
	// UpdateAd runs fn on the stored ad and persists the result atomically.
	UpdateAd(ctx context.Context, id string, fn func(*Ad) error) (*Ad, error)
	// RecordImpression increments the ad's impression counter.
	RecordImpression(ctx context.Context, id string) error
	ListAds(ctx context.Context, advertiserID string) ([]Ad, error)
}
