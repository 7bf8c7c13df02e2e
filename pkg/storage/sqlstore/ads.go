// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sqlstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/luxfi/adsprint/pkg/ads"
)

// Ads is an ads.Store.
type Ads struct {
	db *gorm.DB
}

func (s *Ads) GetAd(ctx context.Context, id string) (*ads.Ad, error) {
	return getAd(s.db.WithContext(ctx), id)
}

func getAd(db *gorm.DB, id string) (*ads.Ad, error) {
	var rec AdRecord
	err := db.First(&rec, "id = ?", id).Error
	if notFound(err) {
		return nil, ads.ErrAdNotFound.With("ad %s", id)
	}
	if err != nil {
		return nil, err
	}
	a := rec.ad()
	return &a, nil
}

func (s *Ads) GetAdvertiser(ctx context.Context, id string) (*ads.Advertiser, error) {
	var rec AdvertiserRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if notFound(err) {
		return nil, ads.ErrAdvertiserNotFound.With("advertiser %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &ads.Advertiser{ID: rec.ID, Name: rec.Name, Active: rec.Active, CreatedAt: rec.CreatedAt}, nil
}

func (s *Ads) CreateAdvertiser(ctx context.Context, a *ads.Advertiser) error {
	rec := AdvertiserRecord{ID: a.ID, Name: a.Name, Active: a.Active, CreatedAt: a.CreatedAt.UTC()}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *Ads) CreateAd(ctx context.Context, a *ads.Ad) error {
	rec := adRecord(a)
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *Ads) UpdateAd(ctx context.Context, id string, fn func(*ads.Ad) error) (*ads.Ad, error) {
	var updated *ads.Ad
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := getAd(tx.Clauses(forUpdate), id)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		rec := adRecord(a)
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		updated = a
		return nil
	})
	return updated, err
}

func (s *Ads) RecordImpression(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&AdRecord{}).
		Where("id = ?", id).
		UpdateColumn("impressions", gorm.Expr("impressions + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ads.ErrAdNotFound.With("ad %s", id)
	}
	return nil
}

func (s *Ads) ListAds(ctx context.Context, advertiserID string) ([]ads.Ad, error) {
	q := s.db.WithContext(ctx)
	if advertiserID != "" {
		q = q.Where("advertiser_id = ?", advertiserID)
	}
	var recs []AdRecord
	if err := q.Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]ads.Ad, len(recs))
	for i := range recs {
		out[i] = recs[i].ad()
	}
	return out, nil
}
