// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/luxfi/adsprint/pkg/ads"
)

// Ads is an ads.Store.
type Ads struct {
	mu          sync.RWMutex
	ads         map[string]ads.Ad
	advertisers map[string]ads.Advertiser
}

func NewAds() *Ads {
	return &Ads{
		ads:         make(map[string]ads.Ad),
		advertisers: make(map[string]ads.Advertiser),
	}
}

func (s *Ads) GetAd(_ context.Context, id string) (*ads.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.ads[id]
	if !ok {
		return nil, ads.ErrAdNotFound.With("ad %s", id)
	}
	return &a, nil
}

func (s *Ads) GetAdvertiser(_ context.Context, id string) (*ads.Advertiser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.advertisers[id]
	if !ok {
		return nil, ads.ErrAdvertiserNotFound.With("advertiser %s", id)
	}
	return &a, nil
}

func (s *Ads) CreateAdvertiser(_ context.Context, a *ads.Advertiser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advertisers[a.ID] = *a
	return nil
}

func (s *Ads) CreateAd(_ context.Context, a *ads.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ads[a.ID] = *a
	return nil
}

func (s *Ads) UpdateAd(_ context.Context, id string, fn func(*ads.Ad) error) (*ads.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.ads[id]
	if !ok {
		return nil, ads.ErrAdNotFound.With("ad %s", id)
	}
	if err := fn(&a); err != nil {
		return nil, err
	}
	s.ads[id] = a
	return &a, nil
}

func (s *Ads) RecordImpression(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.ads[id]
	if !ok {
		return ads.ErrAdNotFound.With("ad %s", id)
	}
	a.Impressions++
	s.ads[id] = a
	return nil
}

func (s *Ads) ListAds(_ context.Context, advertiserID string) ([]ads.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ads.Ad
	for _, a := range s.ads {
		if advertiserID == "" || a.AdvertiserID == advertiserID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
