// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schedule

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"time"

	"github.com/luxfi/adsprint/pkg/ads"
)

const shareScale = 10_000

// FallbackSource tells the client where a fallback comes from.
type FallbackSource string

const (
	FallbackNetwork FallbackSource = "network"
	FallbackHouse   FallbackSource = "house"
)

// FallbackMarker tells the client to show a non-advertiser ad.
type FallbackMarker struct {
	Source   FallbackSource `json:"source"`
	Provider string         `json:"provider,omitempty"`
	Unit     string         `json:"unit,omitempty"`
	AdID     string         `json:"adId,omitempty"`
}

// FallbackConfig configures the hybrid fallback.
type FallbackConfig struct {
	// NetworkShare is the fraction of fallbacks served by the ad network,
	// the rest rotate through house ads.
	NetworkShare float64
	Provider     string
	Unit         string
	HouseAdIDs   []string
}

// HybridFallback splits fallback traffic between a network ad and the
// platform's own house ads. The choice is a pure function of the minute of
// now, so repeated lookups agree.
type HybridFallback struct {
	cfg     FallbackConfig
	catalog ads.Catalog
}

// NewHybridFallback creates the policy. catalog may be nil when there are
// no house ads.
func NewHybridFallback(cfg FallbackConfig, catalog ads.Catalog) *HybridFallback {
	if cfg.NetworkShare < 0 {
		cfg.NetworkShare = 0
	}
	if cfg.NetworkShare > 1 {
		cfg.NetworkShare = 1
	}
	return &HybridFallback{cfg: cfg, catalog: catalog}
}

// Choose returns the marker for now, and the house ad when one is chosen.
func (f *HybridFallback) Choose(ctx context.Context, now time.Time) (*FallbackMarker, *ads.Ad, error) {
	network := &FallbackMarker{Source: FallbackNetwork, Provider: f.cfg.Provider, Unit: f.cfg.Unit}

	h := bucketHash(now)
	if h%shareScale < uint64(f.cfg.NetworkShare*shareScale) {
		return network, nil, nil
	}

	house, err := f.houseAds(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(house) == 0 {
		return network, nil, nil
	}
	ad := house[(h/shareScale)%uint64(len(house))]
	return &FallbackMarker{Source: FallbackHouse, AdID: ad.ID}, ad, nil
}

func (f *HybridFallback) houseAds(ctx context.Context) ([]*ads.Ad, error) {
	if f.catalog == nil {
		return nil, nil
	}
	var out []*ads.Ad
	for _, id := range f.cfg.HouseAdIDs {
		ad, err := f.catalog.GetAd(ctx, id)
		if errors.Is(err, ads.ErrAdNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ad.Servable() {
			out = append(out, ad)
		}
	}
	return out, nil
}

func bucketHash(now time.Time) uint64 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(now.Truncate(time.Minute).Unix()))
	h := fnv.New64a()
	_, _ = h.Write(b[:])
	return h.Sum64()
}
