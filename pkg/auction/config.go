// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultClosingWindow is how long before a slot starts bidding closes.
const DefaultClosingWindow = 24 * time.Hour

// Config holds auction rules and slot pricing.
type Config struct {
	ClosingWindow time.Duration
	Location      *time.Location

	// Slot generation
	SlotHours      []int
	SlotLength     time.Duration
	PrimeStartHour int
	PrimeEndHour   int

	PrimeBasePrice          decimal.Decimal
	PrimeMinImpressionPrice decimal.Decimal
	BasePrice               decimal.Decimal
	MinImpressionPrice      decimal.Decimal
}

// DefaultConfig returns the standard pricing: prime time 19:00-23:00 at
// 1,000,000 base and 0.003 per impression, otherwise 100,000 and 0.001.
func DefaultConfig() Config {
	return Config{
		ClosingWindow:           DefaultClosingWindow,
		Location:                time.UTC,
		SlotHours:               []int{14, 16, 20, 22},
		SlotLength:              time.Hour,
		PrimeStartHour:          19,
		PrimeEndHour:            23,
		PrimeBasePrice:          decimal.NewFromInt(1_000_000),
		PrimeMinImpressionPrice: decimal.RequireFromString("0.003"),
		BasePrice:               decimal.NewFromInt(100_000),
		MinImpressionPrice:      decimal.RequireFromString("0.001"),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ClosingWindow <= 0 {
		c.ClosingWindow = d.ClosingWindow
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.SlotLength <= 0 {
		c.SlotLength = d.SlotLength
	}
	if c.PrimeStartHour == 0 && c.PrimeEndHour == 0 {
		c.PrimeStartHour, c.PrimeEndHour = d.PrimeStartHour, d.PrimeEndHour
	}
	if c.PrimeBasePrice.IsZero() {
		c.PrimeBasePrice = d.PrimeBasePrice
	}
	if c.PrimeMinImpressionPrice.IsZero() {
		c.PrimeMinImpressionPrice = d.PrimeMinImpressionPrice
	}
	if c.BasePrice.IsZero() {
		c.BasePrice = d.BasePrice
	}
	if c.MinImpressionPrice.IsZero() {
		c.MinImpressionPrice = d.MinImpressionPrice
	}
	return c
}

// IsPrimeTime reports whether a slot starting at hour is prime time.
func (c Config) IsPrimeTime(hour int) bool {
	return hour >= c.PrimeStartHour && hour < c.PrimeEndHour
}

// Pricing returns base and minimum impression price for a slot at hour.
func (c Config) Pricing(hour int) (base, minImpression decimal.Decimal) {
	if c.IsPrimeTime(hour) {
		return c.PrimeBasePrice, c.PrimeMinImpressionPrice
	}
	return c.BasePrice, c.MinImpressionPrice
}
