// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memory implements every repository with maps guarded by mutexes.
// It backs tests and single-process deployments.
package memory

// Backend bundles the in-memory repositories.
type Backend struct {
	Slots    *Slots
	Schedule *Schedule
	Sprints  *Sprints
	Ledger   *Ledger
	Ads      *Ads
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		Slots:    NewSlots(),
		Schedule: NewSchedule(),
		Sprints:  NewSprints(),
		Ledger:   NewLedger(),
		Ads:      NewAds(),
	}
}
