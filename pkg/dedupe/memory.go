// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/adsprint/pkg/clock"
)

// Memory is a single-process deduplicator.
type Memory struct {
	mu     sync.Mutex
	ttl    time.Duration
	clock  clock.Clock
	claims map[string]time.Time
}

// NewMemory creates a deduplicator whose claims expire after ttl.
func NewMemory(ttl time.Duration, c clock.Clock) *Memory {
	if c == nil {
		c = clock.Real
	}
	return &Memory{ttl: ttl, clock: c, claims: make(map[string]time.Time)}
}

func (m *Memory) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if exp, ok := m.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.claims[key] = now.Add(m.ttl)
	if len(m.claims)%1024 == 0 {
		m.evict(now)
	}
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.claims, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) evict(now time.Time) {
	for k, exp := range m.claims {
		if !now.Before(exp) {
			delete(m.claims, k)
		}
	}
}
