// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adsprint"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Auction metrics
	BidsPlaced    prometheus.Counter
	BidsRejected  *prometheus.CounterVec
	SlotsAwarded  prometheus.Counter
	SlotsUnsold   prometheus.Counter
	SlotsCreated  prometheus.Counter
	BidLatency    prometheus.Histogram
	SweepDuration prometheus.Histogram

	// Allocation metrics
	Resolutions     *prometheus.CounterVec
	EntriesCreated  *prometheus.CounterVec
	EntryConflicts  prometheus.Counter
	InvariantErrors *prometheus.CounterVec

	// Ledger metrics
	ViewsRecorded         *prometheus.CounterVec
	TicketsIssued         prometheus.Counter
	MultiplierAdjustments *prometheus.CounterVec
	RafflesApplied        prometheus.Counter

	// API metrics
	RequestsProcessed *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "auction_bids_placed_total",
			Help: "Total number of accepted bids",
		}),
		BidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "auction_bids_rejected_total",
			Help: "Total number of rejected bids by reason",
		}, []string{"reason"}),
		SlotsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "auction_slots_awarded_total",
			Help: "Total number of slots awarded to a winner",
		}),
		SlotsUnsold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "auction_slots_unsold_total",
			Help: "Total number of slots closed without bids",
		}),
		SlotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "auction_slots_created_total",
			Help: "Total number of generated time slots",
		}),
		BidLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "auction_bid_duration_seconds",
			Help:    "Time to process a bid",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "auction_sweep_duration_seconds",
			Help:    "Time to run one award sweep",
			Buckets: prometheus.DefBuckets,
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "schedule_resolutions_total",
			Help: "Ad resolutions by outcome",
		}, []string{"kind"}),
		EntriesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "schedule_entries_created_total",
			Help: "Schedule entries created by source",
		}, []string{"source"}),
		EntryConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "schedule_entry_conflicts_total",
			Help: "Schedule entries rejected for priority collisions",
		}),
		InvariantErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invariant_violations_total",
			Help: "Invariant violations by component",
		}, []string{"component"}),
		ViewsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_views_recorded_total",
			Help: "Ad views by outcome",
		}, []string{"outcome"}),
		TicketsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_tickets_issued_total",
			Help: "Total raffle tickets issued",
		}),
		MultiplierAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_multiplier_adjustments_total",
			Help: "Multiplier adjustments by outcome",
		}, []string{"outcome"}),
		RafflesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_raffles_applied_total",
			Help: "Raffle results stored",
		}),
		RequestsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_processed_total",
			Help: "Total number of API requests processed",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	collectors := []prometheus.Collector{
		m.BidsPlaced, m.BidsRejected, m.SlotsAwarded, m.SlotsUnsold, m.SlotsCreated,
		m.BidLatency, m.SweepDuration, m.Resolutions, m.EntriesCreated, m.EntryConflicts,
		m.InvariantErrors, m.ViewsRecorded, m.TicketsIssued, m.MultiplierAdjustments,
		m.RafflesApplied, m.RequestsProcessed, m.RequestDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// BidAccepted records an accepted bid and its processing time.
func (m *Metrics) BidAccepted(started time.Time) {
	if m == nil {
		return
	}
	m.BidsPlaced.Inc()
	m.BidLatency.Observe(time.Since(started).Seconds())
}

// BidRejected records a rejected bid by error code.
func (m *Metrics) BidRejected(reason string) {
	if m == nil {
		return
	}
	m.BidsRejected.WithLabelValues(reason).Inc()
}

// SlotSettled records the outcome of an award.
func (m *Metrics) SlotSettled(awarded bool) {
	if m == nil {
		return
	}
	if awarded {
		m.SlotsAwarded.Inc()
	} else {
		m.SlotsUnsold.Inc()
	}
}

// SlotsGenerated records newly created slots.
func (m *Metrics) SlotsGenerated(n int) {
	if m == nil {
		return
	}
	m.SlotsCreated.Add(float64(n))
}

// Swept records the duration of an award sweep.
func (m *Metrics) Swept(started time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(time.Since(started).Seconds())
}

// Resolved records an ad resolution outcome.
func (m *Metrics) Resolved(kind string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(kind).Inc()
}

// EntryCreated records a new schedule entry.
func (m *Metrics) EntryCreated(source string) {
	if m == nil {
		return
	}
	m.EntriesCreated.WithLabelValues(source).Inc()
}

// EntryConflict records a rejected schedule entry.
func (m *Metrics) EntryConflict() {
	if m == nil {
		return
	}
	m.EntryConflicts.Inc()
}

// Invariant records an invariant violation in component.
func (m *Metrics) Invariant(component string) {
	if m == nil {
		return
	}
	m.InvariantErrors.WithLabelValues(component).Inc()
}

// ViewRecorded records a view outcome and the tickets it earned.
func (m *Metrics) ViewRecorded(outcome string, tickets int64) {
	if m == nil {
		return
	}
	m.ViewsRecorded.WithLabelValues(outcome).Inc()
	if tickets > 0 {
		m.TicketsIssued.Add(float64(tickets))
	}
}

// MultiplierAdjusted records a raffle driven multiplier change.
func (m *Metrics) MultiplierAdjusted(outcome string) {
	if m == nil {
		return
	}
	m.MultiplierAdjustments.WithLabelValues(outcome).Inc()
}

// RaffleApplied records a stored raffle result.
func (m *Metrics) RaffleApplied() {
	if m == nil {
		return
	}
	m.RafflesApplied.Inc()
}

// Request records one API request.
func (m *Metrics) Request(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsProcessed.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
