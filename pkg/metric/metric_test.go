// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(err)

	m.BidAccepted(time.Now())
	m.BidRejected("SLOT_CLOSED")
	m.BidRejected("SLOT_CLOSED")
	m.ViewRecorded("accepted", 2)
	m.ViewRecorded("too_short", 0)

	require.Equal(1.0, testutil.ToFloat64(m.BidsPlaced))
	require.Equal(2.0, testutil.ToFloat64(m.BidsRejected.WithLabelValues("SLOT_CLOSED")))
	require.Equal(2.0, testutil.ToFloat64(m.TicketsIssued))

	_, err = NewMetrics(reg)
	require.Error(err)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.BidAccepted(time.Now())
	m.SlotSettled(true)
	m.Resolved("scheduled")
	m.Request("GET", "/", "200", time.Millisecond)
}
