// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/config"
	"github.com/luxfi/adsprint/pkg/log"
)

func TestOpsRoutes(t *testing.T) {
	require := require.New(t)

	cfg, err := config.Load("")
	require.NoError(err)
	d, err := NewDaemon(context.Background(), cfg, log.NoOp())
	require.NoError(err)
	defer d.app.Close()

	router := d.setupOpsRoutes()
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	require.Equal(http.StatusOK, get("/health").Code)

	rec := get("/ready")
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), `"ready"`)

	rec = get("/info")
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), `"database":"memory"`)

	_, err = d.app.Auctions.GenerateSlots(context.Background(), 2)
	require.NoError(err)
	rec = get("/metrics")
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "adsprint_auction_slots_created_total")
	require.Equal(1, strings.Count(rec.Body.String(), "\ngo_goroutines "))

	require.Equal(http.StatusNotFound, get("/missing").Code)
}
