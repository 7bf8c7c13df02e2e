// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFallsBackToInfo(t *testing.T) {
	require := require.New(t)

	l, err := New("not-a-level", false)
	require.NoError(err)
	require.NotNil(l)

	zl := Zap(l)
	require.False(zl.Core().Enabled(zap.DebugLevel))
	require.True(zl.Core().Enabled(zap.InfoLevel))
}

func TestNoOp(t *testing.T) {
	require := require.New(t)

	l := NoOp().With(zap.String("component", "test"))
	l.Info("ignored", zap.Int("n", 1))
	require.NoError(l.Sync())
}
