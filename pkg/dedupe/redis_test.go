// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dedupe

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adsprint/pkg/ids"
)

func TestRedisClaim(t *testing.T) {
	addr := os.Getenv("ADSPRINT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADSPRINT_TEST_REDIS_ADDR not set")
	}
	require := require.New(t)
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(client.Ping(ctx).Err())

	d := NewRedis(client, time.Minute)
	key := ids.New()

	ok, err := d.Claim(ctx, key)
	require.NoError(err)
	require.True(ok)

	ok, err = d.Claim(ctx, key)
	require.NoError(err)
	require.False(ok)

	require.NoError(d.Release(ctx, key))
	ok, err = d.Claim(ctx, key)
	require.NoError(err)
	require.True(ok)
	require.NoError(d.Release(ctx, key))
}
