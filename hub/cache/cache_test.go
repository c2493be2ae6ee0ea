// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"modhost.io/modhost/hub/cache"
)

func TestMemoryClient(t *testing.T) {
	runClientTest(t, cache.NewMemory(time.Minute))
}

func TestRedisClient(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client, err := cache.NewRedis(zaptest.NewLogger(t), "redis://"+mini.Addr(), time.Minute)
	require.NoError(t, err)
	defer func() { require.NoError(t, client.Close()) }()

	runClientTest(t, client)
}

func runClientTest(t *testing.T, client cache.Client) {
	ctx := context.Background()

	fills := 0
	fill := func(ctx context.Context, missing []string) (map[string][]byte, error) {
		fills++
		values := make(map[string][]byte, len(missing))
		for _, key := range missing {
			if key == "absent" {
				continue
			}
			values[key] = []byte("value of " + key)
		}
		return values, nil
	}

	t.Run("FillOnMiss", func(t *testing.T) {
		values, err := client.GetMany(ctx, cache.Projects, []string{"a", "b"}, fill)
		require.NoError(t, err)
		require.Equal(t, 1, fills)
		assert.Equal(t, []byte("value of a"), values["a"])
		assert.Equal(t, []byte("value of b"), values["b"])
	})

	t.Run("ServedFromCache", func(t *testing.T) {
		values, err := client.GetMany(ctx, cache.Projects, []string{"a", "b"}, fill)
		require.NoError(t, err)
		assert.Equal(t, 1, fills)
		assert.Len(t, values, 2)
	})

	t.Run("PartialMissBatchesFill", func(t *testing.T) {
		values, err := client.GetMany(ctx, cache.Projects, []string{"a", "c"}, fill)
		require.NoError(t, err)
		assert.Equal(t, 2, fills)
		assert.Len(t, values, 2)
	})

	t.Run("NamespacesAreDisjoint", func(t *testing.T) {
		values, err := client.GetMany(ctx, cache.Versions, []string{"a"}, fill)
		require.NoError(t, err)
		assert.Equal(t, 3, fills)
		assert.Equal(t, []byte("value of a"), values["a"])
	})

	t.Run("AbsentKeysNotCached", func(t *testing.T) {
		before := fills
		values, err := client.GetMany(ctx, cache.Projects, []string{"absent"}, fill)
		require.NoError(t, err)
		assert.Empty(t, values)

		_, err = client.GetMany(ctx, cache.Projects, []string{"absent"}, fill)
		require.NoError(t, err)
		assert.Equal(t, before+2, fills)
	})

	t.Run("Invalidate", func(t *testing.T) {
		before := fills
		require.NoError(t, client.Invalidate(ctx, cache.Projects, "a"))

		values, err := client.GetMany(ctx, cache.Projects, []string{"a", "b"}, fill)
		require.NoError(t, err)
		assert.Equal(t, before+1, fills)
		assert.Len(t, values, 2)
	})

	t.Run("EmptyRequests", func(t *testing.T) {
		values, err := client.GetMany(ctx, cache.Projects, nil, fill)
		require.NoError(t, err)
		assert.Empty(t, values)
		require.NoError(t, client.Invalidate(ctx, cache.Projects))
	})
}
