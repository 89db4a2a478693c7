package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ID   uint   `json:"id"`
	Body string `json:"body"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	loads := 0
	load := func(dest *fixture) func() error {
		return func() error {
			loads++
			*dest = fixture{ID: 7, Body: "loaded"}
			return nil
		}
	}

	var first fixture
	require.NoError(t, Aside(ctx, PostKey(7), &first, PostTTL, load(&first)))
	assert.Equal(t, 1, loads)
	assert.Equal(t, "loaded", first.Body)
	assert.True(t, mr.Exists(PostKey(7)))

	// Second read must come from cache.
	var second fixture
	require.NoError(t, Aside(ctx, PostKey(7), &second, PostTTL, load(&second)))
	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
}

func TestAside_CorruptEntryFallsBackToLoader(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(PostKey(3), "{not json"))

	var got fixture
	err := Aside(ctx, PostKey(3), &got, time.Minute, func() error {
		got = fixture{ID: 3, Body: "fresh"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Body)
}

func TestAside_NilClientDegradesToLoader(t *testing.T) {
	SetClient(nil)

	var got fixture
	err := Aside(context.Background(), PostKey(1), &got, time.Minute, func() error {
		got = fixture{ID: 1, Body: "direct"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", got.Body)
}

func TestInvalidatePost(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(PostKey(5), "{}"))
	require.NoError(t, mr.Set(ScheduleListKey(9), "[]"))

	InvalidatePost(ctx, 5, 9)
	assert.False(t, mr.Exists(PostKey(5)))
	assert.False(t, mr.Exists(ScheduleListKey(9)))
}
