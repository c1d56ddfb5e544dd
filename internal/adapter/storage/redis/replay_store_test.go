package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayStore_UnseenMarker(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewReplayStore(client)
	ctx := context.Background()

	seen, err := store.Seen(ctx, "payment_init", "team-1:abc")
	require.NoError(t, err)
	assert.False(t, seen, "unmarked marker should not be seen")
}

func TestReplayStore_MarkThenSeen(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewReplayStore(client)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "payment_init", "team-1:abc", 10*time.Minute))

	seen, err := store.Seen(ctx, "payment_init", "team-1:abc")
	require.NoError(t, err)
	assert.True(t, seen, "marked marker should be seen")
}

func TestReplayStore_ScopesAreIndependent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewReplayStore(client)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "payment_init", "team-1:abc", 10*time.Minute))

	// Same marker under a different operation scope is fresh.
	seen, err := store.Seen(ctx, "payment_confirm", "team-1:abc")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestReplayStore_WindowExpires(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewReplayStore(client)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "payment_init", "team-1:abc", time.Second))

	s.FastForward(2 * time.Second)

	seen, err := store.Seen(ctx, "payment_init", "team-1:abc")
	require.NoError(t, err)
	assert.False(t, seen, "marker outside the replay window should be forgotten")
}
