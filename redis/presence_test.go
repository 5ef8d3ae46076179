package redis

import (
	"context"
	"testing"
	"time"

	"OrgVerify/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestPresenceCountsConnections(t *testing.T) {
	mr, rdb := newTestRedis(t)
	p := NewPresence(rdb, "a", time.Minute)
	ctx := context.Background()

	user := models.ActorRef{Kind: models.KindEndUser, ID: 1}
	admin := models.ActorRef{Kind: models.KindSupportAdmin, ID: 2}

	require.NoError(t, p.Online(ctx, user))
	require.NoError(t, p.Online(ctx, user))
	require.NoError(t, p.Online(ctx, admin))

	refs, err := p.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ActorRef{user, admin}, refs)

	require.NoError(t, p.Offline(ctx, user))
	assert.Equal(t, "1", mr.HGet(presencePrefix+"a", user.String()))

	require.NoError(t, p.Offline(ctx, user))
	assert.Empty(t, mr.HGet(presencePrefix+"a", user.String()))

	refs, err = p.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ActorRef{admin}, refs)
}

func TestPresenceMergesInstances(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	a := NewPresence(rdb, "a", time.Minute)
	b := NewPresence(rdb, "b", time.Minute)

	user := models.ActorRef{Kind: models.KindEndUser, ID: 1}
	admin := models.ActorRef{Kind: models.KindSupportAdmin, ID: 2}
	require.NoError(t, a.Online(ctx, user))
	require.NoError(t, b.Online(ctx, user))
	require.NoError(t, b.Online(ctx, admin))

	refs, err := a.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ActorRef{user, admin}, refs)

	require.NoError(t, b.Offline(ctx, user))
	refs, err = a.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ActorRef{user, admin}, refs)
}

func TestPresenceExpiresWithoutHeartbeat(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	p := NewPresence(rdb, "a", 30*time.Second)

	require.NoError(t, p.Online(ctx, models.ActorRef{Kind: models.KindEndUser, ID: 1}))
	assert.Equal(t, 30*time.Second, mr.TTL(presencePrefix+"a"))

	mr.FastForward(20 * time.Second)
	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 30*time.Second, mr.TTL(presencePrefix+"a"))

	mr.FastForward(31 * time.Second)
	refs, err := p.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestPresenceRunStopsWithContext(t *testing.T) {
	_, rdb := newTestRedis(t)
	p := NewPresence(rdb, "a", 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestPresenceSkipsMalformedEntries(t *testing.T) {
	mr, rdb := newTestRedis(t)
	p := NewPresence(rdb, "a", time.Minute)

	mr.HSet(presencePrefix+"a", "garbage", "3")
	mr.HSet(presencePrefix+"a", "EndUser:4", "0")
	mr.HSet(presencePrefix+"b", "SupportAdmin:5", "2")

	refs, err := p.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.ActorRef{{Kind: models.KindSupportAdmin, ID: 5}}, refs)
}

func TestPresenceReportsRedisErrors(t *testing.T) {
	mr, rdb := newTestRedis(t)
	p := NewPresence(rdb, "a", time.Minute)
	mr.Close()

	assert.Error(t, p.Online(context.Background(), models.ActorRef{Kind: models.KindEndUser, ID: 1}))
	_, err := p.List(context.Background())
	assert.Error(t, err)
}
