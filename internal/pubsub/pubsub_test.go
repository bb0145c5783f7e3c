package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb), mr
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	sub := bus.Subscribe(ctx, "course:1")
	defer sub.Close()
	envelopes := sub.Envelopes()

	// miniredis delivers synchronously on Publish, but give the subscriber's
	// goroutine a moment to register before publishing.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, bus.Publish(ctx, "course:1", "message:created", map[string]any{"id": 42}))

	select {
	case env := <-envelopes:
		require.Equal(t, "message:created", env.Type)
		require.Equal(t, "course:1", env.Channel)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestSetAndClearTyping(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.SetTyping(ctx, "course:1", 7))
	users, err := bus.TypingUsers(ctx, "course:1")
	require.NoError(t, err)
	require.ElementsMatch(t, []int{7}, users)

	require.NoError(t, bus.ClearTyping(ctx, "course:1", 7))
	users, err = bus.TypingUsers(ctx, "course:1")
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestTypingUsersExpireAfterTTL(t *testing.T) {
	bus, mr := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.SetTyping(ctx, "course:1", 7))
	mr.FastForward(typingTTL + time.Second)

	users, err := bus.TypingUsers(ctx, "course:1")
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestTypingUsersScopedPerChannel(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.SetTyping(ctx, "course:1", 1))
	require.NoError(t, bus.SetTyping(ctx, "course:2", 2))

	users, err := bus.TypingUsers(ctx, "course:1")
	require.NoError(t, err)
	require.ElementsMatch(t, []int{1}, users)
}
