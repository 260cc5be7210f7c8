package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor-desk/internal/store"
)

func startedHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, hub.Start(ctx))
	return hub
}

func TestHubUnsubscribe(t *testing.T) {
	hub := startedHub(t)

	var mu sync.Mutex
	var got []store.Change
	sub := hub.Subscribe(store.TopicRules, func(c store.Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	assert.Equal(t, store.TopicRules, sub.Topic())
	assert.Equal(t, 1, hub.SubscriberCount(store.TopicRules))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, hub.SubscriberCount(store.TopicRules))

	hub.Publish(store.Change{Topic: store.TopicRules, Kind: store.ChangeCreated, ID: "r1"})
	hub.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got)
}

func TestHubStopDrainsAndIsIdempotent(t *testing.T) {
	hub := startedHub(t)

	var mu sync.Mutex
	var got []store.Change
	hub.Subscribe(store.TopicTrades, func(c store.Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	hub.Publish(store.Change{Topic: store.TopicTrades, Kind: store.ChangeCreated, ID: "t1"})
	hub.Publish(store.Change{Topic: store.TopicTrades, Kind: store.ChangeDeleted, ID: "t1"})
	hub.Stop()
	hub.Stop()
	assert.False(t, hub.IsStarted())

	hub.Publish(store.Change{Topic: store.TopicTrades, Kind: store.ChangeUpdated, ID: "t2"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, store.ChangeCreated, got[0].Kind)
	assert.Equal(t, store.ChangeDeleted, got[1].Kind)
	assert.False(t, got[0].At.IsZero())

	m := hub.Metrics()
	assert.Equal(t, uint64(2), m.Received)
	assert.Equal(t, uint64(2), m.Delivered)
	assert.Equal(t, 0, m.Subscribers)
}

func TestHubSurvivesPanickingHandler(t *testing.T) {
	hub := startedHub(t)

	hub.Subscribe(store.TopicRules, func(store.Change) { panic("boom") })
	var calls int
	var mu sync.Mutex
	hub.Subscribe(store.TopicRules, func(store.Change) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	hub.Publish(store.Change{Topic: store.TopicRules, Kind: store.ChangeReordered})
	hub.Publish(store.Change{Topic: store.TopicRules, Kind: store.ChangeReordered})
	hub.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestHubSubscribeAfterStop(t *testing.T) {
	hub := startedHub(t)
	hub.Stop()

	sub := hub.Subscribe(store.TopicRules, func(store.Change) {})
	assert.Equal(t, 0, hub.SubscriberCount(store.TopicRules))
	sub.Unsubscribe()
}

func TestNopFeed(t *testing.T) {
	var feed store.ChangeFeed = store.NopFeed{}
	feed.Publish(store.Change{Topic: store.TopicRules})
	sub := feed.Subscribe(store.TopicTrades, func(store.Change) {})
	assert.Equal(t, store.TopicTrades, sub.Topic())
	sub.Unsubscribe()
}
