package realtime_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"brandlink/backend/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_GetRoundTrip(t *testing.T) {
	store := realtime.NewMemoryStore()

	err := store.Write(context.Background(), "status/u1", map[string]any{"online": true})
	require.NoError(t, err)

	raw, err := store.Get("status/u1")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, true, got["online"])

	raw, err = store.Get("status/nobody")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestWrite_ResolvesServerTimestamp(t *testing.T) {
	store := realtime.NewMemoryStore()
	before := time.Now().UnixMilli()

	err := store.Write(context.Background(), "status/u1", map[string]any{
		"online":   true,
		"lastSeen": realtime.ServerTimestamp,
	})
	require.NoError(t, err)

	raw, _ := store.Get("status/u1")
	var got struct {
		LastSeen int64 `json:"lastSeen"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.GreaterOrEqual(t, got.LastSeen, before)
}

func TestUpdate_ShallowMerge(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "rooms/k", map[string]any{"key": "k", "lastMessageText": "old"}))
	require.NoError(t, store.Update(ctx, "rooms/k", map[string]any{"lastMessageText": "new"}))

	raw, _ := store.Get("rooms/k")
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "k", got["key"], "untouched keys survive the merge")
	assert.Equal(t, "new", got["lastMessageText"])
}

func TestUpdate_CreatesAbsentValue(t *testing.T) {
	store := realtime.NewMemoryStore()

	require.NoError(t, store.Update(context.Background(), "rooms/k", map[string]any{"lastMessageText": "hi"}))

	raw, _ := store.Get("rooms/k")
	assert.NotNil(t, raw)
}

func TestSubscribe_DeliversCurrentValueThenChanges(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "status/u1", map[string]any{"online": false}))

	var mu sync.Mutex
	var deliveries []string
	sub := store.Subscribe("status/u1", func(raw json.RawMessage) {
		mu.Lock()
		deliveries = append(deliveries, string(raw))
		mu.Unlock()
	})
	defer sub.Cancel()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deliveries) == 1
	}, time.Second, 10*time.Millisecond, "current value delivered without any write")

	require.NoError(t, store.Write(ctx, "status/u1", map[string]any{"online": true}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deliveries) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribe_AbsentPathDeliversNil(t *testing.T) {
	store := realtime.NewMemoryStore()

	got := make(chan json.RawMessage, 1)
	sub := store.Subscribe("status/ghost", func(raw json.RawMessage) { got <- raw })
	defer sub.Cancel()

	select {
	case raw := <-got:
		assert.Nil(t, raw)
	case <-time.After(time.Second):
		t.Fatal("no initial delivery")
	}
}

func TestSubscribeChildren_RedeliversFullMap(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	var last map[string]json.RawMessage
	count := 0
	sub := store.SubscribeChildren("rooms/k/messages", func(children map[string]json.RawMessage) {
		mu.Lock()
		last = children
		count++
		mu.Unlock()
	})
	defer sub.Cancel()

	require.NoError(t, store.Write(ctx, "rooms/k/messages/m1", map[string]any{"body": "a"}))
	require.NoError(t, store.Write(ctx, "rooms/k/messages/m2", map[string]any{"body": "b"}))
	// A grandchild write must not reach a direct-children watcher.
	require.NoError(t, store.Write(ctx, "rooms/k/messages/m2/x", map[string]any{"noise": true}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	n := count
	mu.Unlock()
	assert.Equal(t, 3, n, "initial empty map plus one redelivery per child write")
}

func TestCancel_StopsDeliveryAndIsIdempotent(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	sub := store.Subscribe("status/u1", func(json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 10*time.Millisecond)

	sub.Cancel()
	sub.Cancel() // safe to call twice

	require.NoError(t, store.Write(ctx, "status/u1", map[string]any{"online": true}))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no delivery after cancel")
}

func TestDelete_NotifiesAndIsNoOpWhenAbsent(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "rooms/k/messages/m1", map[string]any{"body": "a"}))

	got := make(chan json.RawMessage, 4)
	sub := store.Subscribe("rooms/k/messages/m1", func(raw json.RawMessage) { got <- raw })
	defer sub.Cancel()
	<-got // initial value

	require.NoError(t, store.Delete(ctx, "rooms/k/messages/m1"))
	select {
	case raw := <-got:
		assert.Nil(t, raw)
	case <-time.After(time.Second):
		t.Fatal("delete not delivered")
	}

	require.NoError(t, store.Delete(ctx, "rooms/k/messages/m1"), "deleting an absent path is a no-op")
}

func TestBatchUpdate_AppliesAllPaths(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "rooms/k/messages/m1", map[string]any{"read": false}))
	require.NoError(t, store.Write(ctx, "rooms/k/messages/m2", map[string]any{"read": false}))

	err := store.BatchUpdate(ctx, map[string]map[string]any{
		"rooms/k/messages/m1": {"read": true},
		"rooms/k/messages/m2": {"read": true},
	})
	require.NoError(t, err)

	for _, id := range []string{"m1", "m2"} {
		raw, _ := store.Get("rooms/k/messages/" + id)
		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, true, got["read"])
	}
}

func TestNewID_TimeOrdered(t *testing.T) {
	store := realtime.NewMemoryStore()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = store.NewID()
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted, "ids issued in sequence sort in issue order")

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestDisconnect_FiresFallbackOnce(t *testing.T) {
	store := realtime.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "status/u1", map[string]any{"online": true}))

	conn := store.Connect()
	require.NoError(t, conn.OnDisconnectWrite("status/u1", map[string]any{
		"online":   false,
		"lastSeen": realtime.ServerTimestamp,
	}))

	conn.Disconnect()

	raw, _ := store.Get("status/u1")
	var got struct {
		Online   bool  `json:"online"`
		LastSeen int64 `json:"lastSeen"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.False(t, got.Online)
	assert.Greater(t, got.LastSeen, int64(0), "marker resolved when the fallback fired")

	// A second disconnect must not rewrite anything.
	require.NoError(t, store.Write(ctx, "status/u1", map[string]any{"online": true}))
	conn.Disconnect()
	raw, _ = store.Get("status/u1")
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.True(t, got.Online)
}

func TestCancelDisconnect_RemovesFallback(t *testing.T) {
	store := realtime.NewMemoryStore()
	conn := store.Connect()

	require.NoError(t, conn.OnDisconnectWrite("status/u1", map[string]any{"online": false}))
	conn.CancelDisconnect("status/u1")
	conn.Disconnect()

	raw, _ := store.Get("status/u1")
	assert.Nil(t, raw, "cancelled fallback never fires")
}

func TestOnChange_LocalOnly(t *testing.T) {
	store := realtime.NewMemoryStore()

	var mu sync.Mutex
	var changes []realtime.Change
	store.OnChange(func(c realtime.Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	require.NoError(t, store.Write(context.Background(), "rooms/k", map[string]any{"key": "k"}))
	store.ApplyReplica("rooms/other", json.RawMessage(`{"key":"other"}`), false)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 1, "replicated changes bypass the hook")
	assert.Equal(t, "rooms/k", changes[0].Path)

	raw, _ := store.Get("rooms/other")
	assert.NotNil(t, raw, "replica still applied to the tree")
}
