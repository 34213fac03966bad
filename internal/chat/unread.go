package chat

import (
	"encoding/json"
	"sync"

	"brandlink/backend/internal/models"
	"brandlink/backend/internal/realtime"
)

// UnreadAggregator counts messages addressed to a user that are not yet
// marked read, across every room the user participates in. Each update
// rescans the affected room's window, which is fine for per-user DM volume
// and the first thing to revisit at real scale.
type UnreadAggregator struct {
	store realtime.Store
}

// NewUnreadAggregator builds an aggregator over store.
func NewUnreadAggregator(store realtime.Store) *UnreadAggregator {
	return &UnreadAggregator{store: store}
}

// Subscribe watches every room whose key contains userID (a room key contains
// both participant ids by construction) and re-emits the unread total on any
// relevant change. Cancelling the returned subscription releases the room
// watch and every per-room message watch.
func (a *UnreadAggregator) Subscribe(userID string, fn func(total int)) realtime.Subscription {
	w := &unreadWatch{
		store:    a.store,
		userID:   userID,
		fn:       fn,
		roomSubs: make(map[string]realtime.Subscription),
		counts:   make(map[string]int),
	}
	w.roomsSub = a.store.SubscribeChildren(RoomsRoot, w.onRooms)
	return w
}

type unreadWatch struct {
	store  realtime.Store
	userID string
	fn     func(int)

	mu       sync.Mutex
	roomsSub realtime.Subscription
	roomSubs map[string]realtime.Subscription
	counts   map[string]int
	closed   bool
}

func (w *unreadWatch) onRooms(children map[string]json.RawMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for key := range children {
		if !RoomKeyContains(key, w.userID) {
			continue
		}
		if _, watching := w.roomSubs[key]; watching {
			continue
		}
		roomKey := key
		w.roomSubs[key] = w.store.SubscribeChildren(MessagesPath(key), func(msgs map[string]json.RawMessage) {
			w.onMessages(roomKey, msgs)
		})
	}
	w.emitLocked()
}

func (w *unreadWatch) onMessages(roomKey string, children map[string]json.RawMessage) {
	count := 0
	for _, raw := range children {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.SenderID != w.userID && !m.Read {
			count++
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.counts[roomKey] = count
	w.emitLocked()
}

// emitLocked reports the current total. Emitting under the lock keeps totals
// ordered when several rooms change close together.
func (w *unreadWatch) emitLocked() {
	total := 0
	for _, n := range w.counts {
		total += n
	}
	w.fn(total)
}

func (w *unreadWatch) Cancel() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	roomsSub := w.roomsSub
	roomSubs := w.roomSubs
	w.roomSubs = nil
	w.mu.Unlock()

	roomsSub.Cancel()
	for _, sub := range roomSubs {
		sub.Cancel()
	}
}
