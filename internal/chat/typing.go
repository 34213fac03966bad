package chat

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"brandlink/backend/internal/realtime"
)

// TypingCoordinator manages the ephemeral "is typing" flag per (room, user).
// The expiry timer runs on the sender's side: only the sender knows when
// input actually stopped, which avoids a heartbeat protocol at the cost of
// trusting the sender's process to keep running. Each new keystroke replaces
// the previous timer, so only the most recent one ever writes false.
type TypingCoordinator struct {
	ch     *Channel
	window time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	gens   map[string]uint64
	closed bool
}

// NewTypingCoordinator builds a coordinator whose flags self-revert after
// window of quiescence.
func NewTypingCoordinator(ch *Channel, window time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		ch:     ch,
		window: window,
		timers: make(map[string]*time.Timer),
		gens:   make(map[string]uint64),
	}
}

// SetTyping writes the flag. With isTyping=true the expiry timer for the
// (room, user) pair is (re)started; with false it is cancelled and the flag
// cleared immediately.
func (t *TypingCoordinator) SetTyping(ctx context.Context, roomKey, userID string, isTyping bool) error {
	key := roomKey + "/" + userID

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrSessionClosed
	}
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.gens[key]++
	if isTyping {
		gen := t.gens[key]
		t.timers[key] = time.AfterFunc(t.window, func() { t.expire(roomKey, userID, gen) })
	}
	t.mu.Unlock()

	return t.ch.Write(ctx, TypingPath(roomKey, userID), isTyping)
}

// expire is the timer body. The generation check makes timers from
// superseded keystrokes, and timers firing after Close, no-ops.
func (t *TypingCoordinator) expire(roomKey, userID string, gen uint64) {
	key := roomKey + "/" + userID

	t.mu.Lock()
	if t.closed || t.gens[key] != gen {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()

	if err := t.ch.Write(context.Background(), TypingPath(roomKey, userID), false); err != nil {
		log.Printf("expire typing for %s in %s: %v", userID, roomKey, err)
	}
}

// Subscribe delivers the flag on every change; an absent record reads false.
func (t *TypingCoordinator) Subscribe(roomKey, userID string, fn func(bool)) realtime.Subscription {
	return t.ch.Subscribe(TypingPath(roomKey, userID), func(raw json.RawMessage) {
		var typing bool
		if raw != nil {
			_ = json.Unmarshal(raw, &typing)
		}
		fn(typing)
	})
}

// Close cancels every pending timer. Timers already in flight become no-ops.
func (t *TypingCoordinator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
