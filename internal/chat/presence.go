package chat

import (
	"context"
	"encoding/json"
	"log"

	"brandlink/backend/internal/models"
	"brandlink/backend/internal/realtime"
)

// PresenceTracker maintains per-user online/offline state. Going online
// installs a disconnect fallback on the same path, so an abrupt connection
// loss converges to offline without the client running any code.
type PresenceTracker struct {
	ch *Channel
}

// NewPresenceTracker builds a tracker over ch. The channel's connection is
// what the disconnect fallback binds to.
func NewPresenceTracker(ch *Channel) *PresenceTracker {
	return &PresenceTracker{ch: ch}
}

// SetOnline writes the user's presence record. Failures of the fallback
// registration are logged, not surfaced: presence is best-effort and stale
// state is the accepted degradation.
func (p *PresenceTracker) SetOnline(ctx context.Context, userID string, online bool) error {
	path := StatusPath(userID)
	if online {
		fallback := map[string]any{"online": false, "lastSeen": realtime.ServerTimestamp}
		if err := p.ch.OnDisconnectWrite(path, fallback); err != nil {
			log.Printf("install disconnect fallback for %s: %v", userID, err)
		}
	} else {
		p.ch.CancelDisconnect(path)
	}
	return p.ch.Write(ctx, path, map[string]any{
		"online":   online,
		"lastSeen": realtime.ServerTimestamp,
	})
}

// Subscribe delivers the user's status on every change. An absent record is
// reported as offline with no lastSeen.
func (p *PresenceTracker) Subscribe(userID string, fn func(models.PresenceStatus)) realtime.Subscription {
	return p.ch.Subscribe(StatusPath(userID), func(raw json.RawMessage) {
		var st models.PresenceStatus
		if raw != nil {
			_ = json.Unmarshal(raw, &st)
		}
		fn(st)
	})
}
