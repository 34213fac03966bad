package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"brandlink/backend/internal/models"
	"brandlink/backend/internal/realtime"
)

// MessageLog is the append-only ordered message sequence of a room: append,
// windowed streaming, read-receipt marking and tombstone deletes.
type MessageLog struct {
	ch         *Channel
	previewLen int
}

// NewMessageLog builds a log over ch. previewLen bounds the room preview
// copied from each sent message.
func NewMessageLog(ch *Channel, previewLen int) *MessageLog {
	return &MessageLog{ch: ch, previewLen: previewLen}
}

// Append validates and writes a new message, then refreshes the room's
// preview metadata and clears the sender's typing flag. The three writes are
// not atomic as a whole, but each is idempotent: a failure after the message
// write leaves at worst a stale preview, never a lost message.
func (l *MessageLog) Append(ctx context.Context, roomKey string, sender models.Identity, body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyMessage
	}

	id := l.ch.NewID()
	msg := map[string]any{
		"id":         id,
		"senderId":   sender.ID,
		"senderName": sender.DisplayName,
		"body":       body,
		"timestamp":  realtime.ServerTimestamp,
		"read":       false,
	}
	if sender.PhotoRef != "" {
		msg["avatarRef"] = sender.PhotoRef
	}
	if err := l.ch.Write(ctx, MessagePath(roomKey, id), msg); err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}

	meta := map[string]any{
		"lastMessageText":     preview(body, l.previewLen),
		"lastMessageSenderId": sender.ID,
		"lastMessageAt":       realtime.ServerTimestamp,
		"updatedAt":           realtime.ServerTimestamp,
	}
	if err := l.ch.Update(ctx, RoomPath(roomKey), meta); err != nil {
		return id, fmt.Errorf("update room preview: %w", err)
	}

	// Typing is a best-effort UX signal; a failed clear expires on its own.
	if err := l.ch.Write(ctx, TypingPath(roomKey, sender.ID), false); err != nil {
		log.Printf("clear typing for %s in %s: %v", sender.ID, roomKey, err)
	}
	return id, nil
}

// Subscribe streams the most recent limit messages of a room in ascending
// timestamp order. Any change to any message in the window redelivers the
// whole ordered list. limit <= 0 means no window bound.
func (l *MessageLog) Subscribe(roomKey string, limit int, fn func([]models.Message)) realtime.Subscription {
	return l.ch.SubscribeChildren(MessagesPath(roomKey), func(children map[string]json.RawMessage) {
		fn(decodeMessages(children, limit))
	})
}

// MarkRead flips the read flag on every message in the room that was sent by
// someone else and is still unread, as a single batched write. Calling it
// again immediately is a no-op.
func (l *MessageLog) MarkRead(ctx context.Context, roomKey, readerID string) error {
	children, err := l.ch.GetChildren(MessagesPath(roomKey))
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	updates := make(map[string]map[string]any)
	for id, raw := range children {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.SenderID != readerID && !m.Read {
			updates[MessagePath(roomKey, id)] = map[string]any{"read": true}
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return l.ch.BatchUpdate(ctx, updates)
}

// Delete tombstones a message. Later messages keep their ids; deleting an
// already-deleted message is a no-op.
func (l *MessageLog) Delete(ctx context.Context, roomKey, messageID string) error {
	return l.ch.Delete(ctx, MessagePath(roomKey, messageID))
}

func decodeMessages(children map[string]json.RawMessage, limit int) []models.Message {
	msgs := make([]models.Message, 0, len(children))
	for _, raw := range children {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		// Ids are time-prefixed, so this keeps append order within one tick.
		return msgs[i].ID < msgs[j].ID
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}

func preview(body string, max int) string {
	runes := []rune(body)
	if max <= 0 || len(runes) <= max {
		return body
	}
	return string(runes[:max])
}
