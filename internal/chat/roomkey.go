// Package chat implements the real-time messaging core: room identity,
// the message log, presence, typing signals, unread aggregation and the
// per-connection Session façade that composes them.
package chat

import "strings"

// roomKeySep separates the two participant ids inside a room key. User ids
// are UUIDs, which can never contain '#', so keys built from distinct pairs
// can never collide by concatenation.
const roomKeySep = "#"

// RoomsRoot is the store path under which all room documents live.
const RoomsRoot = "rooms"

// RoomKeyFor derives the conversation key for an unordered pair of user ids.
// It is commutative: RoomKeyFor(a, b) == RoomKeyFor(b, a).
func RoomKeyFor(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + roomKeySep + b
}

// ParseRoomKey splits a room key back into its two participant ids.
func ParseRoomKey(key string) (a, b string, ok bool) {
	a, b, ok = strings.Cut(key, roomKeySep)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// RoomKeyContains reports whether userID is one of the key's participants.
func RoomKeyContains(key, userID string) bool {
	a, b, ok := ParseRoomKey(key)
	return ok && (a == userID || b == userID)
}

// OtherParticipant returns the participant id in key that is not userID.
func OtherParticipant(key, userID string) string {
	a, b, ok := ParseRoomKey(key)
	if !ok {
		return ""
	}
	if a == userID {
		return b
	}
	return a
}

// RoomPath is the store path of a room's metadata document.
func RoomPath(key string) string { return RoomsRoot + "/" + key }

// MessagesPath is the store path of a room's message collection.
func MessagesPath(key string) string { return RoomPath(key) + "/messages" }

// MessagePath is the store path of one message.
func MessagePath(key, messageID string) string { return MessagesPath(key) + "/" + messageID }

// TypingPath is the store path of one user's typing flag in a room.
func TypingPath(key, userID string) string { return RoomPath(key) + "/typing/" + userID }

// StatusPath is the store path of a user's presence record.
func StatusPath(userID string) string { return "status/" + userID }
