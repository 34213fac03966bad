package chat

import "errors"

var (
	// ErrEmptyMessage rejects a send whose body is empty after trimming.
	// Nothing is written when this is returned.
	ErrEmptyMessage = errors.New("chat: message body is empty")

	// ErrNoActiveRoom is returned by room-scoped session operations while no
	// room is open.
	ErrNoActiveRoom = errors.New("chat: no active room")

	// ErrSessionClosed is returned by every session operation after Close.
	ErrSessionClosed = errors.New("chat: session closed")

	// ErrSameParticipant rejects starting a conversation with oneself.
	ErrSameParticipant = errors.New("chat: a conversation needs two distinct participants")

	// ErrNotParticipant rejects opening a room the user is not part of.
	ErrNotParticipant = errors.New("chat: user is not a participant of this room")
)
