package storage

import (
	"encoding/json"
	"log"
	"strings"

	"brandlink/backend/internal/chat"
	"brandlink/backend/internal/models"
	"brandlink/backend/internal/realtime"
)

// Archiver mirrors the realtime store into PostgreSQL. It consumes the
// store's local-change feed on a worker goroutine (so database latency never
// touches the write path) and can replay the archive back into the store at
// boot, giving room lists and recent history a warm start.
type Archiver struct {
	store *realtime.MemoryStore
	db    Storage
	ch    chan realtime.Change
	done  chan struct{}
}

// NewArchiver builds an archiver for store backed by db.
func NewArchiver(store *realtime.MemoryStore, db Storage) *Archiver {
	return &Archiver{
		store: store,
		db:    db,
		ch:    make(chan realtime.Change, 256),
		done:  make(chan struct{}),
	}
}

// Run hooks the change feed and starts the persistence worker.
func (a *Archiver) Run() {
	a.store.OnChange(a.enqueue)
	go a.loop()
}

// Close stops the worker. Changes still queued are dropped; the archive is a
// mirror, not the source of truth.
func (a *Archiver) Close() {
	close(a.done)
}

func (a *Archiver) enqueue(c realtime.Change) {
	select {
	case a.ch <- c:
	default:
		log.Printf("WARNING: archiver queue full, dropping change for %s", c.Path)
	}
}

func (a *Archiver) loop() {
	for {
		select {
		case <-a.done:
			return
		case c := <-a.ch:
			a.handle(c)
		}
	}
}

// handle routes one change by path shape. Typing flags and presence records
// are ephemeral and never archived.
func (a *Archiver) handle(c realtime.Change) {
	parts := strings.Split(c.Path, "/")
	switch {
	case len(parts) == 2 && parts[0] == chat.RoomsRoot:
		a.archiveRoom(c)
	case len(parts) == 4 && parts[0] == chat.RoomsRoot && parts[2] == "messages":
		a.archiveMessage(parts[1], parts[3], c)
	}
}

func (a *Archiver) archiveRoom(c realtime.Change) {
	if c.Value == nil {
		return
	}
	var room models.ChatRoom
	if err := json.Unmarshal(c.Value, &room); err != nil {
		log.Printf("ERROR: archiver: decode room at %s: %v", c.Path, err)
		return
	}
	rec := &models.RoomRecord{
		RoomKey:             room.Key,
		ParticipantAID:      room.ParticipantA.ID,
		ParticipantAName:    room.ParticipantA.DisplayName,
		ParticipantARole:    room.ParticipantA.Role,
		ParticipantBID:      room.ParticipantB.ID,
		ParticipantBName:    room.ParticipantB.DisplayName,
		ParticipantBRole:    room.ParticipantB.Role,
		LastMessageText:     room.LastMessageText,
		LastMessageSenderID: room.LastMessageSenderID,
		LastMessageAt:       room.LastMessageAt,
		CreatedAtMs:         room.CreatedAt,
		UpdatedAtMs:         room.UpdatedAt,
	}
	if err := a.db.SaveRoomRecord(rec); err != nil {
		log.Printf("ERROR: archiver: save room %s: %v", room.Key, err)
	}
}

func (a *Archiver) archiveMessage(roomKey, messageID string, c realtime.Change) {
	if c.Value == nil {
		if err := a.db.DeleteArchivedMessage(roomKey, messageID); err != nil {
			log.Printf("ERROR: archiver: delete message %s in %s: %v", messageID, roomKey, err)
		}
		return
	}
	var msg models.Message
	if err := json.Unmarshal(c.Value, &msg); err != nil {
		log.Printf("ERROR: archiver: decode message at %s: %v", c.Path, err)
		return
	}
	rec := &models.ArchivedMessage{
		RoomKey:    roomKey,
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		AvatarRef:  msg.AvatarRef,
		Body:       msg.Body,
		SentAt:     msg.Timestamp,
		Read:       msg.Read,
	}
	if err := a.db.UpsertArchivedMessage(rec); err != nil {
		log.Printf("ERROR: archiver: save message %s in %s: %v", messageID, roomKey, err)
	}
}

// Seed replays the archive into the store: room metadata plus the most
// recent limit messages per room. Replayed values bypass the change feed, so
// seeding never re-archives or re-publishes anything.
func (a *Archiver) Seed(limit int) error {
	recs, err := a.db.LoadRoomRecords()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		room := models.ChatRoom{
			Key: rec.RoomKey,
			ParticipantA: models.Participant{
				ID:          rec.ParticipantAID,
				DisplayName: rec.ParticipantAName,
				Role:        rec.ParticipantARole,
			},
			ParticipantB: models.Participant{
				ID:          rec.ParticipantBID,
				DisplayName: rec.ParticipantBName,
				Role:        rec.ParticipantBRole,
			},
			LastMessageText:     rec.LastMessageText,
			LastMessageSenderID: rec.LastMessageSenderID,
			LastMessageAt:       rec.LastMessageAt,
			CreatedAt:           rec.CreatedAtMs,
			UpdatedAt:           rec.UpdatedAtMs,
		}
		raw, err := json.Marshal(room)
		if err != nil {
			return err
		}
		a.store.ApplyReplica(chat.RoomPath(rec.RoomKey), raw, false)

		msgs, err := a.db.LoadMessages(rec.RoomKey, limit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			msg := models.Message{
				ID:         m.MessageID,
				SenderID:   m.SenderID,
				SenderName: m.SenderName,
				AvatarRef:  m.AvatarRef,
				Body:       m.Body,
				Timestamp:  m.SentAt,
				Read:       m.Read,
			}
			raw, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			a.store.ApplyReplica(chat.MessagePath(rec.RoomKey, m.MessageID), raw, false)
		}
	}
	log.Printf("Warm start complete: %d rooms seeded from archive.", len(recs))
	return nil
}
