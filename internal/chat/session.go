package chat

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"brandlink/backend/internal/models"
	"brandlink/backend/internal/realtime"
)

// State is the session's room lifecycle state.
type State int

const (
	// StateIdle - no active room.
	StateIdle State = iota
	// StateLoading - a room is selected, its first message delivery pending.
	StateLoading
	// StateActive - messages for the active room delivered at least once.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// SessionConfig tunes a session. Zero fields fall back to defaults.
type SessionConfig struct {
	// MessageWindow is how many recent messages a room subscription streams.
	MessageWindow int
	// TypingWindow is the quiescence window after which a typing flag
	// self-reverts.
	TypingWindow time.Duration
	// PreviewLength bounds the room preview copied from sent messages.
	PreviewLength int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.MessageWindow == 0 {
		c.MessageWindow = 50
	}
	if c.TypingWindow == 0 {
		c.TypingWindow = 3 * time.Second
	}
	if c.PreviewLength == 0 {
		c.PreviewLength = 80
	}
	return c
}

// SessionHooks are the callbacks a UI binding receives. All hooks are
// optional and are invoked from store dispatch goroutines; they must not call
// back into the session.
type SessionHooks struct {
	OnState    func(State)
	OnRooms    func(rooms []models.ChatRoom)
	OnMessages func(roomKey string, messages []models.Message)
	OnPresence func(userID string, status models.PresenceStatus)
	OnTyping   func(roomKey, userID string, typing bool)
	OnUnread   func(total int)
}

// Session is the stateful façade one connected user binds to. It owns the
// store connection, keeps the room-list and unread subscriptions alive for
// its whole lifetime, and swaps the active room's message/presence/typing
// subscriptions atomically on every switch, so at most one room's
// subscriptions are ever live.
type Session struct {
	store realtime.Store
	conn  realtime.Conn
	user  models.Identity
	hooks SessionHooks
	cfg   SessionConfig

	ch       *Channel
	log      *MessageLog
	presence *PresenceTracker
	typing   *TypingCoordinator

	mu        sync.Mutex
	state     State
	roomKey   string
	gen       uint64
	roomSubs  []realtime.Subscription
	roomsSub  realtime.Subscription
	unreadSub realtime.Subscription
	closed    bool
}

// NewSession opens a session for user: marks the user online (with a
// disconnect fallback), subscribes to the user's room list and unread total,
// and starts in StateIdle.
func NewSession(store realtime.Store, user models.Identity, cfg SessionConfig, hooks SessionHooks) *Session {
	cfg = cfg.withDefaults()
	conn := store.Connect()
	ch := NewChannel(store, conn)

	s := &Session{
		store:    store,
		conn:     conn,
		user:     user,
		hooks:    hooks,
		cfg:      cfg,
		ch:       ch,
		log:      NewMessageLog(ch, cfg.PreviewLength),
		presence: NewPresenceTracker(ch),
		typing:   NewTypingCoordinator(ch, cfg.TypingWindow),
		state:    StateIdle,
	}

	if err := s.presence.SetOnline(context.Background(), user.ID, true); err != nil {
		log.Printf("set %s online: %v", user.ID, err)
	}
	s.roomsSub = ch.SubscribeChildren(RoomsRoot, s.onRooms)
	s.unreadSub = NewUnreadAggregator(store).Subscribe(user.ID, func(total int) {
		if s.hooks.OnUnread != nil {
			s.hooks.OnUnread(total)
		}
	})
	s.emitState(StateIdle)
	return s
}

// User returns the identity this session was opened for.
func (s *Session) User() models.Identity { return s.user }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomKey returns the active room key, or "" in StateIdle.
func (s *Session) RoomKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomKey
}

// SwitchRoom makes roomKey the active room. The previous room's
// subscriptions are torn down before the new ones are installed, so no event
// from the old room reaches handlers installed for the new one. Switching to
// the already-active room is a no-op.
func (s *Session) SwitchRoom(roomKey string) error {
	if !RoomKeyContains(roomKey, s.user.ID) {
		return ErrNotParticipant
	}
	other := OtherParticipant(roomKey, s.user.ID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if roomKey == s.roomKey && s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}

	s.teardownRoomLocked()
	s.gen++
	gen := s.gen
	s.roomKey = roomKey
	s.state = StateLoading

	s.roomSubs = []realtime.Subscription{
		s.log.Subscribe(roomKey, s.cfg.MessageWindow, func(msgs []models.Message) {
			s.onRoomMessages(gen, roomKey, msgs)
		}),
		s.presence.Subscribe(other, func(st models.PresenceStatus) {
			s.onPartnerPresence(gen, other, st)
		}),
		s.typing.Subscribe(roomKey, other, func(typing bool) {
			s.onPartnerTyping(gen, roomKey, other, typing)
		}),
	}
	s.mu.Unlock()

	s.emitState(StateLoading)
	return nil
}

// StartChat derives the room key for the other participant, creates the room
// document if it does not exist yet, and switches to it.
func (s *Session) StartChat(ctx context.Context, other models.Participant) (string, error) {
	if other.ID == s.user.ID {
		return "", ErrSameParticipant
	}
	key := RoomKeyFor(s.user.ID, other.ID)

	existing, err := s.ch.Get(RoomPath(key))
	if err != nil {
		return "", err
	}
	if existing == nil {
		me := models.Participant{ID: s.user.ID, DisplayName: s.user.DisplayName, Role: s.user.Role}
		a, b := me, other
		if a.ID > b.ID {
			a, b = b, a
		}
		room := map[string]any{
			"key":          key,
			"participantA": participantDoc(a),
			"participantB": participantDoc(b),
			"createdAt":    realtime.ServerTimestamp,
			"updatedAt":    realtime.ServerTimestamp,
		}
		if err := s.ch.Write(ctx, RoomPath(key), room); err != nil {
			return "", err
		}
	}
	return key, s.SwitchRoom(key)
}

// Send appends text to the active room. On failure the caller keeps its
// draft: nothing about the input is consumed by a failed send.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	roomKey := s.roomKey
	s.mu.Unlock()

	if roomKey == "" {
		return ErrNoActiveRoom
	}
	_, err := s.log.Append(ctx, roomKey, s.user, text)
	return err
}

// Typing reports keystroke activity in the active room. Failures are logged,
// never surfaced: typing is a best-effort signal.
func (s *Session) Typing(ctx context.Context, isTyping bool) {
	s.mu.Lock()
	roomKey := s.roomKey
	closed := s.closed
	s.mu.Unlock()

	if closed || roomKey == "" {
		return
	}
	if err := s.typing.SetTyping(ctx, roomKey, s.user.ID, isTyping); err != nil {
		log.Printf("set typing for %s in %s: %v", s.user.ID, roomKey, err)
	}
}

// MarkRead marks every partner message in the active room as read.
// With no active room it is a no-op.
func (s *Session) MarkRead(ctx context.Context) error {
	s.mu.Lock()
	roomKey := s.roomKey
	closed := s.closed
	s.mu.Unlock()

	if closed || roomKey == "" {
		return nil
	}
	return s.log.MarkRead(ctx, roomKey, s.user.ID)
}

// DeleteMessage tombstones one of the active room's messages.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	roomKey := s.roomKey
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}
	if roomKey == "" {
		return ErrNoActiveRoom
	}
	return s.log.Delete(ctx, roomKey, messageID)
}

// Close tears down every subscription, cancels typing timers and writes the
// user offline. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.teardownRoomLocked()
	s.gen++
	s.state = StateIdle
	roomsSub, unreadSub := s.roomsSub, s.unreadSub
	s.roomsSub, s.unreadSub = nil, nil
	s.mu.Unlock()

	if roomsSub != nil {
		roomsSub.Cancel()
	}
	if unreadSub != nil {
		unreadSub.Cancel()
	}
	s.typing.Close()
	if err := s.presence.SetOnline(context.Background(), s.user.ID, false); err != nil {
		log.Printf("set %s offline: %v", s.user.ID, err)
	}
	s.ch.Close()
	s.emitState(StateIdle)
}

// teardownRoomLocked cancels the active room's subscriptions and stops any
// typing signal the user left behind there.
func (s *Session) teardownRoomLocked() {
	for _, sub := range s.roomSubs {
		sub.Cancel()
	}
	s.roomSubs = nil
	if s.roomKey != "" && !s.closed {
		if err := s.typing.SetTyping(context.Background(), s.roomKey, s.user.ID, false); err != nil {
			log.Printf("clear typing for %s in %s: %v", s.user.ID, s.roomKey, err)
		}
	}
	s.roomKey = ""
}

func (s *Session) onRooms(children map[string]json.RawMessage) {
	rooms := make([]models.ChatRoom, 0, len(children))
	for key, raw := range children {
		if !RoomKeyContains(key, s.user.ID) {
			continue
		}
		var room models.ChatRoom
		if err := json.Unmarshal(raw, &room); err != nil {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastMessageAt != rooms[j].LastMessageAt {
			return rooms[i].LastMessageAt > rooms[j].LastMessageAt
		}
		return rooms[i].Key < rooms[j].Key
	})
	if s.hooks.OnRooms != nil {
		s.hooks.OnRooms(rooms)
	}
}

func (s *Session) onRoomMessages(gen uint64, roomKey string, msgs []models.Message) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	becameActive := s.state == StateLoading
	if becameActive {
		s.state = StateActive
	}
	s.mu.Unlock()

	if becameActive {
		s.emitState(StateActive)
	}
	if s.hooks.OnMessages != nil {
		s.hooks.OnMessages(roomKey, msgs)
	}
}

func (s *Session) onPartnerPresence(gen uint64, userID string, st models.PresenceStatus) {
	s.mu.Lock()
	stale := s.closed || gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	if s.hooks.OnPresence != nil {
		s.hooks.OnPresence(userID, st)
	}
}

func (s *Session) onPartnerTyping(gen uint64, roomKey, userID string, typing bool) {
	s.mu.Lock()
	stale := s.closed || gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	if s.hooks.OnTyping != nil {
		s.hooks.OnTyping(roomKey, userID, typing)
	}
}

func (s *Session) emitState(st State) {
	if s.hooks.OnState != nil {
		s.hooks.OnState(st)
	}
}

func participantDoc(p models.Participant) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"displayName": p.DisplayName,
		"role":        p.Role,
	}
}
