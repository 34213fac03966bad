package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"brandlink/backend/internal/chat"
	"brandlink/backend/internal/config"
	"brandlink/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Lock down in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and binds a chat session to it.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity, err := h.identityFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}
	lang := c.DefaultQuery("lang", "en")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := newWSClient(h, conn, identity, lang)
	client.Run()
}

// command is one inbound frame from the browser.
type command struct {
	Action    string             `json:"action"` // open, send, typing, read, start, delete
	Room      string             `json:"room,omitempty"`
	Text      string             `json:"text,omitempty"`
	Typing    bool               `json:"typing,omitempty"`
	Other     models.Participant `json:"other"`
	MessageID string             `json:"message_id,omitempty"`
}

// event is one outbound frame to the browser.
type event struct {
	Event    string                 `json:"event"`
	State    string                 `json:"state,omitempty"`
	Room     string                 `json:"room,omitempty"`
	User     string                 `json:"user,omitempty"`
	Rooms    []models.ChatRoom      `json:"rooms,omitempty"`
	Messages []models.Message       `json:"messages,omitempty"`
	Status   *models.PresenceStatus `json:"status,omitempty"`
	Typing   bool                   `json:"typing,omitempty"`
	Total    int                    `json:"total"`
	Draft    string                 `json:"draft,omitempty"`
	Text     string                 `json:"text,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
}

// wsClient bridges one WebSocket connection and one chat.Session: inbound
// command frames become session calls, session hook deliveries become event
// frames.
type wsClient struct {
	handler *Handler
	conn    *websocket.Conn
	session *chat.Session
	user    models.Identity
	lang    string

	send   chan []byte
	sendMu sync.Mutex
	closed bool
}

func newWSClient(h *Handler, conn *websocket.Conn, identity models.Identity, lang string) *wsClient {
	c := &wsClient{
		handler: h,
		conn:    conn,
		user:    identity,
		lang:    lang,
		send:    make(chan []byte, 256),
	}

	cfg := chat.SessionConfig{
		MessageWindow: config.MessageWindowLimit,
		TypingWindow:  config.TypingWindow,
		PreviewLength: config.MessagePreviewLength,
	}
	c.session = chat.NewSession(h.Store, identity, cfg, chat.SessionHooks{
		OnState: func(st chat.State) {
			c.emit(event{Event: "state", State: st.String()})
		},
		OnRooms: func(rooms []models.ChatRoom) {
			c.emit(event{Event: "rooms", Rooms: rooms})
		},
		OnMessages: func(roomKey string, msgs []models.Message) {
			c.emit(event{Event: "messages", Room: roomKey, Messages: msgs})
		},
		OnPresence: func(userID string, st models.PresenceStatus) {
			c.emit(event{Event: "presence", User: userID, Status: &st})
		},
		OnTyping: func(roomKey, userID string, typing bool) {
			c.emit(event{Event: "typing", Room: roomKey, User: userID, Typing: typing})
		},
		OnUnread: func(total int) {
			c.emit(event{Event: "unread", Total: total})
		},
	})
	return c
}

// Run starts the read and write pumps.
func (c *wsClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *wsClient) close() {
	// Session teardown first so no hook fires into a closed send channel.
	c.session.Close()

	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.sendMu.Unlock()
}

func (c *wsClient) emit(ev event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error encoding event for %s: %v", c.user.ID, err)
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Printf("WARNING: dropping %s event for slow client %s", ev.Event, c.user.ID)
	}
}

func (c *wsClient) notice(key string) {
	c.emit(event{Event: "notice", Text: c.handler.Loc.Get(c.lang, key)})
}

func (c *wsClient) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.user.ID, err)
			continue
		}
		c.dispatch(cmd)
	}
}

func (c *wsClient) dispatch(cmd command) {
	ctx := context.Background()

	switch cmd.Action {
	case "open":
		if err := c.session.SwitchRoom(cmd.Room); err != nil {
			c.emit(event{Event: "error", Reason: err.Error()})
			return
		}
		// Opening a conversation means reading it.
		if err := c.session.MarkRead(ctx); err != nil {
			log.Printf("mark read in %s: %v", cmd.Room, err)
		}

	case "send":
		if err := c.session.Send(ctx, cmd.Text); err != nil {
			reason := "chat.send_failed"
			if errors.Is(err, chat.ErrEmptyMessage) {
				reason = "chat.empty_message"
			}
			// The draft travels back so no typed input is lost.
			c.emit(event{
				Event:  "send_failed",
				Draft:  cmd.Text,
				Reason: c.handler.Loc.Get(c.lang, reason),
			})
		}

	case "typing":
		c.session.Typing(ctx, cmd.Typing)

	case "read":
		if err := c.session.MarkRead(ctx); err != nil {
			log.Printf("mark read: %v", err)
		}

	case "start":
		if _, err := c.session.StartChat(ctx, cmd.Other); err != nil {
			c.emit(event{Event: "error", Reason: err.Error()})
			return
		}
		c.notice("chat.conversation_started")

	case "delete":
		if err := c.session.DeleteMessage(ctx, cmd.MessageID); err != nil {
			c.emit(event{Event: "error", Reason: err.Error()})
			return
		}
		c.notice("chat.message_removed")

	default:
		log.Printf("Unknown action %q from client %s", cmd.Action, c.user.ID)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
