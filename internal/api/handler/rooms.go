package handler

import (
	"net/http"
	"strconv"

	"brandlink/backend/internal/chat"
	"brandlink/backend/internal/config"

	"github.com/gin-gonic/gin"
)

// ListRooms returns the caller's conversations from the archive, most
// recently active first. The marketplace screens read history through here;
// live updates flow over the WebSocket gateway.
func (h *Handler) ListRooms(c *gin.Context) {
	identity := identityFrom(c)
	rooms, err := h.DB.RoomsForUser(identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// RoomMessages returns the most recent messages of one room. Only the room's
// participants may read it.
func (h *Handler) RoomMessages(c *gin.Context) {
	identity := identityFrom(c)
	key := c.Param("key")
	if !chat.RoomKeyContains(key, identity.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this room"})
		return
	}

	limit := config.MessageWindowLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	msgs, err := h.DB.LoadMessages(key, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
