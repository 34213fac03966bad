package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"brandlink/backend/internal/config"
	"brandlink/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomsRouter(h *Handler) *gin.Engine {
	router := gin.New()
	api := router.Group("/api", h.RequireAuth)
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:key/messages", h.RoomMessages)
	return router
}

func authedRequest(t *testing.T, h *Handler, method, target string) *http.Request {
	t.Helper()
	token, err := h.generateToken(&models.User{ID: "fr-2", DisplayName: "Kyiv Franchisee", Role: "franchisee"})
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestListRooms_ReturnsCallersRooms(t *testing.T) {
	db := new(MockStorage)
	db.On("RoomsForUser", "fr-2").Return([]models.RoomRecord{
		{RoomKey: "brand-1#fr-2", LastMessageText: "hello", LastMessageAt: 2000},
		{RoomKey: "brand-9#fr-2", LastMessageText: "older", LastMessageAt: 1000},
	}, nil)
	h := newTestHandler(db)

	w := httptest.NewRecorder()
	roomsRouter(h).ServeHTTP(w, authedRequest(t, h, http.MethodGet, "/api/rooms"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Rooms []models.RoomRecord `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, "brand-1#fr-2", resp.Rooms[0].RoomKey)
	db.AssertExpectations(t)
}

func TestListRooms_StorageFailure(t *testing.T) {
	db := new(MockStorage)
	db.On("RoomsForUser", "fr-2").Return(nil, errors.New("db down"))
	h := newTestHandler(db)

	w := httptest.NewRecorder()
	roomsRouter(h).ServeHTTP(w, authedRequest(t, h, http.MethodGet, "/api/rooms"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRoomMessages_ParticipantOnly(t *testing.T) {
	db := new(MockStorage)
	db.On("LoadMessages", "brand-1#fr-2", config.MessageWindowLimit).Return([]models.ArchivedMessage{
		{RoomKey: "brand-1#fr-2", MessageID: "m1", Body: "hello", SentAt: 1000},
	}, nil)
	h := newTestHandler(db)
	router := roomsRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, h, http.MethodGet, "/api/rooms/brand-1%23fr-2/messages"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "m1")
	db.AssertExpectations(t)

	// A room the caller does not participate in is forbidden, storage untouched.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(t, h, http.MethodGet, "/api/rooms/brand-1%23fr-99/messages"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoomMessages_LimitQuery(t *testing.T) {
	db := new(MockStorage)
	db.On("LoadMessages", "brand-1#fr-2", 5).Return([]models.ArchivedMessage{}, nil)
	h := newTestHandler(db)

	w := httptest.NewRecorder()
	roomsRouter(h).ServeHTTP(w, authedRequest(t, h, http.MethodGet, "/api/rooms/brand-1%23fr-2/messages?limit=5"))

	assert.Equal(t, http.StatusOK, w.Code)
	db.AssertExpectations(t)
}
