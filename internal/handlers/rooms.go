package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"overlay-sync/internal/models"
	"overlay-sync/internal/roomsync"
)

// RoomManager is the slice of the sync engine the HTTP surface needs.
type RoomManager interface {
	OpenRoom(room string) error
	CloseRoom(room string) error
	States() []models.RoomSyncState
	State(room string) (models.RoomSyncState, error)
	Connectivity() models.RoomStatus
}

// Sender dispatches outbound messages and local notices.
type Sender interface {
	Send(room, body string) (models.Message, error)
	Notice(room, body string) (models.Message, error)
}

// HistoryReader serves archived messages.
type HistoryReader interface {
	RecentMessages(ctx context.Context, room string, limit int) ([]models.Message, error)
}

// RoomHandler manages the room control endpoints.
type RoomHandler struct {
	manager RoomManager
	sender  Sender
	history HistoryReader
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(manager RoomManager, sender Sender, history HistoryReader) *RoomHandler {
	return &RoomHandler{manager: manager, sender: sender, history: history}
}

// ListRooms returns every open room's sync state plus the aggregated
// connectivity signal.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rooms":        h.manager.States(),
		"connectivity": h.manager.Connectivity(),
	})
}

// OpenRoom starts syncing a room. Opening twice is fine.
func (h *RoomHandler) OpenRoom(c *gin.Context) {
	room := c.Param("room")
	if err := h.manager.OpenRoom(room); err != nil {
		switch {
		case errors.Is(err, roomsync.ErrInvalidRoom):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
		case errors.Is(err, roomsync.ErrEngineStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine is shutting down"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open room"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "open": true})
}

// CloseRoom stops a room's loop. The global room is refused.
func (h *RoomHandler) CloseRoom(c *gin.Context) {
	room := c.Param("room")
	if err := h.manager.CloseRoom(room); err != nil {
		switch {
		case errors.Is(err, roomsync.ErrGlobalRoom):
			c.JSON(http.StatusForbidden, gin.H{"error": "the global room cannot be closed"})
		case errors.Is(err, roomsync.ErrRoomNotOpen):
			c.JSON(http.StatusNotFound, gin.H{"error": "room is not open"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not close room"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "open": false})
}

// GetRoom returns one room's sync state.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	state, err := h.manager.State(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room is not open"})
		return
	}
	c.JSON(http.StatusOK, state)
}

// SendMessage posts a message to a room and returns the local echo. The
// remote append finishes in the background, hence 202.
func (h *RoomHandler) SendMessage(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	echo, err := h.sender.Send(c.Param("room"), req.Body)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message body is empty"})
		case errors.Is(err, roomsync.ErrRoomNotOpen):
			c.JSON(http.StatusNotFound, gin.H{"error": "room is not open"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": echo})
}

// PostNotice injects a local-only notice into a room's view.
func (h *RoomHandler) PostNotice(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notice, err := h.sender.Notice(c.Param("room"), req.Body)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "notice body is empty"})
		case errors.Is(err, roomsync.ErrRoomNotOpen):
			c.JSON(http.StatusNotFound, gin.H{"error": "room is not open"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not post notice"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": notice})
}

// GetHistory returns archived messages for a room, oldest first.
func (h *RoomHandler) GetHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	msgs, err := h.history.RecentMessages(c.Request.Context(), c.Param("room"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Healthz reports the aggregated connectivity signal. Degraded sync maps
// to 503 so probes can see it without parsing the body.
func (h *RoomHandler) Healthz(c *gin.Context) {
	status := h.manager.Connectivity()
	code := http.StatusOK
	if status != models.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status})
}
