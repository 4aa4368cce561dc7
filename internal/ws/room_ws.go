package ws

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"overlay-sync/internal/observability"
)

// RoomChecker tells the handler whether a room currently has a sync loop.
type RoomChecker interface {
	IsOpen(room string) bool
}

// SocketHandler upgrades websocket subscriptions for room events and the
// firehose.
type SocketHandler struct {
	hub      *Hub
	rooms    RoomChecker
	apiToken string
}

// NewSocketHandler constructs a SocketHandler. An empty apiToken disables
// authentication.
func NewSocketHandler(hub *Hub, rooms RoomChecker, apiToken string) *SocketHandler {
	return &SocketHandler{hub: hub, rooms: rooms, apiToken: apiToken}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *SocketHandler) authorized(c *gin.Context) bool {
	if h.apiToken == "" {
		return true
	}
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.apiToken)) == 1
}

// HandleRoom subscribes one connection to a single open room.
func (h *SocketHandler) HandleRoom(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	room := c.Param("room")
	if !h.rooms.IsOpen(room) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room is not open"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{ConnID: newConnID(), IP: c.ClientIP(), ConnectedAt: time.Now()}
	h.hub.AddRoomClient(room, conn, info)
	observability.IncWSActive()

	// The read loop exists only to notice the close.
	go func() {
		defer func() {
			h.hub.RemoveRoomClient(room, conn)
			observability.DecWSActive()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleEvents subscribes one connection to every event the engine emits.
func (h *SocketHandler) HandleEvents(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{ConnID: newConnID(), IP: c.ClientIP(), ConnectedAt: time.Now()}
	h.hub.AddEventClient(conn, info)
	observability.IncWSActive()

	go func() {
		defer func() {
			h.hub.RemoveEventClient(conn)
			observability.DecWSActive()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
