package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"overlay-sync/internal/models"
)

// Hub fans sync events out to websocket subscribers. It is the engine's
// sink: room loops call the On* methods and every subscriber of that room
// plus every firehose subscriber gets the event as JSON.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*websocket.Conn]ConnInfo
	firehose map[*websocket.Conn]ConnInfo
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]ConnInfo),
		firehose: make(map[*websocket.Conn]ConnInfo),
	}
}

// AddRoomClient registers a websocket connection for one room's events.
func (h *Hub) AddRoomClient(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]ConnInfo)
	}
	h.rooms[room][conn] = info
}

// RemoveRoomClient removes a room websocket connection.
func (h *Hub) RemoveRoomClient(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// AddEventClient registers a firehose connection that receives every
// event regardless of room.
func (h *Hub) AddEventClient(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.firehose[conn] = info
}

// RemoveEventClient removes a firehose connection.
func (h *Hub) RemoveEventClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.firehose, conn)
}

func (h *Hub) OnMessage(room string, msg models.Message) {
	h.broadcast(models.RoomEvent{Type: models.EventMessage, Room: room, Message: &msg})
}

func (h *Hub) OnEchoReconciled(room string, previousEchoID string, msg models.Message) {
	h.broadcast(models.RoomEvent{
		Type:           models.EventEchoReconciled,
		Room:           room,
		Message:        &msg,
		PreviousEchoID: previousEchoID,
	})
}

func (h *Hub) OnRoomStatusChanged(room string, status models.RoomStatus) {
	h.broadcast(models.RoomEvent{Type: models.EventRoomStatus, Room: room, Status: status})
}

func (h *Hub) OnConnectivityChanged(status models.RoomStatus) {
	h.broadcast(models.RoomEvent{Type: models.EventConnectivity, Status: status})
}

func (h *Hub) broadcast(event models.RoomEvent) {
	payload, _ := json.Marshal(event)

	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.firehose)+8)
	seen := make(map[*websocket.Conn]bool, len(h.firehose)+8)
	for conn := range h.rooms[event.Room] {
		targets = append(targets, conn)
		seen[conn] = true
	}
	for conn := range h.firehose {
		if !seen[conn] {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveRoomClient(event.Room, conn)
			h.RemoveEventClient(conn)
		}
	}
}
