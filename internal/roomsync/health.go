package roomsync

import (
	"sync"

	"overlay-sync/internal/models"
)

// health aggregates per-room statuses into the single connectivity signal
// the UI shows. Only the global room drives the signal: a degraded side
// room stays a per-room detail and never flips the indicator.
type health struct {
	mu      sync.Mutex
	rooms   map[string]models.RoomStatus
	overall models.RoomStatus
	sink    Sink
}

func newHealth(sink Sink) *health {
	return &health{
		rooms:   make(map[string]models.RoomStatus),
		overall: models.StatusHealthy,
		sink:    sink,
	}
}

// setStatus records a room transition and re-derives the overall signal.
func (h *health) setStatus(room string, status models.RoomStatus) {
	h.mu.Lock()
	h.rooms[room] = status
	changed := h.refreshLocked()
	overall := h.overall
	h.mu.Unlock()

	h.sink.OnRoomStatusChanged(room, status)
	if changed {
		h.sink.OnConnectivityChanged(overall)
	}
}

// removeRoom forgets a closed room so a stale degraded entry cannot
// resurface in snapshots.
func (h *health) removeRoom(room string) {
	h.mu.Lock()
	delete(h.rooms, room)
	changed := h.refreshLocked()
	overall := h.overall
	h.mu.Unlock()

	if changed {
		h.sink.OnConnectivityChanged(overall)
	}
}

func (h *health) refreshLocked() bool {
	next := models.StatusHealthy
	if s, ok := h.rooms[models.GlobalRoom]; ok {
		next = s
	}
	if next == h.overall {
		return false
	}
	h.overall = next
	return true
}

// connectivity returns the current aggregated signal.
func (h *health) connectivity() models.RoomStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.overall
}

// statuses returns a copy of the per-room status map.
func (h *health) statuses() map[string]models.RoomStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]models.RoomStatus, len(h.rooms))
	for room, s := range h.rooms {
		out[room] = s
	}
	return out
}
