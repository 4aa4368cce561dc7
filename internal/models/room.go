package models

import "time"

// RoomStatus is the connectivity state of one room's sync loop.
type RoomStatus int

const (
	// StatusHealthy means the last poll succeeded.
	StatusHealthy RoomStatus = iota
	// StatusDegraded means at least one consecutive poll has failed.
	StatusDegraded
	// StatusStopped means the room was closed; terminal.
	StatusStopped
)

// String returns the lowercase wire name of the status.
func (s RoomStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string name.
func (s RoomStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// RoomSyncState is a point-in-time snapshot of one room's loop.
type RoomSyncState struct {
	Room                string     `json:"room"`
	Cursor              string     `json:"cursor,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastPollAt          time.Time  `json:"last_poll_at,omitempty"`
	Status              RoomStatus `json:"status"`
}
