package models

// Event types carried by RoomEvent.Type.
const (
	EventMessage        = "message"
	EventEchoReconciled = "echo_reconciled"
	EventRoomStatus     = "room_status"
	EventConnectivity   = "connectivity"
)

// RoomEvent is the envelope delivered to the UI collaborator, both
// in-process and over the websocket fan-out.
type RoomEvent struct {
	Type           string     `json:"type"`
	Room           string     `json:"room,omitempty"`
	Message        *Message   `json:"message,omitempty"`
	PreviousEchoID string     `json:"previous_echo_id,omitempty"`
	Status         RoomStatus `json:"status"`
}
