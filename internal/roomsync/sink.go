// Package roomsync keeps the local view of every open room consistent with
// the remote append-only log. One polling loop per room, a dedup ledger
// per loop, and a scheduler that owns the set of open rooms.
package roomsync

import (
	"log"

	"overlay-sync/internal/models"
)

// Sink receives everything the engine delivers to the UI collaborator.
// Implementations must return quickly; they are called from the room
// loops' own goroutines.
type Sink interface {
	// OnMessage delivers a new message (or a local echo) exactly once
	// per room.
	OnMessage(room string, msg models.Message)
	// OnEchoReconciled replaces the pending echo previousEchoID with the
	// confirmed message, so the UI updates the bubble in place.
	OnEchoReconciled(room string, previousEchoID string, msg models.Message)
	// OnRoomStatusChanged reports one room loop's status transitions.
	OnRoomStatusChanged(room string, status models.RoomStatus)
	// OnConnectivityChanged reports the aggregated user-visible signal.
	OnConnectivityChanged(status models.RoomStatus)
}

// MultiSink fans every callback out to each sink in order.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) OnMessage(room string, msg models.Message) {
	for _, s := range m {
		s.OnMessage(room, msg)
	}
}

func (m multiSink) OnEchoReconciled(room string, previousEchoID string, msg models.Message) {
	for _, s := range m {
		s.OnEchoReconciled(room, previousEchoID, msg)
	}
}

func (m multiSink) OnRoomStatusChanged(room string, status models.RoomStatus) {
	for _, s := range m {
		s.OnRoomStatusChanged(room, status)
	}
}

func (m multiSink) OnConnectivityChanged(status models.RoomStatus) {
	for _, s := range m {
		s.OnConnectivityChanged(status)
	}
}

// LogSink writes deliveries to the process log. Used when the engine
// runs headless.
type LogSink struct{}

func (LogSink) OnMessage(room string, msg models.Message) {
	log.Printf("room %s: %s: %s", room, msg.Author, msg.Body)
}

func (LogSink) OnEchoReconciled(room string, previousEchoID string, msg models.Message) {
	log.Printf("room %s: echo %s confirmed as %s", room, previousEchoID, msg.ID)
}

func (LogSink) OnRoomStatusChanged(room string, status models.RoomStatus) {
	log.Printf("room %s: status %s", room, status)
}

func (LogSink) OnConnectivityChanged(status models.RoomStatus) {
	log.Printf("connectivity: %s", status)
}
