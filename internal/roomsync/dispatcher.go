package roomsync

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"overlay-sync/internal/models"
	"overlay-sync/internal/observability"
	"overlay-sync/internal/remote"
)

// Dispatcher turns outbound sends into an immediate local echo plus a
// background append to the remote log. The echo reaches the sink before
// Send returns; the confirmed copy arrives later through the room loop
// and replaces it.
type Dispatcher struct {
	engine *Engine
	client remote.Client
	author string
	avatar string
}

// NewDispatcher builds a dispatcher sending as the given author profile.
func NewDispatcher(engine *Engine, client remote.Client, author, avatar string) *Dispatcher {
	return &Dispatcher{engine: engine, client: client, author: author, avatar: avatar}
}

// Send posts body to an open room. The returned message is the local echo
// already delivered to the sink; its id is synthetic and never appears in
// the remote log.
func (d *Dispatcher) Send(room, body string) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, models.ErrEmptyPayload
	}
	if !d.engine.IsOpen(room) {
		return models.Message{}, ErrRoomNotOpen
	}

	echo := models.Message{
		ID:      models.LocalIDPrefix + uuid.NewString(),
		Author:  d.author,
		Body:    body,
		Avatar:  d.avatar,
		SentAt:  time.Now(),
		Pending: true,
	}
	if err := d.engine.trackEcho(room, echo); err != nil {
		return models.Message{}, err
	}
	d.engine.sink.OnMessage(room, echo)

	go d.append(room, echo)
	return echo, nil
}

// append pushes the message to the remote log. A failure is logged and
// counted but not surfaced: the echo simply stays pending until the user
// retries, and a success that raced a slow response reconciles normally.
func (d *Dispatcher) append(room string, echo models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	serverID, err := d.client.Append(ctx, room, echo)
	if err != nil {
		observability.IncAppend("error")
		log.Printf("room %s: append failed for %s: %v", room, echo.ID, err)
		return
	}
	observability.IncAppend("ok")
	log.Printf("room %s: echo %s stored as %s", room, echo.ID, serverID)
}

// Notice delivers a message to the local view only. It is never appended
// to the remote log and other participants never see it.
func (d *Dispatcher) Notice(room, body string) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, models.ErrEmptyPayload
	}
	if !d.engine.IsOpen(room) {
		return models.Message{}, ErrRoomNotOpen
	}

	notice := models.Message{
		ID:     models.LocalIDPrefix + uuid.NewString(),
		Author: "system",
		Body:   body,
		SentAt: time.Now(),
	}
	d.engine.sink.OnMessage(room, notice)
	return notice, nil
}
