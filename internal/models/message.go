package models

import (
	"errors"
	"strings"
	"time"
)

// GlobalRoom is the always-open shared broadcast room.
const GlobalRoom = "global"

// LocalIDPrefix marks synthetic ids assigned to local echoes. Server ids
// are push-id strings and never start with it.
const LocalIDPrefix = "local_"

var ErrEmptyPayload = errors.New("message payload is empty")

// Message is one entry of a room's append-only log. ID is server-assigned,
// opaque, and sortable within a room; it is never parsed. SentAt is the
// client-supplied timestamp and is display-only.
type Message struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Avatar  string    `json:"avatar,omitempty"`
	SentAt  time.Time `json:"sent_at"`
	Pending bool      `json:"pending,omitempty"`
}

// IsLocalEcho reports whether the message carries a synthetic local id.
func (m Message) IsLocalEcho() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

// Validate checks the fields a confirmed remote message must carry.
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("message id is empty")
	}
	if strings.HasPrefix(m.ID, LocalIDPrefix) {
		return errors.New("message id collides with local echo id space")
	}
	if m.Author == "" {
		return errors.New("message author is empty")
	}
	if strings.TrimSpace(m.Body) == "" {
		return ErrEmptyPayload
	}
	return nil
}
