// Package remote talks to the append-only message log backing all rooms.
// The store offers pull only; there is no push channel.
package remote

import (
	"context"

	"overlay-sync/internal/models"
)

// Client is the capability the sync engine needs from the remote log.
//
// Both fetch calls return messages oldest first ("newest-last") and may
// return fewer entries than asked for. FetchAfter returns only messages
// strictly newer than sinceID; an empty slice is a normal success.
type Client interface {
	FetchRecent(ctx context.Context, room string, limit int) ([]models.Message, error)
	FetchAfter(ctx context.Context, room, sinceID string) ([]models.Message, error)
	Append(ctx context.Context, room string, msg models.Message) (string, error)
}
