package history

import (
	"context"
	"log"
	"time"

	"overlay-sync/internal/models"
)

// Recorder is a sync sink that mirrors delivered messages into the
// archive. Archive errors are logged and dropped; the archive is a
// convenience, never a gate on delivery.
type Recorder struct {
	store *Store
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) OnMessage(room string, msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.InsertMessage(ctx, room, msg); err != nil {
		log.Printf("history: archive %s in %s: %v", msg.ID, room, err)
	}
}

func (r *Recorder) OnEchoReconciled(room string, previousEchoID string, msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.MarkReconciled(ctx, room, previousEchoID, msg); err != nil {
		log.Printf("history: reconcile %s -> %s in %s: %v", previousEchoID, msg.ID, room, err)
	}
}

func (r *Recorder) OnRoomStatusChanged(string, models.RoomStatus) {}

func (r *Recorder) OnConnectivityChanged(models.RoomStatus) {}
