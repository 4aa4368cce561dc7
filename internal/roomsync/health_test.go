package roomsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"overlay-sync/internal/models"
)

type recordingSink struct {
	roomStatuses []string
	connectivity []models.RoomStatus
}

func (r *recordingSink) OnMessage(string, models.Message)                 {}
func (r *recordingSink) OnEchoReconciled(string, string, models.Message) {}

func (r *recordingSink) OnRoomStatusChanged(room string, status models.RoomStatus) {
	r.roomStatuses = append(r.roomStatuses, room+":"+status.String())
}

func (r *recordingSink) OnConnectivityChanged(status models.RoomStatus) {
	r.connectivity = append(r.connectivity, status)
}

func TestHealthFollowsGlobalRoomOnly(t *testing.T) {
	sink := &recordingSink{}
	h := newHealth(sink)

	h.setStatus(models.GlobalRoom, models.StatusHealthy)
	h.setStatus("ops", models.StatusDegraded)
	assert.Equal(t, models.StatusHealthy, h.connectivity())
	assert.Empty(t, sink.connectivity)

	h.setStatus(models.GlobalRoom, models.StatusDegraded)
	assert.Equal(t, models.StatusDegraded, h.connectivity())
	assert.Equal(t, []models.RoomStatus{models.StatusDegraded}, sink.connectivity)

	h.setStatus(models.GlobalRoom, models.StatusHealthy)
	assert.Equal(t, models.StatusHealthy, h.connectivity())
	assert.Equal(t,
		[]models.RoomStatus{models.StatusDegraded, models.StatusHealthy},
		sink.connectivity)
}

func TestHealthEveryTransitionReachesTheSink(t *testing.T) {
	sink := &recordingSink{}
	h := newHealth(sink)

	h.setStatus("ops", models.StatusHealthy)
	h.setStatus("ops", models.StatusDegraded)
	assert.Equal(t, []string{"ops:healthy", "ops:degraded"}, sink.roomStatuses)
}

func TestHealthRemoveRoomDropsSnapshotEntry(t *testing.T) {
	sink := &recordingSink{}
	h := newHealth(sink)

	h.setStatus(models.GlobalRoom, models.StatusHealthy)
	h.setStatus("ops", models.StatusDegraded)
	assert.Len(t, h.statuses(), 2)

	h.removeRoom("ops")
	statuses := h.statuses()
	assert.Len(t, statuses, 1)
	_, ok := statuses["ops"]
	assert.False(t, ok)
}
