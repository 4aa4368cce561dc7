package roomsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"overlay-sync/internal/mocks"
	"overlay-sync/internal/models"
	"overlay-sync/internal/roomsync"
)

const (
	evMessage      = "message"
	evReconciled   = "reconciled"
	evRoomStatus   = "room_status"
	evConnectivity = "connectivity"
)

type sinkEvent struct {
	kind       string
	room       string
	msg        models.Message
	prevEchoID string
	status     models.RoomStatus
}

// captureSink records engine callbacks on a channel so tests can wait for
// them without sleeping.
type captureSink struct {
	events chan sinkEvent
}

func newCaptureSink() *captureSink {
	return &captureSink{events: make(chan sinkEvent, 256)}
}

func (s *captureSink) OnMessage(room string, msg models.Message) {
	s.events <- sinkEvent{kind: evMessage, room: room, msg: msg}
}

func (s *captureSink) OnEchoReconciled(room string, previousEchoID string, msg models.Message) {
	s.events <- sinkEvent{kind: evReconciled, room: room, msg: msg, prevEchoID: previousEchoID}
}

func (s *captureSink) OnRoomStatusChanged(room string, status models.RoomStatus) {
	s.events <- sinkEvent{kind: evRoomStatus, room: room, status: status}
}

func (s *captureSink) OnConnectivityChanged(status models.RoomStatus) {
	s.events <- sinkEvent{kind: evConnectivity, status: status}
}

// next returns the first recorded event of one of the given kinds,
// discarding others, or fails the test after two seconds.
func (s *captureSink) next(t *testing.T, kinds ...string) sinkEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.events:
			for _, k := range kinds {
				if ev.kind == k {
					return ev
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v event", kinds)
			return sinkEvent{}
		}
	}
}

func fastConfig() roomsync.Config {
	return roomsync.Config{
		PollInterval:    5 * time.Millisecond,
		InitialPageSize: 40,
		BackoffBase:     time.Millisecond,
		BackoffCap:      4,
	}
}

func msg(id, author, body string) models.Message {
	return models.Message{ID: id, Author: author, Body: body, SentAt: time.Now()}
}

func TestEngineInitialFetchThenIncremental(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	sink := newCaptureSink()

	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		Return([]models.Message{msg("a", "ana", "one"), msg("b", "bob", "two"), msg("c", "ana", "three")}, nil).Once()
	client.On("FetchAfter", mock.Anything, models.GlobalRoom, "c").
		Return([]models.Message(nil), nil).Once()
	client.On("FetchAfter", mock.Anything, models.GlobalRoom, "c").
		Return([]models.Message{msg("d", "bob", "four")}, nil).Once()
	client.On("FetchAfter", mock.Anything, models.GlobalRoom, "d").
		Return([]models.Message(nil), nil)

	engine := roomsync.NewEngine(client, sink, fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Shutdown()

	for _, want := range []string{"a", "b", "c", "d"} {
		ev := sink.next(t, evMessage)
		assert.Equal(t, models.GlobalRoom, ev.room)
		assert.Equal(t, want, ev.msg.ID)
	}

	state, err := engine.State(models.GlobalRoom)
	require.NoError(t, err)
	assert.Equal(t, "d", state.Cursor)
	assert.Equal(t, models.StatusHealthy, state.Status)
}

func TestEngineBackoffAndRecovery(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	sink := newCaptureSink()

	fetchErr := errors.New("upstream unavailable")
	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		Return([]models.Message(nil), fetchErr).Times(5)
	// Hold the recovery back until the test has seen the failure count.
	resume := make(chan time.Time, 1)
	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		WaitUntil(resume).
		Return([]models.Message{msg("a", "ana", "back")}, nil).Once()
	client.On("FetchAfter", mock.Anything, models.GlobalRoom, "a").
		Return([]models.Message(nil), nil)

	engine := roomsync.NewEngine(client, sink, fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Shutdown()

	// Opening reports healthy, the first failure flips to degraded.
	ev := sink.next(t, evRoomStatus)
	assert.Equal(t, models.StatusHealthy, ev.status)
	ev = sink.next(t, evRoomStatus)
	assert.Equal(t, models.StatusDegraded, ev.status)

	// The global room drives the connectivity signal.
	ev = sink.next(t, evConnectivity)
	assert.Equal(t, models.StatusDegraded, ev.status)

	assert.Eventually(t, func() bool {
		state, err := engine.State(models.GlobalRoom)
		return err == nil && state.ConsecutiveFailures == 5
	}, 2*time.Second, 2*time.Millisecond)
	resume <- time.Now()

	// A failed poll never advances the cursor, so recovery still runs
	// the initial fetch and delivers the page.
	got := sink.next(t, evMessage)
	assert.Equal(t, "a", got.msg.ID)

	ev = sink.next(t, evConnectivity)
	assert.Equal(t, models.StatusHealthy, ev.status)

	state, err := engine.State(models.GlobalRoom)
	require.NoError(t, err)
	assert.Equal(t, 0, state.ConsecutiveFailures)
	assert.Equal(t, models.StatusHealthy, state.Status)
}

func TestEngineSuppressesDuplicates(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	sink := newCaptureSink()

	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		Return([]models.Message{msg("a", "ana", "one"), msg("b", "bob", "two")}, nil).Once()
	// The remote replays b at the page boundary.
	client.On("FetchAfter", mock.Anything, models.GlobalRoom, "b").
		Return([]models.Message{msg("b", "bob", "two"), msg("c", "ana", "three")}, nil).Once()
	client.On("FetchAfter", mock.Anything, models.GlobalRoom, "c").
		Return([]models.Message(nil), nil)

	engine := roomsync.NewEngine(client, sink, fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Shutdown()

	var ids []string
	for len(ids) < 3 {
		ids = append(ids, sink.next(t, evMessage).msg.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	state, err := engine.State(models.GlobalRoom)
	require.NoError(t, err)
	assert.Equal(t, "c", state.Cursor)
}

func TestEngineOpenRoomIsIdempotent(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	sink := newCaptureSink()

	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		Return([]models.Message{msg("g1", "ana", "hi")}, nil).Once()
	client.On("FetchAfter", mock.Anything, models.GlobalRoom, "g1").
		Return([]models.Message(nil), nil)
	client.On("FetchRecent", mock.Anything, "ops", 40).
		Return([]models.Message{msg("o1", "bob", "yo")}, nil).Once()
	client.On("FetchAfter", mock.Anything, "ops", "o1").
		Return([]models.Message(nil), nil)

	engine := roomsync.NewEngine(client, sink, fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Shutdown()

	require.NoError(t, engine.OpenRoom("ops"))
	require.NoError(t, engine.OpenRoom("ops"))
	assert.True(t, engine.IsOpen("ops"))

	ev := sink.next(t, evMessage)
	for ev.room != "ops" {
		ev = sink.next(t, evMessage)
	}
	assert.Equal(t, "o1", ev.msg.ID)

	// One loop only: a second page fetch for ops would panic the mock.
	time.Sleep(30 * time.Millisecond)
	client.AssertNumberOfCalls(t, "FetchRecent", 2)

	assert.Len(t, engine.States(), 2)
}

func TestEngineCloseRoomDiscardsCursor(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	sink := newCaptureSink()

	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		Return([]models.Message(nil), nil)
	// Each open starts from scratch, so the same page comes back.
	client.On("FetchRecent", mock.Anything, "ops", 40).
		Return([]models.Message{msg("o1", "bob", "yo")}, nil)
	client.On("FetchAfter", mock.Anything, "ops", "o1").
		Return([]models.Message(nil), nil)

	engine := roomsync.NewEngine(client, sink, fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Shutdown()

	require.NoError(t, engine.OpenRoom("ops"))
	first := sink.next(t, evMessage)
	assert.Equal(t, "o1", first.msg.ID)

	require.NoError(t, engine.CloseRoom("ops"))
	assert.False(t, engine.IsOpen("ops"))
	_, err := engine.State("ops")
	assert.ErrorIs(t, err, roomsync.ErrRoomNotOpen)

	// Reopening runs a fresh initial fetch and redelivers o1.
	require.NoError(t, engine.OpenRoom("ops"))
	second := sink.next(t, evMessage)
	assert.Equal(t, "o1", second.msg.ID)
}

func TestEngineRefusesClosingGlobalRoom(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		Return([]models.Message(nil), nil)

	engine := roomsync.NewEngine(client, newCaptureSink(), fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Shutdown()

	assert.ErrorIs(t, engine.CloseRoom(models.GlobalRoom), roomsync.ErrGlobalRoom)
	assert.ErrorIs(t, engine.CloseRoom("never-opened"), roomsync.ErrRoomNotOpen)
	assert.ErrorIs(t, engine.OpenRoom("  "), roomsync.ErrInvalidRoom)
}

func TestEngineSideRoomDoesNotDegradeConnectivity(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	sink := newCaptureSink()

	client.On("FetchRecent", mock.Anything, models.GlobalRoom, 40).
		Return([]models.Message(nil), nil)
	client.On("FetchRecent", mock.Anything, "flaky", 40).
		Return([]models.Message(nil), errors.New("boom"))

	engine := roomsync.NewEngine(client, sink, fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Shutdown()

	require.NoError(t, engine.OpenRoom("flaky"))

	ev := sink.next(t, evRoomStatus)
	for ev.room != "flaky" || ev.status != models.StatusDegraded {
		ev = sink.next(t, evRoomStatus)
	}

	assert.Equal(t, models.StatusHealthy, engine.Connectivity())

	state, err := engine.State("flaky")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDegraded, state.Status)
	assert.GreaterOrEqual(t, state.ConsecutiveFailures, 1)
}

func TestEngineShutdownStopsEverything(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	sink := newCaptureSink()

	client.On("FetchRecent", mock.Anything, mock.Anything, 40).
		Return([]models.Message(nil), nil)

	engine := roomsync.NewEngine(client, sink, fastConfig())
	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.OpenRoom("ops"))

	engine.Shutdown()
	assert.ErrorIs(t, engine.OpenRoom("late"), roomsync.ErrEngineStopped)
	assert.Empty(t, engine.States())
}
