package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"overlay-sync/internal/models"
)

type RemoteClientMock struct {
	mock.Mock
}

func (m *RemoteClientMock) FetchRecent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, room, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *RemoteClientMock) FetchAfter(ctx context.Context, room string, sinceID string) ([]models.Message, error) {
	args := m.Called(ctx, room, sinceID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *RemoteClientMock) Append(ctx context.Context, room string, msg models.Message) (string, error) {
	args := m.Called(ctx, room, msg)
	return args.String(0), args.Error(1)
}

type RoomManagerMock struct {
	mock.Mock
}

func (m *RoomManagerMock) OpenRoom(room string) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *RoomManagerMock) CloseRoom(room string) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *RoomManagerMock) States() []models.RoomSyncState {
	args := m.Called()
	var states []models.RoomSyncState
	if val := args.Get(0); val != nil {
		states = val.([]models.RoomSyncState)
	}
	return states
}

func (m *RoomManagerMock) State(room string) (models.RoomSyncState, error) {
	args := m.Called(room)
	var state models.RoomSyncState
	if val := args.Get(0); val != nil {
		state = val.(models.RoomSyncState)
	}
	return state, args.Error(1)
}

func (m *RoomManagerMock) Connectivity() models.RoomStatus {
	args := m.Called()
	return args.Get(0).(models.RoomStatus)
}

type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) Send(room, body string) (models.Message, error) {
	args := m.Called(room, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *SenderMock) Notice(room, body string) (models.Message, error) {
	args := m.Called(room, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type HistoryMock struct {
	mock.Mock
}

func (m *HistoryMock) RecentMessages(ctx context.Context, room string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, room, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}
