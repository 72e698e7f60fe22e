package store

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) GetRoom(id string) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) TouchActivity(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRepository) DeleteRoom(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRepository) ListInactiveRooms(threshold time.Duration) ([]Room, error) {
	args := m.Called(threshold)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockRepository) AppendMessage(params AppendMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) ListMessages(roomId string) ([]Message, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) DeleteMessages(roomId string) error {
	args := m.Called(roomId)
	return args.Error(0)
}
func (m *MockRepository) AddParticipant(roomId string, p Participant) error {
	args := m.Called(roomId, p)
	return args.Error(0)
}
func (m *MockRepository) RemoveParticipant(roomId, handle string) error {
	args := m.Called(roomId, handle)
	return args.Error(0)
}
func (m *MockRepository) ListParticipants(roomId string) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
