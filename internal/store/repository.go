package store

import (
	"errors"
	"time"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// Repository is the persistence collaborator behind the chat server. The
// server behaves identically regardless of which implementation backs it.
type Repository interface {
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoom(id string) (Room, error)
	TouchActivity(id string) error
	// DeleteRoom cascades to the room's messages and participants.
	DeleteRoom(id string) error
	ListInactiveRooms(threshold time.Duration) ([]Room, error)
	AppendMessage(params AppendMessageParams) (Message, error)
	ListMessages(roomId string) ([]Message, error)
	DeleteMessages(roomId string) error
	// AddParticipant is idempotent on the connection handle: a second add
	// for the same handle replaces the earlier entry.
	AddParticipant(roomId string, p Participant) error
	RemoveParticipant(roomId, handle string) error
	ListParticipants(roomId string) ([]Participant, error)
}
