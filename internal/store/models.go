package store

import "time"

type Room struct {
	Id             string
	PasswordHash   string
	CreatedAt      time.Time
	LastActivityAt time.Time
	// ParticipantCount is derived from the room's participant set on
	// every read, never stored.
	ParticipantCount int
}

type Message struct {
	Id             string
	RoomId         string
	SenderId       string
	SenderNickname string
	Content        string
	CreatedAt      time.Time
}

type Participant struct {
	Id               string
	Nickname         string
	ConnectionHandle string
	JoinedAt         time.Time
}

type CreateRoomParams struct {
	Id           string
	PasswordHash string
}

type AppendMessageParams struct {
	RoomId         string
	SenderId       string
	SenderNickname string
	Content        string
}
