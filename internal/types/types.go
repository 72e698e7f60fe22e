package types

import (
	"time"
)

type Room struct {
	Id               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	LastActivityAt   time.Time `json:"lastActivityAt,omitempty"`
	ParticipantCount int       `json:"participantCount"`
}

type Participant struct {
	Id       string    `json:"id"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Message struct {
	Id             string    `json:"id"`
	RoomId         string    `json:"roomId"`
	SenderId       string    `json:"senderId"`
	SenderNickname string    `json:"senderNickname"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	// ReadBy and DeliveredTo are client-side projections. The server
	// relays read receipts but never stores them, so both are always
	// empty on outbound messages.
	ReadBy      []string `json:"readBy"`
	DeliveredTo []string `json:"deliveredTo"`
}
