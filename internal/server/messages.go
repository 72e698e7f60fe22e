package server

import (
	"time"

	"popchat/internal/types"
)

// Inbound event types.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// Outbound event types.
const (
	EventRoomJoined        = "room_joined"
	EventParticipantUpdate = "participant_update"
	EventNewMessage        = "new_message"
	EventTypingUpdate      = "typing_update"
	EventRoomDestroyed     = "room_destroyed"
	EventError             = "error"
)

// EventMessageRead is relayed in both directions.
const EventMessageRead = "message_read"

// ClientEvent is an inbound frame. Unknown or malformed frames map to the
// protocol-error path before dispatch.
type ClientEvent struct {
	Type      string `json:"type"`
	RoomId    string `json:"roomId,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Message   string `json:"message,omitempty"`
	MessageId string `json:"messageId,omitempty"`
	Password  string `json:"password,omitempty"`

	client *Client
	// done, when set on a leave, is closed once the room has finished
	// shedding the connection's participant state
	done chan struct{}
}

// ServerEvent is an outbound frame.
type ServerEvent struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type RoomJoinedData struct {
	RoomId      string            `json:"roomId"`
	Participant types.Participant `json:"participant"`
	Messages    []types.Message   `json:"messages"`
}

type ParticipantUpdateData struct {
	Participants []types.Participant `json:"participants"`
	Count        int                 `json:"count"`
}

type TypingUpdateData struct {
	UserId   string `json:"userId"`
	Nickname string `json:"nickname"`
	IsTyping bool   `json:"isTyping"`
}

type MessageReadData struct {
	MessageId      string `json:"messageId"`
	ReaderId       string `json:"readerId"`
	ReaderNickname string `json:"readerNickname"`
}

type RoomDestroyedData struct {
	RoomId string `json:"roomId"`
}

func RoomJoined(roomId string, p types.Participant, messages []types.Message) *ServerEvent {
	if messages == nil {
		messages = []types.Message{}
	}

	return &ServerEvent{
		Type: EventRoomJoined,
		Data: RoomJoinedData{
			RoomId:      roomId,
			Participant: p,
			Messages:    messages,
		},
	}
}

func ParticipantUpdate(participants []types.Participant) *ServerEvent {
	if participants == nil {
		participants = []types.Participant{}
	}

	return &ServerEvent{
		Type: EventParticipantUpdate,
		Data: ParticipantUpdateData{
			Participants: participants,
			Count:        len(participants),
		},
	}
}

func NewMessage(msg types.Message) *ServerEvent {
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}
	if msg.DeliveredTo == nil {
		msg.DeliveredTo = []string{}
	}

	return &ServerEvent{
		Type: EventNewMessage,
		Data: msg,
	}
}

func TypingUpdate(userId, nickname string, isTyping bool) *ServerEvent {
	return &ServerEvent{
		Type: EventTypingUpdate,
		Data: TypingUpdateData{
			UserId:   userId,
			Nickname: nickname,
			IsTyping: isTyping,
		},
	}
}

func MessageRead(messageId, readerId, readerNickname string) *ServerEvent {
	return &ServerEvent{
		Type: EventMessageRead,
		Data: MessageReadData{
			MessageId:      messageId,
			ReaderId:       readerId,
			ReaderNickname: readerNickname,
		},
	}
}

func RoomDestroyed(roomId string) *ServerEvent {
	return &ServerEvent{
		Type: EventRoomDestroyed,
		Data: RoomDestroyedData{RoomId: roomId},
	}
}

func ErrorEvent(msg string) *ServerEvent {
	return &ServerEvent{
		Type:  EventError,
		Error: msg,
	}
}

func ErrRoomNotFound() *ServerEvent { return ErrorEvent("room not found") }

func ErrNotJoined() *ServerEvent { return ErrorEvent("not joined to a room") }

func ErrEmptyMessage() *ServerEvent { return ErrorEvent("message cannot be empty") }

func ErrInvalidMessage() *ServerEvent { return ErrorEvent("invalid message format") }

func ErrInvalidPassword() *ServerEvent { return ErrorEvent("invalid room password") }

func ErrInternalError() *ServerEvent { return ErrorEvent("internal server error") }

func ErrServiceUnavailable() *ServerEvent { return ErrorEvent("service unavailable") }

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
