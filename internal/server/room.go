package server

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"popchat/internal/store"
	"popchat/internal/types"
)

// sessionIdleTimeout unloads a room's event loop once its last connection
// is gone. The room record itself stays in the store until the idle reaper
// or an explicit destroy removes it.
const sessionIdleTimeout = 30 * time.Second

const defaultNickname = "Anonymous"

type exitReq struct {
	destroyed bool
	done      chan error
}

// Room is the live session for one room: a single event loop that applies
// the {mutate store, update registry, broadcast} sequence for every event,
// which keeps per-room state consistent and broadcast order equal to
// mutation order.
type Room struct {
	id        string
	cs        *ChatServer
	log       *log.Logger
	joinChan  chan *ClientEvent
	leaveChan chan *ClientEvent
	eventChan chan *ClientEvent
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func (r *Room) start() {
	r.log.Printf("starting session for room %q", r.id)
	r.killTimer = time.NewTimer(sessionIdleTimeout)
	r.killTimer.Stop()

	defer close(r.done)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leave := <-r.leaveChan:
			r.handleLeave(leave)
		case event := <-r.eventChan:
			r.handleEvent(event)
		case <-r.killTimer.C:
			r.handleSessionTimeout()
		case e := <-r.exit:
			r.handleExit(e)
			return
		}
	}
}

func (r *Room) routeLeave(event *ClientEvent) {
	select {
	case r.leaveChan <- event:
	default:
		r.log.Printf("leave channel full for room %q", r.id)
	}
}

func (r *Room) routeEvent(event *ClientEvent) {
	select {
	case r.eventChan <- event:
	default:
		r.log.Printf("event channel full for room %q", r.id)
		event.client.queueMessage(ErrServiceUnavailable())
	}
}

func (r *Room) handleJoin(join *ClientEvent) {
	r.killTimer.Stop()

	c := join.client

	dbRoom, err := r.cs.repo.GetRoom(r.id)
	if err != nil {
		// room was destroyed after the join was routed here
		c.queueMessage(ErrRoomNotFound())
		r.resetKillTimerIfEmpty()
		return
	}

	if dbRoom.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(dbRoom.PasswordHash), []byte(join.Password)); err != nil {
			c.queueMessage(ErrInvalidPassword())
			r.resetKillTimerIfEmpty()
			return
		}
	}

	nickname := strings.TrimSpace(join.Nickname)
	if nickname == "" {
		nickname = defaultNickname
	}

	// a rejoin from the same connection replaces the previous entry, so a
	// participant record is minted per join
	participant := types.Participant{
		Id:       uuid.NewString(),
		Nickname: nickname,
		JoinedAt: Now(),
	}

	if err := r.cs.repo.AddParticipant(r.id, store.Participant{
		Id:               participant.Id,
		Nickname:         participant.Nickname,
		ConnectionHandle: c.handle,
		JoinedAt:         participant.JoinedAt,
	}); err != nil {
		r.log.Println("AddParticipant:", err)
		c.queueMessage(ErrRoomNotFound())
		r.resetKillTimerIfEmpty()
		return
	}

	r.cs.registry.Bind(c, r.id, participant)
	c.setRoom(r)

	history, err := r.cs.repo.ListMessages(r.id)
	if err != nil {
		r.log.Println("ListMessages:", err)
		history = nil
	}

	messages := make([]types.Message, 0, len(history))
	for _, msg := range history {
		messages = append(messages, wireMessage(msg))
	}

	// the snapshot must reach the joiner before the participant_update
	// triggered by this join; both go through the same send buffer, so
	// queueing order is delivery order
	c.queueMessage(RoomJoined(r.id, participant, messages))

	r.broadcastParticipants(nil)
}

func (r *Room) handleLeave(leave *ClientEvent) {
	if leave.done != nil {
		defer close(leave.done)
	}

	c := leave.client

	// a second leave or a leave after a destroy finds no binding
	bound, ok := r.cs.registry.Room(c)
	if !ok || bound != r.id {
		return
	}

	if err := r.cs.repo.RemoveParticipant(r.id, c.handle); err != nil {
		r.log.Println("RemoveParticipant:", err)
	}

	r.cs.registry.Unbind(c)
	c.clearRoom()

	r.broadcastParticipants(nil)

	if len(r.cs.registry.Connections(r.id)) == 0 {
		r.log.Printf("no connections in room %q, starting kill timer", r.id)
		r.killTimer.Reset(sessionIdleTimeout)
	}
}

func (r *Room) handleEvent(event *ClientEvent) {
	c := event.client

	participant, ok := r.cs.registry.Participant(c)
	if !ok {
		c.queueMessage(ErrNotJoined())
		return
	}

	switch event.Type {
	case EventSendMessage:
		r.saveAndBroadcast(event, participant)
	case EventTypingStart, EventTypingStop:
		// self-echo of typing state is useless, skip the sender
		r.cs.broadcaster.SendToRoom(r.id, TypingUpdate(
			participant.Id, participant.Nickname, event.Type == EventTypingStart), c)
	case EventMessageRead:
		// relayed, not persisted; the sender is included so clients can
		// confirm their own receipt
		r.cs.broadcaster.SendToRoom(r.id, MessageRead(
			event.MessageId, participant.Id, participant.Nickname), nil)
	}
}

func (r *Room) saveAndBroadcast(event *ClientEvent, participant types.Participant) {
	content := strings.TrimSpace(event.Message)
	if content == "" {
		event.client.queueMessage(ErrEmptyMessage())
		return
	}

	msg, err := r.cs.repo.AppendMessage(store.AppendMessageParams{
		RoomId:         r.id,
		SenderId:       participant.Id,
		SenderNickname: participant.Nickname,
		Content:        content,
	})
	if err != nil {
		r.log.Println("AppendMessage:", err)
		if err == store.ErrRoomNotFound {
			event.client.queueMessage(ErrRoomNotFound())
		} else {
			event.client.queueMessage(ErrInternalError())
		}
		return
	}

	r.cs.stats.Incr("NumMessagesSent")
	r.cs.broadcaster.SendToRoom(r.id, NewMessage(wireMessage(msg)), nil)
}

func (r *Room) broadcastParticipants(skip *Client) {
	stored, err := r.cs.repo.ListParticipants(r.id)
	if err != nil {
		r.log.Println("ListParticipants:", err)
		return
	}

	participants := make([]types.Participant, 0, len(stored))
	for _, p := range stored {
		participants = append(participants, types.Participant{
			Id:       p.Id,
			Nickname: p.Nickname,
			JoinedAt: p.JoinedAt,
		})
	}

	r.cs.broadcaster.SendToRoom(r.id, ParticipantUpdate(participants), skip)
}

// resetKillTimerIfEmpty restarts the idle countdown after a failed join so
// an otherwise empty session still unloads.
func (r *Room) resetKillTimerIfEmpty() {
	if len(r.cs.registry.Connections(r.id)) == 0 {
		r.killTimer.Reset(sessionIdleTimeout)
	}
}

func (r *Room) handleSessionTimeout() {
	r.log.Printf("session for room %q timed out", r.id)
	select {
	case r.cs.unloadRoomChan <- r.id:
	default:
		// retry on the next tick if the server is busy
		r.killTimer.Reset(sessionIdleTimeout)
	}
}

func (r *Room) handleExit(e exitReq) {
	r.log.Printf("session for room %q is exiting", r.id)

	var err error
	if e.destroyed {
		err = r.cs.teardownRoom(r.id)
	}

	if e.done != nil {
		e.done <- err
	}
}

func wireMessage(msg store.Message) types.Message {
	return types.Message{
		Id:             msg.Id,
		RoomId:         msg.RoomId,
		SenderId:       msg.SenderId,
		SenderNickname: msg.SenderNickname,
		Content:        msg.Content,
		Timestamp:      msg.CreatedAt,
		ReadBy:         []string{},
		DeliveredTo:    []string{},
	}
}
