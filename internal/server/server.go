package server

import (
	"context"
	"log"
	"sync"

	"popchat/internal/stats"
	"popchat/internal/store"
)

type destroyReq struct {
	roomId string
	done   chan error
}

// ChatServer coordinates room sessions: it routes joins, loads and unloads
// sessions, and owns the shared Registry and Broadcaster. All room state
// mutations happen inside the sessions it starts.
type ChatServer struct {
	log            *log.Logger
	repo           store.Repository
	stats          stats.StatsProvider
	registry       *Registry
	broadcaster    *Broadcaster
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	rooms          map[string]*Room
	joinChan       chan *ClientEvent
	unloadRoomChan chan string
	destroyChan    chan destroyReq
	stop           chan chan struct{}
}

func NewChatServer(logger *log.Logger, repo store.Repository, su stats.StatsProvider) (*ChatServer, error) {
	registry := NewRegistry()

	cs := &ChatServer{
		log:            logger,
		repo:           repo,
		stats:          su,
		registry:       registry,
		broadcaster:    NewBroadcaster(registry, logger),
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		joinChan:       make(chan *ClientEvent, 256),
		unloadRoomChan: make(chan string, 64),
		destroyChan:    make(chan destroyReq),
		stop:           make(chan chan struct{}),
	}

	su.RegisterMetric("NumConnections")
	su.RegisterMetric("NumActiveRooms")
	su.RegisterMetric("NumMessagesSent")
	su.RegisterMetric("NumRoomsReaped")

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case join := <-cs.joinChan:
			cs.handleJoin(join)
		case id := <-cs.unloadRoomChan:
			cs.unloadRoom(id)
		case req := <-cs.destroyChan:
			req.done <- cs.handleDestroy(req.roomId)
		case done := <-cs.stop:
			cs.log.Println("shutting down room sessions")
			for _, r := range cs.rooms {
				cs.stopSession(r, exitReq{})
			}
			cs.rooms = nil

			cs.stopClients()
			close(done)
			return
		}
	}
}

func (cs *ChatServer) handleJoin(join *ClientEvent) {
	c := join.client

	// a connection holds at most one binding. The old room must finish
	// shedding the participant before the join is routed: the two sessions
	// run concurrently, and if the new bind lands first the old session's
	// leave sees a foreign binding and skips its store cleanup, stranding
	// the participant record.
	if cur := c.currentRoom(); cur != nil && cur.id != join.RoomId {
		leave := &ClientEvent{Type: EventLeaveRoom, RoomId: cur.id, client: c, done: make(chan struct{})}
		cur.leaveChan <- leave
		<-leave.done
	}

	if room, ok := cs.rooms[join.RoomId]; ok {
		select {
		case room.joinChan <- join:
		default:
			cs.log.Printf("join channel full on room %q", room.id)
			c.queueMessage(ErrServiceUnavailable())
		}
		return
	}

	if _, err := cs.repo.GetRoom(join.RoomId); err != nil {
		c.queueMessage(ErrRoomNotFound())
		return
	}

	room := cs.newSession(join.RoomId)
	cs.rooms[room.id] = room
	cs.stats.Incr("NumActiveRooms")
	room.joinChan <- join

	go room.start()
}

func (cs *ChatServer) newSession(roomId string) *Room {
	return &Room{
		id:        roomId,
		cs:        cs,
		log:       cs.log,
		joinChan:  make(chan *ClientEvent, 256),
		leaveChan: make(chan *ClientEvent, 256),
		eventChan: make(chan *ClientEvent, 256),
		exit:      make(chan exitReq),
		done:      make(chan struct{}),
	}
}

func (cs *ChatServer) unloadRoom(id string) {
	room, ok := cs.rooms[id]
	if !ok {
		return
	}

	// the timeout raced with a late join; keep the session
	if len(cs.registry.Connections(id)) > 0 {
		return
	}

	cs.log.Printf("unloading idle session for room %q", id)
	delete(cs.rooms, id)
	cs.stopSession(room, exitReq{})
}

// handleDestroy is the single delete path for rooms, shared by the HTTP
// DELETE handler and the idle reaper: notify connected clients, delete the
// room (cascading messages and participants), drop registry bindings.
func (cs *ChatServer) handleDestroy(roomId string) error {
	if _, err := cs.repo.GetRoom(roomId); err != nil {
		return err
	}

	room, loaded := cs.rooms[roomId]
	if loaded {
		delete(cs.rooms, roomId)
		return cs.stopSession(room, exitReq{destroyed: true})
	}

	return cs.teardownRoom(roomId)
}

func (cs *ChatServer) stopSession(room *Room, req exitReq) error {
	req.done = make(chan error, 1)
	room.exit <- req
	err := <-req.done
	<-room.done
	cs.stats.Decr("NumActiveRooms")
	return err
}

func (cs *ChatServer) teardownRoom(roomId string) error {
	cs.broadcaster.SendToRoom(roomId, RoomDestroyed(roomId), nil)

	err := cs.repo.DeleteRoom(roomId)

	for _, c := range cs.registry.DropRoom(roomId) {
		c.clearRoom()
	}

	return err
}

// DestroyRoom removes a room outright, notifying its connections first.
// It returns store.ErrRoomNotFound if the room does not exist.
func (cs *ChatServer) DestroyRoom(ctx context.Context, roomId string) error {
	req := destroyReq{roomId: roomId, done: make(chan error, 1)}

	select {
	case cs.destroyChan <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	cs.stats.Incr("NumConnections")
}

func (cs *ChatServer) DeregisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; ok {
		delete(cs.clients, c)
		cs.stats.Decr("NumConnections")
	}
}

func (cs *ChatServer) stopClients() {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	for c := range cs.clients {
		c.stopClient()
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	select {
	case cs.stop <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
