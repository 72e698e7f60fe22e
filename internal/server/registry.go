package server

import (
	"sync"

	"popchat/internal/types"
)

type binding struct {
	roomId      string
	participant types.Participant
}

// Registry is the live index of connection-to-room and
// connection-to-participant bindings. It mirrors the store's participant
// lists and must only be mutated together with them, inside the owning
// room's event loop.
type Registry struct {
	mu       sync.RWMutex
	bindings map[*Client]binding
	rooms    map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[*Client]binding),
		rooms:    make(map[string]map[*Client]struct{}),
	}
}

// Bind registers c in roomId as p, replacing any previous binding for c.
func (r *Registry) Bind(c *Client, roomId string, p types.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.bindings[c]; ok {
		r.dropConnection(prev.roomId, c)
	}

	r.bindings[c] = binding{roomId: roomId, participant: p}
	if r.rooms[roomId] == nil {
		r.rooms[roomId] = make(map[*Client]struct{})
	}
	r.rooms[roomId][c] = struct{}{}
}

// Unbind removes c's binding and reports what was bound. Unbinding an
// unbound connection is a no-op.
func (r *Registry) Unbind(c *Client) (string, types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[c]
	if !ok {
		return "", types.Participant{}, false
	}

	delete(r.bindings, c)
	r.dropConnection(b.roomId, c)

	return b.roomId, b.participant, true
}

func (r *Registry) dropConnection(roomId string, c *Client) {
	if conns, ok := r.rooms[roomId]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.rooms, roomId)
		}
	}
}

func (r *Registry) Room(c *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[c]
	return b.roomId, ok
}

func (r *Registry) Participant(c *Client) (types.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[c]
	return b.participant, ok
}

// Connections returns a snapshot of the handles currently bound to roomId,
// safe to iterate while bindings change underneath.
func (r *Registry) Connections(roomId string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Client, 0, len(r.rooms[roomId]))
	for c := range r.rooms[roomId] {
		conns = append(conns, c)
	}

	return conns
}

// DropRoom removes every binding for roomId, returning the handles that
// were bound.
func (r *Registry) DropRoom(roomId string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Client, 0, len(r.rooms[roomId]))
	for c := range r.rooms[roomId] {
		conns = append(conns, c)
		delete(r.bindings, c)
	}
	delete(r.rooms, roomId)

	return conns
}
