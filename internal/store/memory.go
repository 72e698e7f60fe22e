package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRoom is the unit of mutual exclusion: the room's message list and
// participant set are only touched under its lock.
type memoryRoom struct {
	mu           sync.Mutex
	room         Room
	messages     []Message
	participants []Participant
}

type MemoryRepository struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms: make(map[string]*memoryRoom),
		now:   time.Now,
	}
}

func (m *MemoryRepository) getRoom(id string) (*memoryRoom, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[id]
	return r, ok
}

func (m *MemoryRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[params.Id]; ok {
		return Room{}, ErrRoomExists
	}

	now := m.now()
	mr := &memoryRoom{
		room: Room{
			Id:             params.Id,
			PasswordHash:   params.PasswordHash,
			CreatedAt:      now,
			LastActivityAt: now,
		},
	}
	m.rooms[params.Id] = mr

	return mr.room, nil
}

func (m *MemoryRepository) GetRoom(id string) (Room, error) {
	mr, ok := m.getRoom(id)
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	room := mr.room
	room.ParticipantCount = len(mr.participants)
	return room, nil
}

func (m *MemoryRepository) TouchActivity(id string) error {
	mr, ok := m.getRoom(id)
	if !ok {
		return ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.room.LastActivityAt = m.now()
	return nil
}

func (m *MemoryRepository) DeleteRoom(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[id]; !ok {
		return ErrRoomNotFound
	}

	// messages and participants live on the room record, so dropping it
	// cascades
	delete(m.rooms, id)
	return nil
}

func (m *MemoryRepository) ListInactiveRooms(threshold time.Duration) ([]Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-threshold)

	var inactive []Room
	for _, mr := range m.rooms {
		mr.mu.Lock()
		if mr.room.LastActivityAt.Before(cutoff) {
			inactive = append(inactive, mr.room)
		}
		mr.mu.Unlock()
	}

	return inactive, nil
}

func (m *MemoryRepository) AppendMessage(params AppendMessageParams) (Message, error) {
	mr, ok := m.getRoom(params.RoomId)
	if !ok {
		return Message{}, ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	msg := Message{
		Id:             uuid.NewString(),
		RoomId:         params.RoomId,
		SenderId:       params.SenderId,
		SenderNickname: params.SenderNickname,
		Content:        params.Content,
		CreatedAt:      m.now(),
	}

	mr.messages = append(mr.messages, msg)
	mr.room.LastActivityAt = msg.CreatedAt

	return msg, nil
}

func (m *MemoryRepository) ListMessages(roomId string) ([]Message, error) {
	mr, ok := m.getRoom(roomId)
	if !ok {
		return nil, ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	msgs := make([]Message, len(mr.messages))
	copy(msgs, mr.messages)
	return msgs, nil
}

func (m *MemoryRepository) DeleteMessages(roomId string) error {
	mr, ok := m.getRoom(roomId)
	if !ok {
		return ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.messages = nil
	return nil
}

func (m *MemoryRepository) AddParticipant(roomId string, p Participant) error {
	mr, ok := m.getRoom(roomId)
	if !ok {
		return ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	// at most one entry per connection handle
	for i, existing := range mr.participants {
		if existing.ConnectionHandle == p.ConnectionHandle {
			mr.participants = append(mr.participants[:i], mr.participants[i+1:]...)
			break
		}
	}

	mr.participants = append(mr.participants, p)
	mr.room.LastActivityAt = m.now()
	return nil
}

func (m *MemoryRepository) RemoveParticipant(roomId, handle string) error {
	mr, ok := m.getRoom(roomId)
	if !ok {
		return ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	for i, p := range mr.participants {
		if p.ConnectionHandle == handle {
			mr.participants = append(mr.participants[:i], mr.participants[i+1:]...)
			mr.room.LastActivityAt = m.now()
			return nil
		}
	}

	return nil
}

func (m *MemoryRepository) ListParticipants(roomId string) ([]Participant, error) {
	mr, ok := m.getRoom(roomId)
	if !ok {
		return nil, ErrRoomNotFound
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	participants := make([]Participant, len(mr.participants))
	copy(participants, mr.participants)
	return participants, nil
}
