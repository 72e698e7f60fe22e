package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popchat/internal/stats"
	"popchat/internal/store"
	"popchat/internal/testutil"
)

func TestClient_QueueMessage(t *testing.T) {
	c := &Client{
		log:  testutil.TestLogger(t),
		send: make(chan *ServerEvent, 1),
	}

	assert.True(t, c.queueMessage(ErrRoomNotFound()), "expected queue to succeed with buffer space")
	assert.False(t, c.queueMessage(ErrRoomNotFound()), "expected queue to fail on a full buffer")
	assert.Len(t, c.send, 1, "expected the overflow event to be dropped")
}

func TestClient_StopClientIsIdempotent(t *testing.T) {
	c := &Client{
		log:  testutil.TestLogger(t),
		stop: make(chan struct{}),
	}

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}
}

func TestClient_RoomBinding(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})
	c := newTestClient(t, cs, "conn1")

	assert.Nil(t, c.currentRoom(), "expected no room on a fresh client")

	r := cs.newSession("room1")
	c.setRoom(r)
	assert.Equal(t, r, c.currentRoom())

	c.clearRoom()
	assert.Nil(t, c.currentRoom())
}

func TestClient_DispatchRequiresJoin(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})
	c := newTestClient(t, cs, "conn1")

	for _, eventType := range []string{EventSendMessage, EventTypingStart, EventTypingStop, EventMessageRead} {
		c.dispatch(&ClientEvent{Type: eventType, client: c})

		event := recvEvent(t, c)
		assert.Equal(t, EventError, event.Type)
		assert.Equal(t, "not joined to a room", event.Error, "expected %q to require a joined room", eventType)
	}

	// a leave without a binding is silently ignored
	c.dispatch(&ClientEvent{Type: EventLeaveRoom, client: c})
	assertNoEvent(t, c)
}

func TestClient_DispatchUnknownType(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})
	c := newTestClient(t, cs, "conn1")

	c.dispatch(&ClientEvent{Type: "bogus", client: c})

	event := recvEvent(t, c)
	assert.Equal(t, EventError, event.Type)
	assert.Equal(t, "invalid message format", event.Error)
}

func TestClient_JoinRoomWhenServerBusy(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})
	cs.joinChan = make(chan *ClientEvent) // unbuffered and unserved

	c := newTestClient(t, cs, "conn1")
	c.joinRoom(&ClientEvent{Type: EventJoinRoom, RoomId: "room1", client: c})

	event := recvEvent(t, c)
	assert.Equal(t, EventError, event.Type)
	assert.Equal(t, "service unavailable", event.Error)
}

func TestClient_Cleanup(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})

	c := newTestClient(t, cs, "conn1")
	cs.RegisterClient(c)

	r := cs.newSession("room1")
	c.setRoom(r)

	c.cleanup()

	assert.NotContains(t, cs.clients, c, "expected the client to be deregistered")

	select {
	case leave := <-r.leaveChan:
		assert.Equal(t, EventLeaveRoom, leave.Type)
		assert.Equal(t, c, leave.client)
	default:
		t.Fatal("expected a leave to be routed to the bound room")
	}

	select {
	case <-c.stop:
	default:
		t.Fatal("expected the client to be stopped")
	}

	// cleanup after a second read-pump exit is harmless
	require.NotPanics(t, func() { c.cleanup() })
}
