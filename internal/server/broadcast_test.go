package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"popchat/internal/stats"
	"popchat/internal/store"
	"popchat/internal/types"
)

func TestBroadcaster_SendToRoom(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})

	alice := newTestClient(t, cs, "connA")
	bob := newTestClient(t, cs, "connB")
	carol := newTestClient(t, cs, "connC")

	cs.registry.Bind(alice, "room1", types.Participant{Id: "pa"})
	cs.registry.Bind(bob, "room1", types.Participant{Id: "pb"})
	cs.registry.Bind(carol, "room2", types.Participant{Id: "pc"})

	event := RoomDestroyed("room1")
	cs.broadcaster.SendToRoom("room1", event, nil)

	assert.Equal(t, event, recvEvent(t, alice))
	assert.Equal(t, event, recvEvent(t, bob))
	assertNoEvent(t, carol)
}

func TestBroadcaster_SendToRoomSkips(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})

	alice := newTestClient(t, cs, "connA")
	bob := newTestClient(t, cs, "connB")

	cs.registry.Bind(alice, "room1", types.Participant{Id: "pa"})
	cs.registry.Bind(bob, "room1", types.Participant{Id: "pb"})

	cs.broadcaster.SendToRoom("room1", TypingUpdate("pa", "Alice", true), alice)

	assertNoEvent(t, alice)
	event := recvEvent(t, bob)
	assert.Equal(t, EventTypingUpdate, event.Type)
}

func TestBroadcaster_FullBufferDoesNotAbortDelivery(t *testing.T) {
	cs := newTestChatServer(t, store.NewMemoryRepository(), &stats.MockStatsUpdater{})

	slow := newTestClient(t, cs, "connSlow")
	slow.send = make(chan *ServerEvent) // unbuffered, always full
	bob := newTestClient(t, cs, "connB")

	cs.registry.Bind(slow, "room1", types.Participant{Id: "ps"})
	cs.registry.Bind(bob, "room1", types.Participant{Id: "pb"})

	cs.broadcaster.SendToRoom("room1", RoomDestroyed("room1"), nil)

	event := recvEvent(t, bob)
	assert.Equal(t, EventRoomDestroyed, event.Type, "expected delivery to continue past a full buffer")
}
