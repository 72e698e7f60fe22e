package server

import (
	"log"
)

// Broadcaster fans an event out to every connection bound to a room.
// Delivery is best-effort: a recipient whose send buffer is full or whose
// transport is gone is skipped without aborting delivery to the rest.
type Broadcaster struct {
	registry *Registry
	log      *log.Logger
}

func NewBroadcaster(registry *Registry, logger *log.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		log:      logger,
	}
}

func (b *Broadcaster) SendToRoom(roomId string, event *ServerEvent, skip *Client) {
	for _, c := range b.registry.Connections(roomId) {
		if c == skip {
			continue
		}

		if !c.queueMessage(event) {
			b.log.Printf("dropped %q event for a connection in room %q", event.Type, roomId)
		}
	}
}
