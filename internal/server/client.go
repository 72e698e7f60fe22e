package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live WebSocket connection. It is bound to at most one room
// at a time; the binding itself lives in the Registry.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	handle     string
	send       chan *ServerEvent
	room       *Room
	roomLock   sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		handle:     uuid.NewString(),
		send:       make(chan *ServerEvent, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write pump for %s exiting", c.handle)
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(event)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read pump for %s exiting", c.handle)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueMessage(ErrInvalidMessage())
			continue
		}

		event.client = c
		c.dispatch(&event)
	}
}

func (c *Client) dispatch(event *ClientEvent) {
	switch event.Type {
	case EventJoinRoom:
		c.joinRoom(event)
	case EventLeaveRoom:
		if r := c.currentRoom(); r != nil {
			r.routeLeave(event)
		}
	case EventSendMessage, EventTypingStart, EventTypingStop, EventMessageRead:
		r := c.currentRoom()
		if r == nil {
			c.queueMessage(ErrNotJoined())
			return
		}
		r.routeEvent(event)
	default:
		c.queueMessage(ErrInvalidMessage())
	}
}

func (c *Client) joinRoom(event *ClientEvent) {
	select {
	case c.chatServer.joinChan <- event:
	default:
		c.log.Println("join channel full")
		c.queueMessage(ErrServiceUnavailable())
	}
}

// queueMessage enqueues an event for delivery without blocking. A full
// buffer means the connection is too slow to keep up; the event is dropped
// for that connection only.
func (c *Client) queueMessage(event *ServerEvent) bool {
	select {
	case c.send <- event:
	default:
		c.log.Printf("send buffer full for %s, dropping %q event", c.handle, event.Type)
		return false
	}

	return true
}

func (c *Client) writeFrame(frameType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(frameType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write frame: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup runs once when the read pump exits, whether the peer closed the
// socket or the transport errored. Leaving the bound room here makes
// disconnect and explicit leave share one path.
func (c *Client) cleanup() {
	c.chatServer.DeregisterClient(c)

	if r := c.currentRoom(); r != nil {
		r.routeLeave(&ClientEvent{Type: EventLeaveRoom, RoomId: r.id, client: c})
	}

	c.stopClient()
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	c.room = r
}

func (c *Client) clearRoom() {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	c.room = nil
}

func (c *Client) currentRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()

	return c.room
}
