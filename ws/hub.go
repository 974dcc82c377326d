package ws

import (
	"sync"

	"go.uber.org/zap"
)

type registration struct {
	client *Client
	done   chan struct{}
}

// Hub tracks the connections of every room and fans broadcasts out to
// them. Membership changes flow through two channels consumed by a single
// loop, so register and unregister never race each other; broadcasts read
// membership concurrently under the read lock.
type Hub struct {
	register   chan registration
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	log        *zap.Logger

	// onRoomEmpty runs after the last connection leaves a room.
	onRoomEmpty func(roomID string)
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan registration),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		log:        log,
	}
}

// Run drives the membership loop. It must be started before any
// connection is handled.
func (h *Hub) Run() {
	for {
		select {
		case reg := <-h.register:
			h.mu.Lock()
			if h.rooms[reg.client.room] == nil {
				h.rooms[reg.client.room] = make(map[*Client]bool)
			}
			h.rooms[reg.client.room][reg.client] = true
			h.mu.Unlock()
			close(reg.done)
			h.log.Info("client registered",
				zap.String("room", reg.client.room),
				zap.String("conn", reg.client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			room, ok := h.rooms[client.room]
			if ok && room[client] {
				delete(room, client)
				// The membership check above guarantees the outbound
				// queue closes exactly once, whichever path got here first.
				close(client.send)
				if len(room) == 0 {
					delete(h.rooms, client.room)
					h.log.Info("room closed", zap.String("room", client.room))
					if h.onRoomEmpty != nil {
						go h.onRoomEmpty(client.room)
					}
				}
			}
			h.mu.Unlock()
			h.log.Info("client unregistered",
				zap.String("room", client.room),
				zap.String("conn", client.id))
		}
	}
}

// Register adds the connection to its room, blocking until membership is
// visible so an immediately following broadcast includes it.
func (h *Hub) Register(client *Client) {
	reg := registration{client: client, done: make(chan struct{})}
	h.register <- reg
	<-reg.done
}

// Unregister removes the connection and closes its outbound queue. Safe to
// call from any goroutine and more than once per connection.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastState delivers the room snapshot to every connection, picking
// the variant matching each client's observer flag. A connection whose
// outbound queue is full is treated as failed and dropped; the room is
// never stalled on a slow consumer.
func (h *Hub) BroadcastState(roomID string, seated, observer []byte) {
	h.broadcast(roomID, func(c *Client) []byte {
		if c.isObserver {
			return observer
		}
		return seated
	})
}

// Broadcast delivers one frame to every connection in the room.
func (h *Hub) Broadcast(roomID string, message []byte) {
	h.broadcast(roomID, func(*Client) []byte { return message })
}

// SendToSeated delivers a frame to every seated (non-observer) connection
// in the room except the sender.
func (h *Hub) SendToSeated(roomID string, message []byte, except *Client) {
	h.broadcast(roomID, func(c *Client) []byte {
		if c == except || c.isObserver {
			return nil
		}
		return message
	})
}

func (h *Hub) broadcast(roomID string, pick func(*Client) []byte) {
	var stalled []*Client

	h.mu.RLock()
	for client := range h.rooms[roomID] {
		message := pick(client)
		if message == nil {
			continue
		}
		select {
		case client.send <- message:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.log.Warn("send buffer full, dropping connection",
			zap.String("room", roomID), zap.String("conn", client.id))
		h.Unregister(client)
	}
}

// ClientCount reports the number of connections in a room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
