package ws

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client binds one websocket to a room and a player. Each connection runs
// a reader and a writer goroutine; the reader feeds commands to the game
// engine, the writer drains the outbound queue.
type Client struct {
	id         string
	conn       *websocket.Conn
	send       chan []byte
	room       string
	playerID   int64
	playerName string
	isObserver bool
}

func (c *Client) readPump(m *Manager) {
	defer func() {
		m.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.log.Warn("websocket read error",
					zap.String("room", c.room), zap.String("conn", c.id), zap.Error(err))
			}
			break
		}

		cmd, err := parseCommand(message)
		if err != nil {
			if errors.Is(err, errUnknownCommand) {
				m.log.Debug("ignoring unrecognized command",
					zap.String("room", c.room), zap.String("conn", c.id))
			} else {
				m.log.Warn("dropping malformed frame",
					zap.String("room", c.room), zap.String("conn", c.id), zap.Error(err))
			}
			continue
		}

		m.handleCommand(c, cmd)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError queues an error frame for this connection only. Best effort:
// a full queue means the connection is already on its way out.
func (c *Client) sendError(message string) {
	select {
	case c.send <- marshalError(message):
	default:
	}
}
