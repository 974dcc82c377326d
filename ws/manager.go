package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tictactoe/game"
)

// Manager ties upgraded connections to the hub and the game engine: it
// seats or observes the joining player, starts the connection's pumps,
// and turns engine results into room broadcasts.
type Manager struct {
	hub    *Hub
	engine *game.Engine
	log    *zap.Logger
}

func NewManager(hub *Hub, engine *game.Engine, log *zap.Logger) *Manager {
	m := &Manager{hub: hub, engine: engine, log: log}
	hub.onRoomEmpty = m.retireRoom
	return m
}

// HandleConnection joins the player into the room and starts the reader
// and writer for an already-upgraded connection. A join failure is
// reported on the socket and the connection closed without registering.
func (m *Manager) HandleConnection(conn *websocket.Conn, roomID, playerName string) {
	result, err := m.engine.JoinRoom(roomID, playerName)
	if err != nil {
		m.log.Warn("join rejected",
			zap.String("room", roomID), zap.String("player", playerName), zap.Error(err))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, marshalError(err.Error()))
		conn.Close()
		return
	}

	client := &Client{
		id:         uuid.NewString(),
		conn:       conn,
		send:       make(chan []byte, 256),
		room:       roomID,
		playerID:   result.Player.ID,
		playerName: result.Player.Name,
		isObserver: result.Observer,
	}
	m.hub.Register(client)

	go client.writePump()
	go client.readPump(m)

	m.broadcastRoomState(roomID)
}

func (m *Manager) handleCommand(c *Client, cmd command) {
	switch cmd := cmd.(type) {
	case moveCommand:
		if c.isObserver {
			c.sendError("observers cannot make moves")
			return
		}
		if _, err := m.engine.MakeMove(c.room, c.playerID, cmd.position); err != nil {
			c.sendError(err.Error())
			return
		}
		m.broadcastRoomState(c.room)

	case resetCommand:
		if c.isObserver {
			c.sendError("observers cannot reset the game")
			return
		}
		if _, err := m.engine.Reset(c.room, c.playerID); err != nil {
			c.sendError(err.Error())
			return
		}
		m.broadcastRoomState(c.room)

	case confirmStartCommand:
		m.log.Info("game start confirmed",
			zap.String("room", c.room), zap.String("player", c.playerName))

	case playAgainCommand:
		if c.isObserver {
			return
		}
		m.hub.SendToSeated(c.room, marshalPlayAgain(c.playerName), c)

	case playAgainMenuCommand:
		if c.isObserver {
			return
		}
		m.hub.SendToSeated(c.room, marshalPlayAgainMenu(c.playerName), c)
	}
}

// broadcastRoomState reads the persisted state and fans it to the room.
func (m *Manager) broadcastRoomState(roomID string) {
	g, playerX, playerO, err := m.engine.RoomState(roomID)
	if err != nil {
		m.log.Error("room state unavailable", zap.String("room", roomID), zap.Error(err))
		return
	}

	seated, observer, err := marshalStateUpdate(g, playerX, playerO)
	if err != nil {
		m.log.Error("marshal state update", zap.String("room", roomID), zap.Error(err))
		return
	}
	m.hub.BroadcastState(roomID, seated, observer)
}

func (m *Manager) retireRoom(roomID string) {
	stillEmpty := func() bool { return m.hub.ClientCount(roomID) == 0 }
	if err := m.engine.RetireRoom(roomID, stillEmpty); err != nil {
		m.log.Error("retire room", zap.String("room", roomID), zap.Error(err))
	}
}
