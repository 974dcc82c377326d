package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tictactoe/game"
	"tictactoe/ws"
)

type Handlers struct {
	engine   *game.Engine
	stats    *game.Stats
	ws       *ws.Manager
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandlers(engine *game.Engine, stats *game.Stats, wsManager *ws.Manager, allowedOrigin string, log *zap.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		stats:  stats,
		ws:     wsManager,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if allowedOrigin != "" {
					return origin == allowedOrigin
				}
				return origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// JoinRoom seats the player over REST; clients use it to probe a room
// before opening the websocket.
func (h *Handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var req struct {
		PlayerName string `json:"playerName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.JoinRoom(roomID, req.PlayerName)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrNameTaken):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, game.ErrInvalidPlayerName):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("join room failed", zap.String("room", roomID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to join room")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.stats.Ranking(10)
	if err != nil {
		h.log.Error("ranking failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not retrieve player ranking")
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

func (h *Handlers) GetGeneralStats(w http.ResponseWriter, r *http.Request) {
	totals, err := h.stats.Totals()
	if err != nil {
		h.log.Error("totals failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not retrieve general statistics")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *Handlers) GetRoomHistory(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	history, err := h.stats.RoomHistory(roomID)
	if err != nil {
		h.log.Error("room history failed", zap.String("room", roomID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not retrieve room history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	playerName := r.URL.Query().Get("playerName")
	if playerName == "" {
		writeError(w, http.StatusBadRequest, "playerName query parameter is required")
		return
	}

	player, err := h.stats.PlayerByName(playerName)
	if err != nil {
		if errors.Is(err, game.ErrPlayerNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("player stats failed", zap.String("player", playerName), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not retrieve player statistics")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleWebSocket upgrades the request and hands the connection to the
// room coordinator.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	playerName := r.URL.Query().Get("playerName")
	if roomID == "" || playerName == "" {
		writeError(w, http.StatusBadRequest, "room id and player name are required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.ws.HandleConnection(conn, roomID, playerName)
}
