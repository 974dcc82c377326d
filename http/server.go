package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tictactoe/config"
	"tictactoe/game"
	"tictactoe/ws"
)

type Server struct {
	router   *mux.Router
	handlers *Handlers
}

func NewServer(engine *game.Engine, stats *game.Stats, wsManager *ws.Manager, cfg *config.Config, log *zap.Logger) *Server {
	router := mux.NewRouter()
	handlers := NewHandlers(engine, stats, wsManager, cfg.AllowedOrigin, log)

	server := &Server{
		router:   router,
		handlers: handlers,
	}

	server.setupRoutes(cfg, log)
	return server
}

func (s *Server) setupRoutes(cfg *config.Config, log *zap.Logger) {
	s.router.Use(LoggingMiddleware(log))
	s.router.Use(CORSMiddleware(cfg.AllowedOrigin))

	// Joining creates player and game records, so both entry points share
	// a per-IP limiter.
	joinLimiter := NewRateLimiter(1, 5)

	s.router.Handle("/api/rooms/join/{roomId}",
		joinLimiter.Middleware(http.HandlerFunc(s.handlers.JoinRoom))).Methods("POST")
	s.router.HandleFunc("/api/rooms/history/{roomId}", s.handlers.GetRoomHistory).Methods("GET")
	s.router.HandleFunc("/api/stats/ranking", s.handlers.GetRanking).Methods("GET")
	s.router.HandleFunc("/api/stats/general", s.handlers.GetGeneralStats).Methods("GET")
	s.router.HandleFunc("/api/stats/player", s.handlers.GetPlayerStats).Methods("GET")
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")

	s.router.Handle("/ws/join/{roomId}",
		joinLimiter.Middleware(http.HandlerFunc(s.handlers.HandleWebSocket)))

	// Unmatched API routes get a JSON 404.
	s.router.PathPrefix("/api/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
