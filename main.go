package main

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tictactoe/config"
	"tictactoe/game"
	httpserver "tictactoe/http"
	"tictactoe/logging"
	"tictactoe/store"
	"tictactoe/ws"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting server",
		zap.String("addr", cfg.ListenAddr), zap.String("db", cfg.DBPath))

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	hub := ws.NewHub(logger)
	go hub.Run()

	engine := game.NewEngine(db, logger)
	stats := game.NewStats(db)
	wsManager := ws.NewManager(hub, engine, logger)

	server := httpserver.NewServer(engine, stats, wsManager, cfg, logger)
	srv := server.GetHTTPServer(cfg.ListenAddr)

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
