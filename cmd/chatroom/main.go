package main

import (
	"chat-room/domain"
	"chat-room/infrastructure/grpc/server"
	"chat-room/infrastructure/websocket"
	"chat-room/internal"
	"chat-room/runtime"
	"chat-room/runtime/workers"
	"chat-room/storage"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chatroom terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the room, its store and its servers, then blocks until a termination signal.
// Returning instead of exiting lets every defer release the store.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Message store
	store, err := storage.Open(ctx, storage.Options{
		Backend:       config.StoreBackend,
		BadgerPath:    config.BadgerFilepath,
		SQLitePath:    config.SQLiteFilepath,
		MongoURI:      config.MongoURI,
		MongoDatabase: config.MongoDatabase,
	}, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("store opening failed: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	}()

	// 4. Room
	peers := websocket.NewPeers()
	room := runtime.NewCoordinator(log, peers, store,
		domain.RoomName(config.RoomName), config.MaxNameLength,
		config.SendTimeout, config.StoreTimeout)
	if err := room.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("room failed to start: %w", err)
	}
	defer room.Stop()

	// 5. Workers
	stats := workers.NewStatsWorker(log, room, config.StatsInterval)
	sup := workers.NewSupervisor(log, config.RestartInterval).
		Add(
			websocket.NewServer(log, config.Address(), room, peers, stats, config.SendTimeout),
			server.NewHealthServer(log, config.GrpcAddress()),
			stats,
		)

	log.Info("Chatroom starting",
		"room", config.RoomName,
		"store", config.StoreBackend,
		"address", config.Address(),
		"grpc_address", config.GrpcAddress())

	// Run blocks until the context is canceled and every worker returned.
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return exitOK, nil
}
