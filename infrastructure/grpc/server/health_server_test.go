package server

import (
	"chat-room/infrastructure/grpc/client"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestHealthServer_ServingUntilCanceled(t *testing.T) {
	req := require.New(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	server := NewHealthServer(logs.GetLoggerFromLevel(slog.LevelDebug), "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	healthClient, err := client.NewHealthClient(listener.Addr().String())
	req.NoError(err)
	defer healthClient.Close()

	// Given the server is running
	for _, service := range []string{"", RoomService} {
		req.Eventually(func() bool {
			callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
			defer callCancel()
			serving, err := healthClient.Serving(callCtx, service)
			return err == nil && serving
		}, 5*time.Second, 20*time.Millisecond)
	}

	// When the context is canceled
	cancel()

	// Then Serve returns cleanly
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("health server did not stop")
	}
}

func TestHealthServer_UnknownService(t *testing.T) {
	req := require.New(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	server := NewHealthServer(logs.GetLoggerFromLevel(slog.LevelDebug), "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Serve(ctx, listener) }()

	healthClient, err := client.NewHealthClient(listener.Addr().String())
	req.NoError(err)
	defer healthClient.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	_, err = healthClient.Check(callCtx, "nope")

	req.Error(err)
}
