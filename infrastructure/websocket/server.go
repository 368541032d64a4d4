// Package websocket exposes the room over websocket text frames served by fiber.
package websocket

import (
	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/errors"
	"chat-room/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const shutdownTimeout = 5 * time.Second

// Room is what the server needs from the coordinator.
type Room interface {
	contract.IRoom
	RoomName() domain.RoomName
	Members() []domain.Participant
	SessionCount() int
}

// StatsSource provides the latest process and room sample for /health.
type StatsSource interface {
	Latest() workers.RoomStats
}

// Server accepts websocket connections on /ws and forwards their frames to the room.
type Server struct {
	log         *slog.Logger
	address     string
	room        Room
	peers       *Peers
	stats       StatsSource
	sendTimeout time.Duration
}

// NewServer builds the server. stats may be nil.
func NewServer(log *slog.Logger, address string, room Room, peers *Peers, stats StatsSource, sendTimeout time.Duration) *Server {
	return &Server{
		log:         log,
		address:     address,
		room:        room,
		peers:       peers,
		stats:       stats,
		sendTimeout: sendTimeout,
	}
}

// Run listens on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts the app down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	app := s.newApp(ctx)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting websocket server", "address", ln.Addr().String(), "at", time.Now().UTC())
		errChan <- app.Listener(ln)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down websocket server", "open_connections", s.peers.Len())
		// Hijacked websocket connections are not tracked by the http server.
		s.peers.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown websocket server: %w", err)
		}
		return nil
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("websocket server error: %w", err)
		}
		return nil
	}
}

func (s *Server) newApp(ctx context.Context) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "chat-room",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(fiberrecover.New())

	app.Get("/health", s.health)
	app.Get("/members", s.members)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		s.handle(ctx, c)
	}))
	return app
}

// handle owns one connection from open to close.
// Whatever ends the read loop, the connection leaves the room.
func (s *Server) handle(ctx context.Context, c *websocket.Conn) {
	connectionID := uuid.NewString()
	s.peers.Add(connectionID, c)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Connection handler panicked", "connection_id", connectionID, "panic", r)
		}
		s.room.OnLeave(ctx, connectionID)
		s.peers.Remove(connectionID)
		_ = c.Close()
		s.log.Debug("Connection closed", "connection_id", connectionID)
	}()

	s.room.OnConnect(ctx, connectionID)
	s.reply(ctx, connectionID, event.Connected{})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Connection read failed", "connection_id", connectionID, "error", err)
			}
			return
		}

		in, err := DecodeFrame(data)
		if err != nil {
			s.log.Debug("Invalid frame", "connection_id", connectionID, "error", err)
			s.reply(ctx, connectionID, event.Failure{Reason: errors.ErrInvalidFrame.Error()})
			continue
		}

		switch in.Type {
		case frameJoin:
			s.room.OnJoin(ctx, connectionID, in.Name)
		case frameMsg:
			s.room.OnMessage(ctx, connectionID, in.Message.ToMessage(time.Now()))
		case frameLeave:
			s.room.OnLeave(ctx, connectionID)
			return
		}
	}
}

func (s *Server) reply(ctx context.Context, connectionID string, e event.Event) {
	sendCtx, cancel := context.WithCancel(ctx)
	if s.sendTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, s.sendTimeout)
	}
	defer cancel()
	if err := s.peers.SendTo(sendCtx, connectionID, e); err != nil {
		s.log.Warn("Failed to deliver event", "connection_id", connectionID, "kind", e.Kind(), "error", err)
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":   "healthy",
		"room":     s.room.RoomName(),
		"members":  len(s.room.Members()),
		"sessions": s.room.SessionCount(),
	}
	if s.stats != nil {
		body["stats"] = s.stats.Latest()
	}
	return c.JSON(body)
}

func (s *Server) members(c *fiber.Ctx) error {
	names := lo.Map(s.room.Members(), func(p domain.Participant, _ int) string {
		return p.DisplayName
	})
	return c.JSON(fiber.Map{
		"room":    s.room.RoomName(),
		"members": names,
		"total":   len(names),
	})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("HTTP error", "code", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
