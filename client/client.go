// Package client is a Go client for the room's websocket endpoint.
package client

import (
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/infrastructure/websocket"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"
)

// View receives what the server pushes to this client.
// Callbacks run on the client's read goroutine, one at a time.
type View interface {
	ConnectedToServer()
	RoomJoined(roomName string)
	AddMessage(message domain.Message)
	ShowError(reason string)
}

type Client struct {
	log  *slog.Logger
	url  string
	view View

	writeMu   sync.Mutex
	conn      *gorilla.Conn
	name      string
	connected atomic.Bool
	done      chan struct{}
}

// New targets a websocket url such as ws://localhost:8080/ws.
func New(log *slog.Logger, url string, view View) *Client {
	return &Client{log: log, url: url, view: view}
}

// Connect dials the server and joins the room as name once the server greets the connection.
func (c *Client) Connect(ctx context.Context, name string) error {
	conn, _, err := gorilla.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("could not connect to server at %s: %w", c.url, err)
	}
	c.writeMu.Lock()
	c.conn = conn
	c.name = name
	c.done = make(chan struct{})
	c.writeMu.Unlock()

	c.log.Info("Socket attempting to connect to server", "url", c.url)
	go c.readLoop(conn, c.done)
	return nil
}

// IsConnected reports whether the room accepted the join.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.done
}

// Send posts body to the room, stamped now and signed with the joined name.
func (c *Client) Send(ctx context.Context, body string) error {
	name := c.joinName()
	if !c.IsConnected() || name == "" {
		return errors.ErrNotConnected
	}
	return c.write(ctx, "msg", websocket.WireMessage{
		Timestamp: time.Now().UnixMilli(),
		User:      name,
		Message:   body,
	})
}

func (c *Client) joinName() string {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.name
}

// Disconnect leaves the room and closes the connection.
func (c *Client) Disconnect() {
	c.writeMu.Lock()
	conn, done := c.conn, c.done
	c.writeMu.Unlock()
	if conn == nil {
		return
	}
	if c.IsConnected() {
		if err := c.write(context.Background(), "leave", nil); err != nil {
			c.log.Debug("Failed to send leave", "error", err)
		}
	}

	c.writeMu.Lock()
	c.conn = nil
	c.name = ""
	c.writeMu.Unlock()
	_ = conn.Close()
	<-done
	c.log.Info("Socket disconnected from server")
}

func (c *Client) readLoop(conn *gorilla.Conn, done chan struct{}) {
	defer func() {
		c.connected.Store(false)
		close(done)
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseNormalClosure) {
				c.log.Warn("Connection lost", "error", err)
			}
			return
		}
		var frame websocket.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("Undecodable frame from server", "error", err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame websocket.Frame) {
	switch frame.Type {
	case "connected":
		c.log.Debug("Received connected from server")
		if err := c.write(context.Background(), "join", c.joinName()); err != nil {
			c.log.Error("Failed to send join", "error", err)
			return
		}
		c.view.ConnectedToServer()
	case "joined":
		var payload struct {
			RoomName string `json:"roomName"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			c.log.Warn("Invalid joined payload", "error", err)
			return
		}
		c.log.Info("Socket successfully joined the room", "room", payload.RoomName)
		c.connected.Store(true)
		c.view.RoomJoined(payload.RoomName)
	case "msg":
		var message websocket.WireMessage
		if err := json.Unmarshal(frame.Payload, &message); err != nil {
			c.log.Warn("Invalid msg payload", "error", err)
			return
		}
		c.view.AddMessage(message.ToMessage(time.Now()))
	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			c.log.Warn("Invalid error payload", "error", err)
			return
		}
		c.log.Info("Error received from server", "reason", payload.Message)
		c.view.ShowError(payload.Message)
	default:
		c.log.Debug("Ignoring unknown frame", "type", frame.Type)
	}
}

func (c *Client) write(ctx context.Context, kind string, payload any) error {
	frame := websocket.Frame{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		frame.Payload = raw
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.ErrNotConnected
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(gorilla.TextMessage, data)
}
