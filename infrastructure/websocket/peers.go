package websocket

import (
	"chat-room/domain/event"
	"chat-room/errors"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// conn is nil once the peer is removed.
type peer struct {
	mu   sync.Mutex
	conn Conn
}

// Peers maps connection ids to open connections and delivers events to them.
// Writes to one connection are serialized; writes to different connections are not.
type Peers struct {
	mu    sync.RWMutex
	conns map[string]*peer
}

func NewPeers() *Peers {
	return &Peers{conns: make(map[string]*peer)}
}

func (p *Peers) Add(connectionID string, conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[connectionID] = &peer{conn: conn}
}

// Remove forgets a connection. It waits for a write in flight on it, and no
// write reaches the connection once it returns.
func (p *Peers) Remove(connectionID string) {
	p.mu.Lock()
	target, ok := p.conns[connectionID]
	delete(p.conns, connectionID)
	p.mu.Unlock()
	if !ok {
		return
	}

	target.mu.Lock()
	target.conn = nil
	target.mu.Unlock()
}

// CloseAll closes every open connection; their read loops then end and leave the room.
func (p *Peers) CloseAll() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, target := range p.conns {
		_ = target.conn.Close()
	}
}

func (p *Peers) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// SendTo writes one event to one connection, honoring the context deadline.
func (p *Peers) SendTo(ctx context.Context, connectionID string, e event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	target, ok := p.conns[connectionID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrConnectionUnknown, connectionID)
	}

	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if target.conn == nil {
		return fmt.Errorf("%w: %s", errors.ErrConnectionUnknown, connectionID)
	}
	deadline, _ := ctx.Deadline()
	if err := target.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return target.conn.WriteMessage(websocket.TextMessage, data)
}
