package websocket

import (
	"chat-room/domain/event"
	"chat-room/errors"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	writing  bool
	overlap  bool
	frames   []string
	deadline time.Time
	closed   bool
	// started and release, when set, hold each write until release is closed.
	started chan struct{}
	release chan struct{}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	if f.writing {
		f.overlap = true
	}
	f.writing = true
	f.mu.Unlock()

	time.Sleep(time.Microsecond)

	f.mu.Lock()
	f.writing = false
	f.frames = append(f.frames, string(data))
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestPeers_SendTo_UnknownConnection(t *testing.T) {
	peers := NewPeers()
	err := peers.SendTo(context.Background(), "ghost", event.Connected{})
	require.ErrorIs(t, err, errors.ErrConnectionUnknown)
}

func TestPeers_SendTo_SerializesWritesPerConnection(t *testing.T) {
	req := require.New(t)
	peers := NewPeers()
	conn := &fakeConn{}
	peers.Add("c1", conn)

	errs := make(chan error, 50)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- peers.SendTo(context.Background(), "c1", event.Joined{RoomName: "Chatroom"})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		req.NoError(err)
	}

	req.False(conn.overlap)
	req.Len(conn.frames, 50)
}

func TestPeers_SendTo_AppliesDeadline(t *testing.T) {
	req := require.New(t)
	peers := NewPeers()
	conn := &fakeConn{}
	peers.Add("c1", conn)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	req.NoError(peers.SendTo(ctx, "c1", event.Connected{}))

	want, _ := ctx.Deadline()
	req.Equal(want, conn.deadline)
}

func TestPeers_RemoveAndCloseAll(t *testing.T) {
	req := require.New(t)
	peers := NewPeers()
	first, second := &fakeConn{}, &fakeConn{}
	peers.Add("c1", first)
	peers.Add("c2", second)

	peers.Remove("c1")
	peers.CloseAll()

	req.Equal(1, peers.Len())
	req.False(first.closed)
	req.True(second.closed)
}

func TestPeers_Remove_WaitsForWriteInFlight(t *testing.T) {
	req := require.New(t)
	peers := NewPeers()
	conn := &fakeConn{started: make(chan struct{}, 1), release: make(chan struct{})}
	peers.Add("c1", conn)

	// Given a write blocked on the connection
	sent := make(chan error, 1)
	go func() { sent <- peers.SendTo(context.Background(), "c1", event.Connected{}) }()
	<-conn.started

	// When the connection is removed meanwhile
	removed := make(chan struct{})
	go func() {
		peers.Remove("c1")
		close(removed)
	}()

	// Then Remove returns only once the write is done
	select {
	case <-removed:
		t.Fatal("Remove returned while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(conn.release)
	req.NoError(<-sent)
	<-removed

	// And nothing more is written to the removed connection
	err := peers.SendTo(context.Background(), "c1", event.Connected{})
	req.ErrorIs(err, errors.ErrConnectionUnknown)
	req.Len(conn.frames, 1)
}

func TestPeers_SendTo_AfterRemoveWithStaleLookup(t *testing.T) {
	req := require.New(t)
	peers := NewPeers()
	conn := &fakeConn{}
	peers.Add("c1", conn)

	// Given a sender that looked the peer up before it was removed
	peers.mu.RLock()
	target := peers.conns["c1"]
	peers.mu.RUnlock()

	// When the connection is removed
	peers.Remove("c1")

	// Then the stale entry no longer points at the connection
	target.mu.Lock()
	req.Nil(target.conn)
	target.mu.Unlock()
	req.Empty(conn.frames)
}
