package websocket

import (
	"chat-room/domain"
	"chat-room/mocks"
	"chat-room/runtime"
	"chat-room/storage"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type harness struct {
	addr  string
	room  *runtime.Coordinator
	store *storage.MemoryStore
}

func startServer(t *testing.T, history ...domain.Message) harness {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := storage.NewMemoryStore(history...)
	peers := NewPeers()
	room := runtime.NewCoordinator(log, peers, store, domain.DefaultRoomName, domain.DefaultMaxNameLength, time.Second, time.Second)
	server := NewServer(log, "", room, peers, nil, time.Second)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})
	return harness{addr: ln.Addr().String(), room: room, store: store}
}

func dial(t *testing.T, addr string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	expect(t, conn, "connected")
	return conn
}

func write(t *testing.T, conn *gorilla.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(raw)))
}

func expect(t *testing.T, conn *gorilla.Conn, kind string) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, kind, frame.Type, string(data))
	return frame
}

func TestServer_JoinReplayAndBroadcast(t *testing.T) {
	req := require.New(t)
	h := startServer(t, domain.MessageFromMillis(1000, "zoe", "earlier"))

	// Given alice joined and received the history
	alice := dial(t, h.addr)
	write(t, alice, `{"type":"join","payload":"alice"}`)
	joined := expect(t, alice, "joined")
	req.JSONEq(`{"roomName":"Chatroom"}`, string(joined.Payload))
	replayed := expect(t, alice, "msg")
	req.JSONEq(`{"timestamp":1000,"user":"zoe","message":"earlier"}`, string(replayed.Payload))

	// And bob joined after her
	bob := dial(t, h.addr)
	write(t, bob, `{"type":"join","payload":"bob"}`)
	expect(t, bob, "joined")
	expect(t, bob, "msg")

	// When alice posts
	write(t, alice, `{"type":"msg","payload":{"timestamp":2000,"user":"alice","message":"hi"}}`)

	// Then both receive it, alice included, and it is stored
	for _, conn := range []*gorilla.Conn{alice, bob} {
		frame := expect(t, conn, "msg")
		req.JSONEq(`{"timestamp":2000,"user":"alice","message":"hi"}`, string(frame.Payload))
	}
	req.Eventually(func() bool { return h.store.Len() == 2 }, time.Second, 10*time.Millisecond)
}

func TestServer_NameTaken(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	alice := dial(t, h.addr)
	write(t, alice, `{"type":"join","payload":"alice"}`)
	expect(t, alice, "joined")

	impostor := dial(t, h.addr)
	write(t, impostor, `{"type":"join","payload":"alice"}`)
	failure := expect(t, impostor, "error")
	req.JSONEq(`{"message":"name already taken"}`, string(failure.Payload))
	req.Len(h.room.Members(), 1)
}

func TestServer_InvalidFrame(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	conn := dial(t, h.addr)
	write(t, conn, `{"type":"dance"}`)

	failure := expect(t, conn, "error")
	req.JSONEq(`{"message":"invalid frame"}`, string(failure.Payload))

	// The connection is still usable
	write(t, conn, `{"type":"join","payload":"alice"}`)
	expect(t, conn, "joined")
}

func TestServer_DisconnectReleasesName(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	alice := dial(t, h.addr)
	write(t, alice, `{"type":"join","payload":"alice"}`)
	expect(t, alice, "joined")

	// When alice drops her connection
	req.NoError(alice.Close())
	req.Eventually(func() bool { return len(h.room.Members()) == 0 }, 5*time.Second, 10*time.Millisecond)

	// Then the name is free again
	next := dial(t, h.addr)
	write(t, next, `{"type":"join","payload":"alice"}`)
	expect(t, next, "joined")
}

func TestServer_LeaveFrameClosesConnection(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	conn := dial(t, h.addr)
	write(t, conn, `{"type":"join","payload":"alice"}`)
	expect(t, conn, "joined")

	write(t, conn, `{"type":"leave"}`)

	req.Eventually(func() bool { return h.room.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
	req.Empty(h.room.Members())
}

func TestServer_Health(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	conn := dial(t, h.addr)
	write(t, conn, `{"type":"join","payload":"alice"}`)
	expect(t, conn, "joined")

	resp, err := http.Get("http://" + h.addr + "/health")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var body map[string]any
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("healthy", body["status"])
	req.Equal("Chatroom", body["room"])
	req.EqualValues(1, body["members"])
}

func TestServer_PlainHTTPOnWebsocketRoute(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	resp, err := http.Get("http://" + h.addr + "/ws")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusUpgradeRequired, resp.StatusCode)
}

// mockRoom adds the read side of the room to the generated IRoom mock.
type mockRoom struct {
	*mocks.MockIRoom
}

func (mockRoom) RoomName() domain.RoomName       { return domain.DefaultRoomName }
func (mockRoom) Members() []domain.Participant { return nil }
func (mockRoom) SessionCount() int             { return 0 }

func TestServer_FramesReachRoomOperations(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	room := mockRoom{MockIRoom: mocks.NewMockIRoom(ctrl)}
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	peers := NewPeers()
	server := NewServer(log, "", room, peers, nil, time.Second)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	// The leave frame and the closing connection each report a leave.
	left := make(chan struct{})
	var leaves atomic.Int32
	var connectionID string
	gomock.InOrder(
		room.EXPECT().OnConnect(gomock.Any(), gomock.Any()).Do(func(_ context.Context, id string) {
			connectionID = id
		}),
		room.EXPECT().OnJoin(gomock.Any(), gomock.Any(), "alice").Do(func(_ context.Context, id, _ string) {
			req.Equal(connectionID, id)
		}),
		room.EXPECT().OnMessage(gomock.Any(), gomock.Any(), gomock.Any()).Do(func(_ context.Context, _ string, m domain.Message) {
			req.Equal("alice", m.Sender)
			req.Equal("no clock", m.Body)
			req.False(m.Timestamp.IsZero())
		}),
		room.EXPECT().OnLeave(gomock.Any(), gomock.Any()).Times(2).Do(func(context.Context, string) {
			if leaves.Add(1) == 2 {
				close(left)
			}
		}),
	)

	conn := dial(t, ln.Addr().String())
	write(t, conn, `{"type":"join","payload":"alice"}`)
	write(t, conn, `{"type":"nope"}`)
	expect(t, conn, "error")
	write(t, conn, `{"type":"msg","payload":{"user":"alice","message":"no clock"}}`)
	write(t, conn, `{"type":"leave"}`)

	select {
	case <-left:
	case <-time.After(5 * time.Second):
		t.Fatal("leave never reached the room")
	}
}
