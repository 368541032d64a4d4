package e2e

import (
	"chat-room/client"
	"chat-room/domain"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const (
	eventTimeout = 10 * time.Second
	pollInterval = 50 * time.Millisecond
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration and skips when no server is targeted.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.WebsocketURL == "" || s.Config.GrpcAddr == "" {
		s.T().Skip("CHATROOM_WS_URL and CHATROOM_GRPC_ADDR must point to a running server")
	}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// GrpcConn initializes a gRPC connection with logging, colors, and JSON debugging
func (s *BaseSuite) GrpcConn(t *testing.T, name string, addr string) *grpc.ClientConn {
	s.header(t, name)

	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+addr)
	return conn
}

// WithHealth provides a health client within a contextual test step
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	conn := s.GrpcConn(s.T(), name, s.Config.GrpcAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fn(ctx, healthpb.NewHealthClient(conn))
}

// Participant is a websocket client with its recorded view.
type Participant struct {
	*client.Client
	View *RecordingView
}

// Join connects a new participant and waits for the server's answer to its join.
func (s *BaseSuite) Join(name string) *Participant {
	s.header(s.T(), "Join as "+name)
	view := NewRecordingView()
	c := client.New(logs.GetLoggerFromLevel(slog.LevelInfo), s.Config.WebsocketURL, view)
	s.Require().NoError(c.Connect(context.Background(), name))
	s.T().Cleanup(c.Disconnect)
	return &Participant{Client: c, View: view}
}

// RecordingView collects what the server pushes. Messages are kept in memory
// so the client's read goroutine never waits on the test.
type RecordingView struct {
	Connected chan struct{}
	Joined    chan string
	Failures  chan string

	mu       sync.Mutex
	messages []domain.Message
}

func NewRecordingView() *RecordingView {
	return &RecordingView{
		Connected: make(chan struct{}, 1),
		Joined:    make(chan string, 1),
		Failures:  make(chan string, 16),
	}
}

func (v *RecordingView) ConnectedToServer() { v.Connected <- struct{}{} }
func (v *RecordingView) RoomJoined(roomName string) { v.Joined <- roomName }
func (v *RecordingView) ShowError(reason string) { v.Failures <- reason }

func (v *RecordingView) AddMessage(m domain.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, m)
}

// Messages returns a copy of the messages received so far, in arrival order.
func (v *RecordingView) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.messages)
}

func (v *RecordingView) HasMessage(body string) bool {
	return slices.ContainsFunc(v.Messages(), func(m domain.Message) bool { return m.Body == body })
}

func Await[T any](s *BaseSuite, ch <-chan T, what string) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(eventTimeout):
		s.FailNow("timed out waiting for " + what)
		var zero T
		return zero
	}
}
