package e2e

import (
	"chat-room/errors"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testChatroomSuite struct {
	BaseSuite
}

func TestChatroomSuite(t *testing.T) {
	suite.Run(t, &testChatroomSuite{})
}

func (s *testChatroomSuite) TestConversation() {
	// Names are unique per run so the suite can target a server with history.
	run := uuid.NewString()[:8]
	aliceName, bobName := "alice-"+run, "bob-"+run

	s.Run("Step 0: Server reports SERVING", func() {
		s.WithHealth("Check overall health", func(ctx context.Context, client healthpb.HealthClient) {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
			s.Require().NoError(err)
			s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
		})
	})

	alice := s.Join(aliceName)
	s.Run("Step 1: Alice joins the room", func() {
		Await(&s.BaseSuite, alice.View.Connected, "alice connected")
		s.Require().NotEmpty(Await(&s.BaseSuite, alice.View.Joined, "alice joined"))
	})

	s.Run("Step 2: A second client cannot take Alice's name", func() {
		impostor := s.Join(aliceName)
		reason := Await(&s.BaseSuite, impostor.View.Failures, "name taken error")
		s.Require().Equal(errors.ErrNameTaken.Error(), reason)
	})

	body := fmt.Sprintf("hello from %s at %s", aliceName, time.Now().Format(time.RFC3339Nano))
	s.Run("Step 3: Alice's message reaches herself", func() {
		s.Require().NoError(alice.Send(context.Background(), body))
		s.Require().True(s.awaitMessage(alice, body), "alice never received her own message")
	})

	s.Run("Step 4: Bob joins later and gets the message in his replay", func() {
		bob := s.Join(bobName)
		Await(&s.BaseSuite, bob.View.Joined, "bob joined")
		s.Require().True(s.awaitMessage(bob, body), "bob's replay misses alice's message")
	})
}

// awaitMessage waits until p has received a message carrying body.
func (s *testChatroomSuite) awaitMessage(p *Participant, body string) bool {
	return s.Eventually(func() bool { return p.View.HasMessage(body) }, eventTimeout, pollInterval)
}
