package e2e

import (
	"chat-room/domain"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordingView_KeepsEveryMessageWithoutBlocking(t *testing.T) {
	req := require.New(t)
	view := NewRecordingView()

	// When the server pushes far more messages than anyone reads
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			view.AddMessage(domain.MessageFromMillis(int64(i), "zoe", fmt.Sprintf("message %d", i)))
		}
	}()

	// Then the pushing side never waits
	select {
	case <-done:
	case <-time.After(eventTimeout):
		t.Fatal("recording messages blocked")
	}
	req.Len(view.Messages(), 5000)
	req.True(view.HasMessage("message 4999"))
	req.False(view.HasMessage("message 5000"))
}
