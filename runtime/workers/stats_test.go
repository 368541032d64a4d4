package workers

import (
	"chat-room/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fixedRoom struct {
	members  []domain.Participant
	sessions int
}

func (r fixedRoom) Members() []domain.Participant { return r.members }
func (r fixedRoom) SessionCount() int             { return r.sessions }

func TestStatsWorker_Latest_BeforeFirstSample(t *testing.T) {
	req := require.New(t)
	room := fixedRoom{members: []domain.Participant{{ConnectionID: "c1", DisplayName: "alice"}}, sessions: 3}
	worker := NewStatsWorker(slog.Default(), room, time.Hour)

	stats := worker.Latest()

	req.Equal(1, stats.Members)
	req.Equal(3, stats.Sessions)
	req.False(stats.SampledAt.IsZero())
}

func TestStatsWorker_Run_SamplesProcess(t *testing.T) {
	req := require.New(t)
	room := fixedRoom{sessions: 2}
	worker := NewStatsWorker(logs.GetLoggerFromLevel(slog.LevelDebug), room, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool {
		return worker.Latest().RSSBytes > 0
	}, time.Second, 10*time.Millisecond)
	req.Equal(2, worker.Latest().Sessions)

	cancel()
	req.NoError(<-done)
}
