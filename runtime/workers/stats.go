package workers

import (
	"chat-room/domain"
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

const defaultStatsInterval = 30 * time.Second

// Room is the read side of the room the stats are collected from.
type Room interface {
	Members() []domain.Participant
	SessionCount() int
}

// RoomStats is one sample of the room and of the process hosting it.
type RoomStats struct {
	Members    int       `json:"members"`
	Sessions   int       `json:"sessions"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	SampledAt  time.Time `json:"sampled_at"`
}

// StatsWorker samples the room periodically, logs the sample and keeps the latest one.
type StatsWorker struct {
	log      *slog.Logger
	room     Room
	interval time.Duration

	mu     sync.RWMutex
	latest RoomStats
}

func NewStatsWorker(log *slog.Logger, room Room, interval time.Duration) *StatsWorker {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	return &StatsWorker{log: log, room: room, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sample(p)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping stats worker")
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

// Latest returns the last sample, or a room-only sample if none was taken yet.
func (w *StatsWorker) Latest() RoomStats {
	w.mu.RLock()
	latest := w.latest
	w.mu.RUnlock()
	if latest.SampledAt.IsZero() {
		return RoomStats{
			Members:   len(w.room.Members()),
			Sessions:  w.room.SessionCount(),
			SampledAt: time.Now().UTC(),
		}
	}
	return latest
}

func (w *StatsWorker) sample(p *process.Process) {
	stats := RoomStats{
		Members:   len(w.room.Members()),
		Sessions:  w.room.SessionCount(),
		SampledAt: time.Now().UTC(),
	}
	if memInfo, err := p.MemoryInfo(); err != nil {
		w.log.Warn("Failed to collect memory stats", "error", err)
	} else {
		stats.RSSBytes = memInfo.RSS
	}
	if cpu, err := p.CPUPercent(); err != nil {
		w.log.Warn("Failed to collect cpu stats", "error", err)
	} else {
		stats.CPUPercent = cpu
	}

	w.mu.Lock()
	w.latest = stats
	w.mu.Unlock()

	w.log.Info("Room stats",
		"members", stats.Members,
		"sessions", stats.Sessions,
		"rss_bytes", stats.RSSBytes,
		"cpu_percent", stats.CPUPercent)
}
