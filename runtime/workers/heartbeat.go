package workers

import (
	"chat-relay/domain"
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const defaultHeartbeatInterval = 30 * time.Second

// RelayStats is what the heartbeat reports besides process usage.
type RelayStats struct {
	Tail          domain.MessageID
	Subscriptions int
	Sessions      int
}

// HeartbeatWorker periodically samples the process and the relay state,
// logs them and feeds the process gauges.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	metrics  *observability.Metrics
	stats    func() RelayStats
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration,
	metrics *observability.Metrics, stats func() RelayStats) *HeartbeatWorker {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HeartbeatWorker{log: log, interval: interval, metrics: metrics, stats: stats}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	stats := w.stats()
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
	} else {
		w.metrics.ProcessSampled(rss, cpu)
	}
	w.log.Info("Heartbeat",
		"tail", stats.Tail,
		"subscriptions", stats.Subscriptions,
		"sessions", stats.Sessions,
		"rss_bytes", rss,
		"cpu_percent", cpu)
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
