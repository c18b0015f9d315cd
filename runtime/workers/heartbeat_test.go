package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatWorker_Samples_Until_Cancelled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	var beats atomic.Int32
	worker := NewHeartbeatWorker(log, 10*time.Millisecond, metrics, func() RelayStats {
		beats.Add(1)
		return RelayStats{Tail: 3, Subscriptions: 2, Sessions: 1}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// When the worker runs until its context ends
	err := worker.Run(ctx)

	// Then it returned cleanly after several beats
	req.NoError(err)
	req.GreaterOrEqual(beats.Load(), int32(2))
}
