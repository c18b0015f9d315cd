package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	req := require.New(t)
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.MessageAppended(1)
	metrics.MessageAppended(2)
	metrics.SubscriptionOpened()
	metrics.SubscriptionOpened()
	metrics.SubscriptionEnded("detached")

	req.Equal(2.0, testutil.ToFloat64(metrics.messagesAppended))
	req.Equal(2.0, testutil.ToFloat64(metrics.tail))
	req.Equal(1.0, testutil.ToFloat64(metrics.subscriptionsActive))
	req.Equal(1.0, testutil.ToFloat64(metrics.subscriptionsEnded.WithLabelValues("detached")))
}

func TestMetrics_Nil_Is_Noop(t *testing.T) {
	var metrics *Metrics
	require.NotPanics(t, func() {
		metrics.MessageAppended(1)
		metrics.SubscriptionEnded("detached")
		metrics.AttachmentStored(10)
		metrics.ProcessSampled(1024, 1.5)
	})
}

func TestMetrics_Process_Sample(t *testing.T) {
	req := require.New(t)
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ProcessSampled(4096, 12.5)

	req.Equal(4096.0, testutil.ToFloat64(metrics.processRSS))
	req.Equal(12.5, testutil.ToFloat64(metrics.processCPU))
}
