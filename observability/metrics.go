// Package observability exposes the relay counters to Prometheus.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chat_relay"

// Metrics groups every collector of the relay.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	messagesAppended      prometheus.Counter
	appendFailures        prometheus.Counter
	tail                  prometheus.Gauge
	subscriptionsActive   prometheus.Gauge
	subscriptionsEnded    *prometheus.CounterVec
	eventsDelivered       prometheus.Counter
	attachmentsStored     prometheus.Counter
	attachmentBytes       prometheus.Counter
	attachmentStoreErrors prometheus.Counter
	sessionsActive        prometheus.Gauge
	processRSS            prometheus.Gauge
	processCPU            prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "messages_appended_total",
			Help: "Messages persisted in the log.",
		}),
		appendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "append_failures_total",
			Help: "Appends rejected or not persisted.",
		}),
		tail: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "tail_id",
			Help: "Id of the last persisted message.",
		}),
		subscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "hub", Name: "subscriptions_active",
			Help: "Subscriptions currently attached.",
		}),
		subscriptionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hub", Name: "subscriptions_ended_total",
			Help: "Subscriptions that ended, by cause.",
		}, []string{"cause"}),
		eventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hub", Name: "events_delivered_total",
			Help: "Change events handed to subscribers.",
		}),
		attachmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attachments", Name: "stored_total",
			Help: "Attachments durably stored.",
		}),
		attachmentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attachments", Name: "stored_bytes_total",
			Help: "Bytes of attachment content stored.",
		}),
		attachmentStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "attachments", Name: "store_failures_total",
			Help: "Attachment writes that failed.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "active",
			Help: "Client sessions currently open.",
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "process", Name: "rss_bytes",
			Help: "Resident memory sampled by the heartbeat.",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "process", Name: "cpu_percent",
			Help: "CPU usage sampled by the heartbeat.",
		}),
	}
	reg.MustRegister(
		m.messagesAppended, m.appendFailures, m.tail,
		m.subscriptionsActive, m.subscriptionsEnded, m.eventsDelivered,
		m.attachmentsStored, m.attachmentBytes, m.attachmentStoreErrors,
		m.sessionsActive, m.processRSS, m.processCPU,
	)
	return m
}

func (m *Metrics) MessageAppended(id uint64) {
	if m == nil {
		return
	}
	m.messagesAppended.Inc()
	m.tail.Set(float64(id))
}

func (m *Metrics) AppendFailed() {
	if m == nil {
		return
	}
	m.appendFailures.Inc()
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptionsActive.Inc()
}

// SubscriptionEnded records why a subscription stopped: "detached" or the
// cancellation reason.
func (m *Metrics) SubscriptionEnded(cause string) {
	if m == nil {
		return
	}
	m.subscriptionsActive.Dec()
	m.subscriptionsEnded.WithLabelValues(cause).Inc()
}

func (m *Metrics) EventDelivered() {
	if m == nil {
		return
	}
	m.eventsDelivered.Inc()
}

func (m *Metrics) AttachmentStored(size int64) {
	if m == nil {
		return
	}
	m.attachmentsStored.Inc()
	m.attachmentBytes.Add(float64(size))
}

func (m *Metrics) AttachmentFailed() {
	if m == nil {
		return
	}
	m.attachmentStoreErrors.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) ProcessSampled(rss uint64, cpuPercent float64) {
	if m == nil {
		return
	}
	m.processRSS.Set(float64(rss))
	m.processCPU.Set(cpuPercent)
}
