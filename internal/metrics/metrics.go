// Package metrics exposes the assistant's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coolcar"

// Registry holds every metric below plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	Replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_total",
		Help:      "Chat replies by the branch that produced them.",
	}, []string{"source", "context"})

	ReplyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reply_duration_seconds",
		Help:      "Time to compose a chat reply.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	})

	AugmentCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "augmentation_calls_total",
		Help:      "Outbound search and model calls by result.",
	}, []string{"kind", "result"})

	AugmentLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "augmentation_duration_seconds",
		Help:      "Duration of outbound augmentation calls including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	Bookings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_total",
		Help:      "Booking lifecycle events.",
	}, []string{"event"})

	RelaySubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_submissions_total",
		Help:      "Form relay submissions by form and result.",
	}, []string{"form", "result"})

	MemoryEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_entries",
		Help:      "Exchanges held in conversation memory.",
	})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Chat sessions currently held in memory.",
	})

	WebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Connected chat widget clients.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Replies, ReplyLatency, AugmentCalls, AugmentLatency,
		Bookings, RelaySubmissions, MemoryEntries, ActiveSessions, WebSocketClients,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
