// Package observability exposes Prometheus metrics for the link and
// command paths. Registration is lazy so tests and headless runs that
// never scrape pay nothing.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cydlink",
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Frames written to the serial link.",
		},
		[]string{"type"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cydlink",
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Frames decoded off the serial link.",
		},
		[]string{"type"},
	)
	connectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cydlink",
			Subsystem: "link",
			Name:      "connect_attempts_total",
			Help:      "Transport open attempts, successful or not.",
		},
	)
	linkUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cydlink",
			Subsystem: "link",
			Name:      "up",
			Help:      "1 while the serial link is connected.",
		},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cydlink",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action", "result"},
	)
	queueRejects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cydlink",
			Subsystem: "link",
			Name:      "queue_rejects_total",
			Help:      "Outbound sends rejected by a full queue.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, framesReceived, connectAttempts, linkUp,
			commandDuration, queueRejects,
		)
	})
}

func RecordFrameSent(msgType string) {
	RegisterMetrics()
	framesSent.WithLabelValues(msgType).Inc()
}

func RecordFrameReceived(msgType string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(msgType).Inc()
}

func RecordConnectAttempt(connected bool) {
	RegisterMetrics()
	connectAttempts.Inc()
	if connected {
		linkUp.Set(1)
	}
}

func RecordLinkDown() {
	RegisterMetrics()
	linkUp.Set(0)
}

func RecordCommand(action, result string, duration time.Duration) {
	RegisterMetrics()
	commandDuration.WithLabelValues(action, result).Observe(duration.Seconds())
}

func RecordQueueReject() {
	RegisterMetrics()
	queueRejects.Inc()
}
