// Package metrics provides Prometheus metrics for the frame broadcaster,
// stream sessions and the capture source.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camfeed"

var (
	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcaster",
		Name:      "frames_published_total",
		Help:      "Frames published by the capture source",
	})

	frameBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "broadcaster",
		Name:      "frame_bytes",
		Help:      "Size of the latest published frame",
	})

	frameGeneration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "broadcaster",
		Name:      "generation",
		Help:      "Generation number of the latest published frame",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "sessions_active",
		Help:      "Clients currently receiving the MJPEG stream",
	})

	sessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "sessions_ended_total",
		Help:      "Finished stream sessions by reason",
	}, []string{"reason"})

	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_sent_total",
		Help:      "Frames written to clients across all sessions",
	})

	framesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_skipped_total",
		Help:      "Generations slow clients never received",
	})

	bytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "bytes_sent_total",
		Help:      "Bytes written to clients including multipart framing",
	})

	sourceState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "state",
		Help:      "1 for the current state of the capture source",
	}, []string{"source", "state"})

	sourceRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "restarts_total",
		Help:      "Capture process restarts",
	}, []string{"source"})

	// Local mirror of the counters for the JSON API and SSE exporter.
	published   atomic.Uint64
	sent        atomic.Uint64
	skipped     atomic.Uint64
	sentBytes   atomic.Uint64
	active      atomic.Int64
	lastPublish atomic.Int64

	stateMu      sync.Mutex
	sourceStates = make(map[string]string)
)

// Snapshot holds current metric values.
type Snapshot struct {
	FramesPublished uint64    `json:"frames_published"`
	FramesSent      uint64    `json:"frames_sent"`
	FramesSkipped   uint64    `json:"frames_skipped"`
	BytesSent       uint64    `json:"bytes_sent"`
	ActiveSessions  int64     `json:"active_sessions"`
	LastPublish     time.Time `json:"last_publish,omitzero"`
}

// FramePublished records one published frame.
func FramePublished(seq uint64, size int) {
	framesPublished.Inc()
	frameBytes.Set(float64(size))
	frameGeneration.Set(float64(seq))
	published.Add(1)
	lastPublish.Store(time.Now().UnixNano())
}

// SessionStarted increments the active session gauge.
func SessionStarted() {
	sessionsActive.Inc()
	active.Add(1)
}

// SessionEnded decrements the active session gauge and counts the reason.
func SessionEnded(reason string) {
	sessionsActive.Dec()
	active.Add(-1)
	sessionsEnded.WithLabelValues(reason).Inc()
}

// SetSourceState marks state as the current state of source.
func SetSourceState(source, state string) {
	stateMu.Lock()
	defer stateMu.Unlock()
	if old, ok := sourceStates[source]; ok {
		sourceState.WithLabelValues(source, old).Set(0)
	}
	sourceStates[source] = state
	sourceState.WithLabelValues(source, state).Set(1)
}

// SourceRestarted counts a capture process restart.
func SourceRestarted(source string) {
	sourceRestarts.WithLabelValues(source).Inc()
}

// Observer records per-frame session counters. It satisfies
// mjpeg.Observer.
type Observer struct{}

// FrameSent records one frame written to a client.
func (Observer) FrameSent(_ string, n int, skippedFrames uint64) {
	framesSent.Inc()
	bytesSent.Add(float64(n))
	sent.Add(1)
	sentBytes.Add(uint64(n))
	if skippedFrames > 0 {
		framesSkipped.Add(float64(skippedFrames))
		skipped.Add(skippedFrames)
	}
}

// GetSnapshot returns the current metric values.
func GetSnapshot() Snapshot {
	s := Snapshot{
		FramesPublished: published.Load(),
		FramesSent:      sent.Load(),
		FramesSkipped:   skipped.Load(),
		BytesSent:       sentBytes.Load(),
		ActiveSessions:  active.Load(),
	}
	if ns := lastPublish.Load(); ns > 0 {
		s.LastPublish = time.Unix(0, ns)
	}
	return s
}
