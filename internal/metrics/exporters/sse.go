package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes a StreamMetricsEvent computed from
// the metrics snapshot.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	snapshot func() metrics.Snapshot
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	last     metrics.Snapshot
	lastTime time.Time
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher, interval time.Duration) *SSEExporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &SSEExporter{
		eventBus: eventBus,
		interval: interval,
		snapshot: metrics.GetSnapshot,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.last = s.snapshot()
	s.lastTime = time.Now()
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.publishMetrics(now)
		}
	}
}

func (s *SSEExporter) publishMetrics(now time.Time) {
	cur := s.snapshot()
	elapsed := now.Sub(s.lastTime).Seconds()

	ev := events.StreamMetricsEvent{
		ActiveSessions:  cur.ActiveSessions,
		FramesPublished: cur.FramesPublished,
		FramesSkipped:   cur.FramesSkipped,
		Timestamp:       now.UTC().Format(time.RFC3339Nano),
	}
	if elapsed > 0 {
		ev.FPS = float64(cur.FramesPublished-s.last.FramesPublished) / elapsed
		ev.BytesPerSecond = float64(cur.BytesSent-s.last.BytesSent) / elapsed
	}

	s.last = cur
	s.lastTime = now
	s.eventBus.Publish(ev)
}
