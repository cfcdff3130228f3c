package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camfeed/internal/api/models"
	"github.com/smazurov/camfeed/internal/events"
	"github.com/smazurov/camfeed/internal/logging"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// registerLogRoutes registers the recent-logs endpoint and the log stream.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent logs",
		Description: "Most recent entries from the in-memory log buffer, oldest first",
		Tags:        []string{"logs"},
	}, func(ctx context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		entries := filterLogs(logging.GetBuffer(), input)
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		var buffer logReader
		if b := logging.GetBuffer(); b != nil {
			buffer = b
		}
		s.streamLogs(ctx, buffer, send)
	})
}

type logReader interface {
	ReadAll() []logging.LogEntry
}

// streamLogs subscribes before replaying the buffer so entries logged in
// between are not lost. Live entries already covered by the replay are
// skipped.
func (s *Server) streamLogs(ctx context.Context, buffer logReader, send sse.Sender) {
	var eventCh chan any
	if s.eventBus != nil {
		eventCh = make(chan any, 256)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()
	}

	var replayedUntil time.Time
	if buffer != nil {
		for _, entry := range buffer.ReadAll() {
			event := events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			}
			if err := send.Data(event); err != nil {
				return
			}
			replayedUntil = entry.Timestamp
		}
	}

	if eventCh == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			if entry, ok := event.(events.LogEntryEvent); ok && !replayedUntil.IsZero() {
				if ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err == nil && !ts.After(replayedUntil) {
					continue
				}
			}
			if err := send.Data(event); err != nil {
				return
			}
		}
	}
}

func filterLogs(buffer *logging.RingBuffer, input *models.LogsRequest) []models.LogEntryData {
	out := []models.LogEntryData{}
	if buffer == nil {
		return out
	}

	minRank := levelRank[input.Level]
	var matched []logging.LogEntry
	for _, entry := range buffer.ReadAll() {
		if input.Module != "" && entry.Module != input.Module {
			continue
		}
		if levelRank[entry.Level] < minRank {
			continue
		}
		matched = append(matched, entry)
	}

	for _, entry := range logging.Tail(matched, input.Limit) {
		out = append(out, models.LogEntryData{
			Timestamp:  entry.Timestamp,
			Level:      entry.Level,
			Module:     entry.Module,
			Message:    entry.Message,
			Attributes: entry.Attributes,
		})
	}
	return out
}
