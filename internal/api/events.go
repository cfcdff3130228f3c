package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camfeed/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session, capture state, config reload and throughput events",
		Tags:        []string{"events"},
	}, map[string]any{
		"session-started":      events.SessionStartedEvent{},
		"session-ended":        events.SessionEndedEvent{},
		"source-state-changed": events.SourceStateChangedEvent{},
		"config-reloaded":      events.ConfigReloadedEvent{},
		"stream-metrics":       events.StreamMetricsEvent{},
		"device-changed":       events.DeviceChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.eventBus == nil {
			<-ctx.Done()
			return
		}

		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionEndedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourceStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamMetricsEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current source state first so a new client does not wait for a transition.
		if src := s.opts.Source; src != nil {
			state := string(src.Info().State)
			if err := send.Data(events.SourceStateChangedEvent{
				Source:    src.Name(),
				OldState:  state,
				State:     state,
				Timestamp: events.Now(),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
