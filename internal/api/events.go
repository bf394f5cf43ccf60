package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/ptzbridge/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time capture state, PTZ commands, peer changes and source selection",
		Tags:        []string{"events"},
	}, map[string]any{
		"source-selected": events.SourceSelectedEvent{},
		"sources-changed": events.SourcesChangedEvent{},
		"capture-state":   events.CaptureStateEvent{},
		"ptz-command":     events.PTZCommandEvent{},
		"peer-state":      events.PeerEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SourceSelectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourcesChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureStateEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PTZCommandEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PeerEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// New clients start from the current capture state.
		if err := send.Data(s.captureState()); err != nil {
			return
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

func (s *Server) captureState() events.CaptureStateEvent {
	ev := events.CaptureStateEvent{State: events.CaptureLive, Timestamp: events.Now()}
	if s.options.Loop != nil && s.options.Loop.Stats().Stalled {
		ev.State = events.CaptureStalled
	}
	return ev
}
