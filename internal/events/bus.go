// Package events is the in-process event bus shared by the bridge, the
// command dispatcher, the WebRTC manager and the SSE endpoints.
package events

import (
	"time"

	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to its subscribers. A nil bus drops the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case SourceSelectedEvent:
		event.Publish(b.dispatcher, e)
	case SourcesChangedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStateEvent:
		event.Publish(b.dispatcher, e)
	case PTZCommandEvent:
		event.Publish(b.dispatcher, e)
	case PeerEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler, whose parameter type selects the events it
// receives, and returns an unsubscribe function. Unknown handler types are
// ignored.
//
//	unsub := bus.Subscribe(func(e CaptureStateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SourceSelectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourcesChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PTZCommandEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PeerEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Now formats the current time the way every event timestamp is written.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
