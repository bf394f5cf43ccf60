package events

// Event type constants for kelindar/event.
const (
	TypeSourceSelected uint32 = iota + 1
	TypeSourcesChanged
	TypeCaptureState
	TypePTZCommand
	TypePeer
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Capture states carried by CaptureStateEvent.
const (
	CaptureLive    = "live"
	CaptureStalled = "stalled"
)

// SourceSelectedEvent is published once the session has chosen a source.
type SourceSelectedEvent struct {
	Name      string `json:"name" example:"Cam-A" doc:"Selected source name"`
	Address   string `json:"address" example:"192.168.1.50:80" doc:"Source host:port"`
	Target    string `json:"target" example:"192.168.1.50" doc:"Device control host"`
	Fallback  bool   `json:"fallback" doc:"True when the preferred source was missing"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourceSelectedEvent.
func (e SourceSelectedEvent) Type() uint32 { return TypeSourceSelected }

// SourcesChangedEvent is published when the sources file is reloaded.
type SourcesChangedEvent struct {
	Names     []string `json:"names" doc:"Configured source names"`
	Timestamp string   `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourcesChangedEvent.
func (e SourcesChangedEvent) Type() uint32 { return TypeSourcesChanged }

// CaptureStateEvent reports the capture source going stalled or live.
type CaptureStateEvent struct {
	State     string `json:"state" enum:"live,stalled" doc:"Capture state"`
	Timeouts  int    `json:"timeouts" doc:"Consecutive pull timeouts when stalled"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStateEvent.
func (e CaptureStateEvent) Type() uint32 { return TypeCaptureState }

// PTZCommandEvent is published for every dispatched control command.
type PTZCommandEvent struct {
	Command   string `json:"command" example:"recall_preset" doc:"Command kind"`
	State     string `json:"state" example:"acknowledged" doc:"Final dispatch state"`
	Error     string `json:"error,omitempty" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PTZCommandEvent.
func (e PTZCommandEvent) Type() uint32 { return TypePTZCommand }

// PeerEvent reports WebRTC consumer lifecycle changes.
type PeerEvent struct {
	PeerID    string `json:"peer_id" doc:"Consumer identifier"`
	State     string `json:"state" example:"connected" doc:"Peer connection state"`
	Peers     int    `json:"peers" doc:"Active consumer count after the change"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PeerEvent.
func (e PeerEvent) Type() uint32 { return TypePeer }

// LogEntryEvent carries a log line to SSE clients.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"ptz" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
