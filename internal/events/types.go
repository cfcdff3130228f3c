package events

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionEnded
	TypeSourceStateChanged
	TypeConfigReloaded
	TypeLogEntry
	TypeStreamMetrics
	TypeDeviceChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published when a client opens the MJPEG stream.
type SessionStartedEvent struct {
	SessionID  string `json:"session_id" example:"4f1c7c1e-8d2a-4d8e-9d6c-1c2b3a4d5e6f" doc:"Session identifier"`
	RemoteAddr string `json:"remote_addr" example:"192.168.1.20:53122" doc:"Client address"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionEndedEvent is published when a stream session finishes.
type SessionEndedEvent struct {
	SessionID     string  `json:"session_id" doc:"Session identifier"`
	RemoteAddr    string  `json:"remote_addr" doc:"Client address"`
	Reason        string  `json:"reason" example:"client_gone" doc:"Why the session ended: cancelled, client_gone, no_frame"`
	FramesSent    uint64  `json:"frames_sent" doc:"Frames written to the client"`
	FramesSkipped uint64  `json:"frames_skipped" doc:"Generations the client never saw"`
	BytesSent     uint64  `json:"bytes_sent" doc:"Bytes written including multipart framing"`
	DurationSec   float64 `json:"duration_sec" doc:"Session length in seconds"`
	Timestamp     string  `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionEndedEvent.
func (e SessionEndedEvent) Type() uint32 { return TypeSessionEnded }

// SourceStateChangedEvent is published when the frame source changes state.
type SourceStateChangedEvent struct {
	Source    string `json:"source" example:"v4l2:/dev/video0" doc:"Frame source name"`
	OldState  string `json:"old_state" example:"starting" doc:"Previous state"`
	State     string `json:"state" example:"running" doc:"New state"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourceStateChangedEvent.
func (e SourceStateChangedEvent) Type() uint32 { return TypeSourceStateChanged }

// ConfigReloadedEvent is published after the config file was reloaded.
type ConfigReloadedEvent struct {
	Changed   []string `json:"changed" example:"[\"camera.saturation\"]" doc:"Settings that changed"`
	Restarted bool     `json:"restarted" doc:"Whether the source was restarted"`
	Timestamp string   `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// StreamMetricsEvent is a periodic summary of stream throughput.
type StreamMetricsEvent struct {
	FPS             float64 `json:"fps" example:"29.97" doc:"Frames published per second over the last interval"`
	ActiveSessions  int64   `json:"active_sessions" doc:"Clients currently streaming"`
	FramesPublished uint64  `json:"frames_published" doc:"Frames published since start"`
	FramesSkipped   uint64  `json:"frames_skipped" doc:"Generations skipped by slow clients since start"`
	BytesPerSecond  float64 `json:"bytes_per_second" doc:"Bytes written to clients per second over the last interval"`
	Timestamp       string  `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamMetricsEvent.
func (e StreamMetricsEvent) Type() uint32 { return TypeStreamMetrics }

// DeviceChangedEvent reports the capture device appearing or disappearing.
type DeviceChangedEvent struct {
	Action    string `json:"action" enum:"added,removed" doc:"Hotplug action"`
	Device    string `json:"device" example:"/dev/video0" doc:"Device node"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceChangedEvent.
func (e DeviceChangedEvent) Type() uint32 { return TypeDeviceChanged }
