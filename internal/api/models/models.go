package models

import (
	"time"

	"github.com/smazurov/camfeed/internal/mjpeg"
	"github.com/smazurov/camfeed/internal/version"
)

// Health check models
type HealthData struct {
	Status         string `json:"status" example:"ok" enum:"ok,waiting,degraded" doc:"Service status"`
	Message        string `json:"message" example:"Streaming" doc:"Status message"`
	Generation     uint64 `json:"generation" example:"1234" doc:"Frames published since start"`
	ActiveSessions int64  `json:"active_sessions" example:"2" doc:"Clients currently streaming"`
	SourceState    string `json:"source_state" example:"running" doc:"Capture process state"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionResponse struct {
	Body version.Info
}

// Stream models
type SourceData struct {
	Name         string    `json:"name" example:"v4l2:/dev/video0" doc:"Frame source name"`
	State        string    `json:"state" example:"running" doc:"Capture process state"`
	PID          int       `json:"pid,omitempty" example:"4242" doc:"Capture process ID"`
	StartedAt    time.Time `json:"started_at,omitzero" doc:"When the capture process started"`
	RestartCount int       `json:"restart_count" doc:"Capture process restarts"`
	Resolution   string    `json:"resolution" example:"640x480" doc:"Configured resolution"`
	Framerate    int       `json:"framerate" example:"30" doc:"Configured framerate"`
	Quality      int       `json:"quality" example:"5" doc:"MJPEG quality scale (2-31, lower is better)"`
	Saturation   string    `json:"saturation,omitempty" example:"1.5" doc:"Saturation filter value"`
	TestPattern  bool      `json:"test_pattern" doc:"Whether a synthetic pattern is captured"`
}

type StreamData struct {
	Generation     uint64        `json:"generation" example:"1234" doc:"Frames published since start"`
	HasFrame       bool          `json:"has_frame" doc:"Whether a frame has been published"`
	LastFrameSize  int           `json:"last_frame_size" example:"48213" doc:"Size of the latest frame in bytes"`
	LastFrameAgeMs int64         `json:"last_frame_age_ms" example:"33" doc:"Milliseconds since the latest frame was published"`
	ActiveSessions int64         `json:"active_sessions" example:"2" doc:"Clients currently streaming"`
	Sessions       []mjpeg.Stats `json:"sessions" doc:"Per-client stream counters"`
	Source         *SourceData   `json:"source,omitempty" doc:"Frame source status"`
}

type StreamResponse struct {
	Body StreamData
}

// Snapshot models
type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum number of entries, newest last"`
	Module string `query:"module" doc:"Only return entries from this module"`
	Level  string `query:"level" doc:"Minimum level: debug, info, warn or error"`
}

type LogEntryData struct {
	Timestamp  time.Time      `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Recent log entries"`
	Count   int            `json:"count" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
