package models

import (
	"time"

	"github.com/smazurov/ptzbridge/internal/discovery"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Release version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Source revision"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.4" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Status models
type StatusData struct {
	Source         discovery.Source `json:"source" doc:"Selected capture source"`
	Target         string           `json:"target" example:"192.168.1.50" doc:"Device control host, empty when unset"`
	Fallback       bool             `json:"fallback" doc:"True when the preferred source was not found"`
	ClockOrigin    time.Time        `json:"clock_origin" doc:"Session clock origin"`
	Frames         uint64           `json:"frames" example:"1520" doc:"Frames captured since start"`
	Timeouts       uint64           `json:"timeouts" example:"0" doc:"Pull timeouts since start"`
	Stalled        bool             `json:"stalled" doc:"True while the source delivers no frames"`
	LastFrameAgeMs int64            `json:"last_frame_age_ms" example:"33" doc:"Age of the cached frame, -1 before the first frame"`
	Peers          int              `json:"peers" example:"1" doc:"Connected WebRTC consumers"`
}

type StatusResponse struct {
	Body StatusData
}

// Source listing models
type SourcesData struct {
	Sources []discovery.Source `json:"sources" doc:"Sources currently reachable"`
	Count   int                `json:"count" example:"2" doc:"Number of sources"`
}

type SourcesResponse struct {
	Body SourcesData
}

// PTZ models
type PTZResultData struct {
	Status  string `json:"status" example:"success" doc:"success or error"`
	Command string `json:"command,omitempty" example:"zoom_speed" doc:"Command that was handled"`
	Code    string `json:"code,omitempty" example:"OUT_OF_RANGE" doc:"Failure class"`
	Error   string `json:"error,omitempty" doc:"Failure detail"`
}

type PTZResponse struct {
	Body PTZResultData
}

// Snapshot models
type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}
