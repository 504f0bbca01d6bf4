// Package models holds the request and response types of the HTTP API.
package models

import (
	"time"

	"github.com/smazurov/camwatch/internal/ffmpeg"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Sources int    `json:"sources" example:"3" doc:"Configured sources"`
	Online  int    `json:"online" example:"2" doc:"Sources currently online"`

	Broadcast *BroadcastData `json:"broadcast,omitempty" doc:"Event broadcast state"`
}

// BroadcastData describes the embedded broker and the event publisher.
type BroadcastData struct {
	Clients       int    `json:"clients" example:"3" doc:"Connected broker clients, the publisher included"`
	Subscriptions int    `json:"subscriptions" example:"4" doc:"Broker subscriptions, internal ones included"`
	Published     uint64 `json:"published" example:"1200" doc:"Events handed to the broker"`
	Dropped       uint64 `json:"dropped" example:"0" doc:"Events the transport refused"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build date"`
	GoVersion string `json:"go_version" example:"go1.25.1" doc:"Go version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Source models
type SourceInfo struct {
	ID          string     `json:"id" example:"front-door" doc:"Source identifier"`
	Name        string     `json:"name" example:"Front door" doc:"Display name"`
	Type        string     `json:"type" example:"rtsp" enum:"webcam,rtsp" doc:"Source kind"`
	State       string     `json:"state" example:"online" enum:"online,offline" doc:"Connection state"`
	Reconnects  int        `json:"reconnects" example:"2" doc:"Successful reopens since start"`
	LastAttempt *time.Time `json:"last_attempt,omitempty" doc:"Time of the most recent open attempt"`
	LastError   string     `json:"last_error,omitempty" example:"open rtsp://***: connection refused" doc:"Most recent failure"`
}

type SourcesData struct {
	Sources []SourceInfo `json:"sources" doc:"Sources in cycle order"`
	Count   int          `json:"count" example:"3" doc:"Number of sources"`
	Online  int          `json:"online" example:"2" doc:"Number of online sources"`
}

type SourcesResponse struct {
	Body SourcesData
}

// Composite models
type CompositeResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	LastModified string `header:"Last-Modified"`
	Body         []byte
}

// FFmpeg options models
type OptionsData struct {
	Options []ffmpeg.Option `json:"options" doc:"Input options accepted for capture sources"`
}

type OptionsResponse struct {
	Body OptionsData
}

// ConnectedEvent is the first message on every SSE stream.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Connection message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Connection time"`
}
