package events

// Event type constants for kelindar/event.
const (
	TypeSourceStateChanged uint32 = iota + 1
	TypeCycleCompleted
	TypeDetection
	TypeSourcesReloaded
	TypeSourceMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SourceStateChangedEvent is published when a frame source goes online or offline.
type SourceStateChangedEvent struct {
	CameraID   string `json:"camera_id" example:"front-door" doc:"Source identifier"`
	OldState   string `json:"old_state" example:"offline" doc:"Previous state"`
	NewState   string `json:"new_state" example:"online" doc:"Current state"`
	Error      string `json:"error,omitempty" example:"open rtsp://***: timeout" doc:"Failure that caused the transition"`
	Reconnects int    `json:"reconnects" example:"3" doc:"Successful reopens since start"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourceStateChangedEvent.
func (e SourceStateChangedEvent) Type() uint32 { return TypeSourceStateChanged }

// Online reports whether the source is online after the transition.
func (e SourceStateChangedEvent) Online() bool {
	return e.NewState == "online"
}

// CycleCompletedEvent summarizes one acquisition cycle.
type CycleCompletedEvent struct {
	Sequence   uint64  `json:"sequence" example:"42" doc:"Cycle number since start"`
	Sources    int     `json:"sources" example:"3" doc:"Number of sources polled"`
	Live       int     `json:"live" example:"2" doc:"Number of sources that produced a frame"`
	Events     int     `json:"events" example:"2" doc:"Number of events produced"`
	Published  int     `json:"published" example:"2" doc:"Number of events handed to the broadcast channel"`
	DurationMs float64 `json:"duration_ms" example:"35.2" doc:"Cycle duration in milliseconds"`
	Timestamp  string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CycleCompletedEvent.
func (e CycleCompletedEvent) Type() uint32 { return TypeCycleCompleted }

// DetectionEvent mirrors a published detection event for in-process consumers.
type DetectionEvent struct {
	CameraID  string       `json:"camera_id" example:"front-door" doc:"Source identifier"`
	Timestamp float64      `json:"timestamp" example:"1706351400.25" doc:"Capture time in seconds since the Unix epoch"`
	Boxes     [][4]float64 `json:"boxes" doc:"Bounding boxes as x1, y1, x2, y2"`
	Labels    []string     `json:"labels" example:"[\"person\"]" doc:"Class label per box"`
	Bytes     int          `json:"bytes" example:"512" doc:"Encoded payload size"`
}

// Type returns the event type identifier for DetectionEvent.
func (e DetectionEvent) Type() uint32 { return TypeDetection }

// SourcesReloadedEvent is published after a new source list has been applied.
type SourcesReloadedEvent struct {
	Sources   []string `json:"sources" example:"[\"front-door\",\"desk\"]" doc:"Source identifiers now in use"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourcesReloadedEvent.
func (e SourcesReloadedEvent) Type() uint32 { return TypeSourcesReloaded }

// SourceMetricsEvent carries periodic per-source counters for SSE clients.
type SourceMetricsEvent struct {
	EventType  string `json:"type"`
	CameraID   string `json:"camera_id"`
	Online     bool   `json:"online"`
	Reconnects string `json:"reconnects"`
	Events     string `json:"events"`
}

// Type returns the event type identifier for SourceMetricsEvent.
func (e SourceMetricsEvent) Type() uint32 { return TypeSourceMetrics }
