package capture

import "time"

// State is the connection state of a FrameSource.
type State string

const (
	StateOffline State = "offline"
	StateOnline  State = "online"
)

// StateChange describes one transition. Err is the cause of a transition to
// offline and nil otherwise.
type StateChange struct {
	ID         string
	Old        State
	New        State
	Err        error
	Reconnects int
}

// StateChangeCallback is invoked on every transition, from the goroutine
// that polls the source.
type StateChangeCallback func(change StateChange)

// Status is a point-in-time view of a source for reporting.
type Status struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	State       State     `json:"state"`
	Reconnects  int       `json:"reconnects"`
	LastAttempt time.Time `json:"last_attempt"`
	LastError   string    `json:"last_error,omitempty"`
}
