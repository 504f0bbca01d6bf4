package service

import (
	"time"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/events"
)

// StateNotifier forwards source transitions to bus.
func StateNotifier(bus EventBus) capture.StateChangeCallback {
	return func(c capture.StateChange) {
		ev := events.SourceStateChangedEvent{
			CameraID:   c.ID,
			OldState:   string(c.Old),
			NewState:   string(c.New),
			Reconnects: c.Reconnects,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}
		if c.Err != nil {
			ev.Error = c.Err.Error()
		}
		bus.Publish(ev)
	}
}

// PublishNotifier forwards every event that reached the broadcast transport
// to bus, along with its encoded size.
func PublishNotifier(bus EventBus) func(detection.Event, int) {
	return func(e detection.Event, size int) {
		bus.Publish(events.DetectionEvent{
			CameraID:  e.CameraID,
			Timestamp: e.Timestamp,
			Boxes:     e.Boxes,
			Labels:    e.Labels,
			Bytes:     size,
		})
	}
}
