package detection

import (
	"fmt"
	"slices"
	"time"
)

// Event summarizes the detections of one frame. Boxes and Labels are parallel.
type Event struct {
	Timestamp float64      `json:"timestamp" doc:"Seconds since the Unix epoch"`
	CameraID  string       `json:"camera_id,omitempty" doc:"Source id"`
	Boxes     [][4]float64 `json:"boxes" doc:"x1,y1,x2,y2 per detection"`
	Labels    []string     `json:"labels" doc:"Label per box"`
	Snapshot  string       `json:"snapshot,omitempty" doc:"Base64 JPEG of the annotated frame"`
}

// NewEvent builds an event from normalized detections. Boxes and Labels are
// never nil so they encode as empty arrays.
func NewEvent(cameraID string, at time.Time, dets []Detection) Event {
	e := Event{
		Timestamp: float64(at.UnixNano()) / float64(time.Second),
		CameraID:  cameraID,
		Boxes:     make([][4]float64, 0, len(dets)),
		Labels:    make([]string, 0, len(dets)),
	}
	for _, d := range dets {
		e.Boxes = append(e.Boxes, d.Box)
		e.Labels = append(e.Labels, d.Label)
	}
	return e
}

// Time converts Timestamp back to a time.Time.
func (e Event) Time() time.Time {
	sec := int64(e.Timestamp)
	return time.Unix(sec, int64((e.Timestamp-float64(sec))*float64(time.Second)))
}

// Validate checks the parallel-slice invariant.
func (e Event) Validate() error {
	if len(e.Boxes) != len(e.Labels) {
		return fmt.Errorf("event has %d boxes but %d labels", len(e.Boxes), len(e.Labels))
	}
	return nil
}

// LabelSet returns the sorted unique labels of the event.
func (e Event) LabelSet() []string {
	set := slices.Clone(e.Labels)
	slices.Sort(set)
	return slices.Compact(set)
}
