package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smazurov/camwatch/internal/detection"
)

// Subject layout.
const (
	SubjectPrefix = "camwatch.events"
	SubjectAll    = SubjectPrefix + ".>"

	// anonymousToken stands in for an empty camera id.
	anonymousToken = "_"
)

// ErrEncoding is returned when an event cannot be serialized.
var ErrEncoding = errors.New("event encoding failed")

// Subject returns the subject events for cameraID are published on.
func Subject(cameraID string) string {
	return SubjectPrefix + "." + subjectToken(cameraID)
}

// subjectToken maps an id onto a single NATS subject token.
func subjectToken(id string) string {
	if id == "" {
		return anonymousToken
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}

// Encode serializes e for the wire.
func Encode(e detection.Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	if e.Boxes == nil {
		e.Boxes = [][4]float64{}
	}
	if e.Labels == nil {
		e.Labels = []string{}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return data, nil
}

// Decode parses a wire message. Missing boxes or labels decode as empty.
func Decode(data []byte) (detection.Event, error) {
	var e detection.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return detection.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return detection.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Boxes == nil {
		e.Boxes = [][4]float64{}
	}
	if e.Labels == nil {
		e.Labels = []string{}
	}
	return e, nil
}
