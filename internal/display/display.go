// Package display provides frame sinks for the composite view.
package display

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"time"
)

// Sink shows the composite and reports a user quit request.
type Sink interface {
	Show(name string, img image.Image)
	// PollQuit must not block.
	PollQuit() bool
}

// ErrNoFrame is returned by SnapshotSink.JPEG before the first Show.
var ErrNoFrame = errors.New("no frame shown yet")

// SnapshotSink keeps the most recent image so it can be served over HTTP.
// Encoding happens on demand and is cached until the next Show.
type SnapshotSink struct {
	quality int

	mu      sync.Mutex
	name    string
	img     image.Image
	shownAt time.Time
	encoded []byte
}

// NewSnapshotSink returns a sink encoding with the given JPEG quality.
func NewSnapshotSink(quality int) *SnapshotSink {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &SnapshotSink{quality: quality}
}

// Show stores img. The sink does not copy it; callers hand over ownership.
func (s *SnapshotSink) Show(name string, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.img = img
	s.shownAt = time.Now()
	s.encoded = nil
}

// PollQuit is always false; a snapshot has no user to ask for quit.
func (s *SnapshotSink) PollQuit() bool {
	return false
}

// JPEG returns the latest image encoded as JPEG and when it was shown.
func (s *SnapshotSink) JPEG() ([]byte, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, time.Time{}, ErrNoFrame
	}
	if s.encoded == nil {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, s.img, &jpeg.Options{Quality: s.quality}); err != nil {
			return nil, time.Time{}, err
		}
		s.encoded = buf.Bytes()
	}
	return s.encoded, s.shownAt, nil
}

// NullSink discards frames and never requests quit.
type NullSink struct{}

func (NullSink) Show(string, image.Image) {}
func (NullSink) PollQuit() bool           { return false }

// Multi fans Show out to every sink; PollQuit is true if any sink wants to quit.
type Multi []Sink

func (m Multi) Show(name string, img image.Image) {
	for _, s := range m {
		s.Show(name, img)
	}
}

func (m Multi) PollQuit() bool {
	quit := false
	for _, s := range m {
		if s.PollQuit() {
			quit = true
		}
	}
	return quit
}
