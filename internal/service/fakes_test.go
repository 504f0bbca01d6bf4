package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/events"
)

var errEncode = errors.New("encode failed")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(i int) *int { return &i }

func webcam(id string, index int) config.SourceConfig {
	return config.SourceConfig{ID: id, Type: config.SourceTypeWebcam, Index: intPtr(index)}
}

func solidFrame(c color.RGBA) capture.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return capture.NewFrame(img, time.Unix(1700000000, 0))
}

// fakeSource returns a frame on every poll while online.
type fakeSource struct {
	id    string
	frame capture.Frame

	mu       sync.Mutex
	online   bool
	polls    int
	released bool
}

func (s *fakeSource) ID() string { return s.id }

func (s *fakeSource) GetFrame(context.Context) (capture.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if !s.online || s.released {
		return capture.Frame{}, false
	}
	return s.frame, true
}

func (s *fakeSource) State() capture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online && !s.released {
		return capture.StateOnline
	}
	return capture.StateOffline
}

func (s *fakeSource) Status() capture.Status {
	return capture.Status{ID: s.id, State: s.State()}
}

func (s *fakeSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return capture.ErrReleased
	}
	s.released = true
	return nil
}

func (s *fakeSource) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// fakeFactory builds fakeSources; ids listed in offline never produce frames.
type fakeFactory struct {
	mu      sync.Mutex
	offline map[string]bool
	fail    map[string]bool
	built   [][]*fakeSource
}

func (f *fakeFactory) build(_ context.Context, cfgs []config.SourceConfig) (*capture.Registry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sources := make([]capture.FrameSource, len(cfgs))
	fakes := make([]*fakeSource, len(cfgs))
	for i, c := range cfgs {
		if f.fail[c.ID] {
			return nil, errors.New("cannot build " + c.ID)
		}
		fakes[i] = &fakeSource{
			id:     c.ID,
			frame:  solidFrame(color.RGBA{R: uint8(40 * (i + 1)), A: 255}),
			online: !f.offline[c.ID],
		}
		sources[i] = fakes[i]
	}
	f.built = append(f.built, fakes)
	return capture.NewRegistryFromSources(sources, false, testLogger()), nil
}

func (f *fakeFactory) generation(i int) []*fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[i]
}

func (f *fakeFactory) generations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []detection.Event
	reject map[string]bool
}

func (p *fakePublisher) Publish(e detection.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject[e.CameraID] {
		return errEncode
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) published() []detection.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]detection.Event(nil), p.events...)
}

// fakeSink asks to quit after quitAfter shows; zero never quits.
type fakeSink struct {
	mu        sync.Mutex
	names     []string
	last      image.Image
	shows     int
	quitAfter int
}

func (s *fakeSink) Show(name string, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.last = img
	s.shows++
}

func (s *fakeSink) PollQuit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quitAfter > 0 && s.shows >= s.quitAfter
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *fakeBus) all() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}
