package capture

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFrame() Frame {
	return NewFrame(image.NewRGBA(image.Rect(0, 0, 4, 3)), time.Unix(1700000000, 0))
}

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// readResult is one scripted Read outcome.
type readResult struct {
	frame Frame
	err   error
}

type fakeHandle struct {
	mu       sync.Mutex
	reads    []readResult
	closed   int
	closeErr error
}

func (h *fakeHandle) Read(context.Context) (Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reads) == 0 {
		return testFrame(), nil
	}
	r := h.reads[0]
	h.reads = h.reads[1:]
	return r.frame, r.err
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return h.closeErr
}

// fakeOpener hands out scripted handles. A nil entry in results is an open
// failure. When results run out every open fails.
type fakeOpener struct {
	mu       sync.Mutex
	clock    *fakeClock
	results  []*fakeHandle
	attempts []time.Time
	handles  []*fakeHandle
}

func (o *fakeOpener) Open(context.Context, Locator) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.clock != nil {
		o.attempts = append(o.attempts, o.clock.Now())
	} else {
		o.attempts = append(o.attempts, time.Time{})
	}
	if len(o.results) == 0 {
		return nil, errBoom
	}
	h := o.results[0]
	o.results = o.results[1:]
	if h == nil {
		return nil, errBoom
	}
	o.handles = append(o.handles, h)
	return h, nil
}

func (o *fakeOpener) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.attempts)
}

// scriptedSource is a FrameSource stub for registry tests.
type scriptedSource struct {
	id         string
	frame      bool
	panicOnGet bool
	releaseErr error
	panicOnRel bool
	released   bool
	gets       int
}

func (s *scriptedSource) ID() string { return s.id }

func (s *scriptedSource) GetFrame(context.Context) (Frame, bool) {
	s.gets++
	if s.panicOnGet {
		panic("driver crashed")
	}
	if s.frame {
		return testFrame(), true
	}
	return Frame{}, false
}

func (s *scriptedSource) State() State {
	if s.frame {
		return StateOnline
	}
	return StateOffline
}

func (s *scriptedSource) Status() Status {
	return Status{ID: s.id, State: s.State()}
}

func (s *scriptedSource) Release() error {
	s.released = true
	if s.panicOnRel {
		panic("close crashed")
	}
	return s.releaseErr
}
