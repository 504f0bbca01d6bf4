package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camwatch/internal/config"
)

// DefaultBackoff is the minimum spacing between reopen attempts.
const DefaultBackoff = 2 * time.Second

// FrameSource is one camera. All methods except Status must be called from a
// single goroutine.
type FrameSource interface {
	ID() string
	// GetFrame returns the next frame, or false when the source has nothing
	// to offer this cycle. It never blocks longer than the backoff delay plus
	// one open and one read.
	GetFrame(ctx context.Context) (Frame, bool)
	State() State
	Status() Status
	// Release closes the connection. The source returns no frames afterwards.
	Release() error
}

// SourceOptions are shared by every source of a registry.
type SourceOptions struct {
	Opener        Opener
	Backoff       time.Duration
	Clock         Clock
	Logger        *slog.Logger
	OnStateChange StateChangeCallback
}

func (o SourceOptions) withDefaults() SourceOptions {
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// WebcamSource is a local capture device addressed by index.
type WebcamSource struct {
	conn
	Index int
}

// StreamSource is a network stream addressed by URL.
type StreamSource struct {
	conn
	URL string
}

// NewSource builds the variant named by cfg.Type and makes the first
// connection attempt. A failed attempt leaves the source offline.
func NewSource(ctx context.Context, cfg config.SourceConfig, opts SourceOptions) (FrameSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if opts.Opener == nil {
		return nil, errors.New("capture: opener is required")
	}

	switch cfg.Type {
	case config.SourceTypeWebcam:
		s := &WebcamSource{Index: *cfg.Index}
		s.init(cfg, Locator{Index: *cfg.Index}, opts, opts.Logger.With("camera_id", cfg.ID, "device_index", *cfg.Index))
		s.connect(ctx, false)
		return s, nil
	case config.SourceTypeRTSP:
		loc := Locator{URL: cfg.URL}
		s := &StreamSource{URL: cfg.URL}
		s.init(cfg, loc, opts, opts.Logger.With("camera_id", cfg.ID, "url", loc.String()))
		s.connect(ctx, false)
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown source type %q", config.ErrConfiguration, cfg.Type)
}

// conn is the connection state machine shared by both variants.
type conn struct {
	id       string
	name     string
	kind     string
	locator  Locator
	opener   Opener
	backoff  time.Duration
	clock    Clock
	logger   *slog.Logger
	onChange StateChangeCallback

	handle    Handle
	released  bool
	droppedAt time.Time // last online to offline transition caused by a read

	mu          sync.Mutex // guards the fields read by Status
	state       State
	reconnects  int
	lastAttempt time.Time
	lastErr     error
}

func (c *conn) init(cfg config.SourceConfig, loc Locator, opts SourceOptions, logger *slog.Logger) {
	c.id = cfg.ID
	c.name = cfg.DisplayName()
	c.kind = cfg.Type
	c.locator = loc
	c.opener = opts.Opener
	c.backoff = opts.Backoff
	c.clock = opts.Clock
	c.logger = logger
	c.onChange = opts.OnStateChange
	c.state = StateOffline
}

func (c *conn) ID() string { return c.id }

func (c *conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		ID:          c.id,
		Name:        c.name,
		Type:        c.kind,
		State:       c.state,
		Reconnects:  c.reconnects,
		LastAttempt: c.lastAttempt,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *conn) GetFrame(ctx context.Context) (Frame, bool) {
	if c.released {
		return Frame{}, false
	}
	if c.State() == StateOnline {
		return c.read(ctx)
	}

	c.closeHandle()
	// The delay runs from the later of the last open attempt and the read
	// failure that took the source offline.
	since := c.lastAttempt
	if c.droppedAt.After(since) {
		since = c.droppedAt
	}
	if wait := c.backoff - c.clock.Now().Sub(since); wait > 0 {
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return Frame{}, false
		}
	}
	if !c.connect(ctx, true) {
		return Frame{}, false
	}
	return c.read(ctx)
}

func (c *conn) Release() error {
	if c.released {
		return ErrReleased
	}
	c.released = true
	err := c.closeHandle()
	c.setState(StateOffline, nil)
	c.logger.Debug("Source released")
	if err != nil {
		return fmt.Errorf("close %s: %w", c.id, err)
	}
	return nil
}

// connect makes one open attempt and records its time. A successful reopen
// counts as a reconnect.
func (c *conn) connect(ctx context.Context, reopen bool) bool {
	c.mu.Lock()
	c.lastAttempt = c.clock.Now()
	c.mu.Unlock()

	h, err := c.opener.Open(ctx, c.locator)
	if err == nil && h == nil {
		err = errors.New("opener returned no handle")
	}
	if err != nil {
		err = fmt.Errorf("%w: open %s: %w", ErrSourceUnavailable, c.locator, err)
		c.logger.Warn("Failed to open source", "error", err)
		c.setState(StateOffline, err)
		return false
	}

	c.handle = h
	if reopen {
		c.mu.Lock()
		c.reconnects++
		c.mu.Unlock()
	}
	c.logger.Info("Source opened")
	c.setState(StateOnline, nil)
	return true
}

func (c *conn) read(ctx context.Context) (Frame, bool) {
	f, err := c.handle.Read(ctx)
	if err == nil && !f.Valid() {
		err = ErrEmptyFrame
	}
	if err != nil {
		err = fmt.Errorf("%w: read: %w", ErrSourceUnavailable, err)
		c.logger.Warn("Frame read failed, going offline", "error", err)
		c.droppedAt = c.clock.Now()
		c.closeHandle()
		c.setState(StateOffline, err)
		return Frame{}, false
	}
	return f, true
}

// closeHandle closes and forgets the current handle. The old handle is always
// closed before a new one replaces it.
func (c *conn) closeHandle() error {
	if c.handle == nil {
		return nil
	}
	h := c.handle
	c.handle = nil
	if err := h.Close(); err != nil {
		c.logger.Debug("Close failed", "error", err)
		return err
	}
	return nil
}

func (c *conn) setState(next State, cause error) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	if cause != nil {
		c.lastErr = cause
	} else if next == StateOnline {
		c.lastErr = nil
	}
	reconnects := c.reconnects
	c.mu.Unlock()

	if prev == next {
		return
	}
	c.logger.Info("Source state changed", "from", prev, "to", next)
	if c.onChange != nil {
		c.onChange(StateChange{ID: c.id, Old: prev, New: next, Err: cause, Reconnects: reconnects})
	}
}
