// Package service runs the acquisition loop: poll every source, detect,
// publish, composite and show, once per cycle.
package service

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/compositor"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/detection"
	"github.com/smazurov/camwatch/internal/display"
	"github.com/smazurov/camwatch/internal/events"
)

// DefaultWindowName is the sink name used when none is configured.
const DefaultWindowName = "camwatch"

// DefaultIdleCycle is the wait between cycles while no source is registered.
const DefaultIdleCycle = time.Second

// RegistryFactory builds a registry for a source list.
type RegistryFactory func(ctx context.Context, sources []config.SourceConfig) (*capture.Registry, error)

// Processor turns one cycle's snapshots into events.
type Processor interface {
	Process(ctx context.Context, snaps []capture.Snapshot) []detection.Event
}

// Publisher hands events to the broadcast channel.
type Publisher interface {
	Publish(e detection.Event) error
}

// EventBus receives in-process notifications.
type EventBus interface {
	Publish(ev events.Event)
}

// Options configures a Service.
type Options struct {
	Sources    []config.SourceConfig
	Factory    RegistryFactory
	Pipeline   Processor
	Publisher  Publisher
	Compositor *compositor.Compositor
	Sink       display.Sink
	WindowName string

	// MinCycle is the shortest time between cycle starts. Zero runs cycles
	// back to back.
	MinCycle time.Duration

	// IdleCycle replaces MinCycle while the registry is empty, when longer.
	IdleCycle time.Duration

	Bus    EventBus
	Logger *slog.Logger
}

// CycleResult is what one cycle produced.
type CycleResult struct {
	Sequence  uint64
	Snapshots []capture.Snapshot
	Events    []detection.Event
	Published int
	Composite *image.RGBA
	Duration  time.Duration
}

// Live returns the number of sources that produced a frame.
func (r CycleResult) Live() int {
	n := 0
	for _, s := range r.Snapshots {
		if s.OK {
			n++
		}
	}
	return n
}

// Service owns the registry for the lifetime of Run.
type Service struct {
	opts   Options
	logger *slog.Logger
	seq    atomic.Uint64

	mu       sync.RWMutex
	registry *capture.Registry
	sources  []config.SourceConfig

	pending chan []config.SourceConfig
}

// New validates opts and builds the initial registry. Unreachable sources
// do not fail construction.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Factory == nil {
		return nil, errors.New("service: registry factory is required")
	}
	if opts.Compositor == nil {
		return nil, errors.New("service: compositor is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("service: publisher is required")
	}
	if opts.Pipeline == nil {
		opts.Pipeline = detection.NewPipeline(detection.PipelineOptions{Logger: opts.Logger})
	}
	if opts.Sink == nil {
		opts.Sink = display.NullSink{}
	}
	if opts.WindowName == "" {
		opts.WindowName = DefaultWindowName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IdleCycle <= 0 {
		opts.IdleCycle = DefaultIdleCycle
	}

	reg, err := opts.Factory(ctx, opts.Sources)
	if err != nil {
		return nil, err
	}

	s := &Service{
		opts:     opts,
		logger:   opts.Logger,
		registry: reg,
		sources:  opts.Sources,
		pending:  make(chan []config.SourceConfig, 1),
	}
	s.logger.Info("Sources registered", "count", reg.Len(), "ids", reg.IDs())
	return s, nil
}

// Run loops until ctx is cancelled or the sink asks to quit, then releases
// every source.
func (s *Service) Run(ctx context.Context) error {
	defer s.release()

	s.logger.Info("Acquisition loop started")
	for {
		if ctx.Err() != nil {
			s.logger.Info("Acquisition loop stopped", "reason", ctx.Err())
			return nil
		}

		s.applyPending(ctx)
		res := s.RunCycle(ctx)

		if s.opts.Sink.PollQuit() {
			s.logger.Info("Quit requested by sink")
			return nil
		}
		minCycle := s.opts.MinCycle
		if len(res.Snapshots) == 0 && minCycle < s.opts.IdleCycle {
			minCycle = s.opts.IdleCycle
		}
		if wait := minCycle - res.Duration; wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}

// RunCycle performs one pass over every source.
func (s *Service) RunCycle(ctx context.Context) CycleResult {
	start := time.Now()
	reg := s.currentRegistry()

	res := CycleResult{Sequence: s.seq.Add(1)}
	res.Snapshots = reg.Cycle(ctx)
	res.Events = s.opts.Pipeline.Process(ctx, res.Snapshots)

	for _, e := range res.Events {
		if err := s.opts.Publisher.Publish(e); err != nil {
			s.logger.Warn("Event not published", "camera_id", e.CameraID, "error", err)
			continue
		}
		res.Published++
	}

	// An empty registry has nothing to draw.
	if len(res.Snapshots) > 0 {
		composite, err := s.compose(res.Snapshots)
		if err != nil {
			s.logger.Error("Failed to compose frame", "error", err)
		} else {
			res.Composite = composite
			s.opts.Sink.Show(s.opts.WindowName, composite)
		}
	}

	res.Duration = time.Since(start)
	s.notify(events.CycleCompletedEvent{
		Sequence:   res.Sequence,
		Sources:    len(res.Snapshots),
		Live:       res.Live(),
		Events:     len(res.Events),
		Published:  res.Published,
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
		Timestamp:  start.UTC().Format(time.RFC3339),
	})
	return res
}

func (s *Service) compose(snaps []capture.Snapshot) (*image.RGBA, error) {
	c := s.opts.Compositor
	tiles := make([]image.Image, len(snaps))
	for i, snap := range snaps {
		if snap.OK {
			tiles[i] = snap.Frame.Image
			continue
		}
		tiles[i] = compositor.Placeholder(snap.CameraID, c.CellWidth, c.CellHeight)
	}
	return c.Compose(tiles)
}

// Reload queues a new source list. It is applied at the next cycle
// boundary; a newer list replaces one that has not been applied yet.
func (s *Service) Reload(sources []config.SourceConfig) {
	for {
		select {
		case s.pending <- sources:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

func (s *Service) applyPending(ctx context.Context) {
	var next []config.SourceConfig
	select {
	case next = <-s.pending:
	default:
		return
	}

	if err := config.ValidateSources(next); err != nil {
		s.logger.Warn("Ignoring invalid source list", "error", err)
		return
	}

	s.mu.Lock()
	old, prev := s.registry, s.sources
	s.mu.Unlock()

	// Devices are released before the new registry opens them again.
	if err := old.Release(); err != nil {
		s.logger.Warn("Errors releasing previous sources", "error", err)
	}

	reg, err := s.opts.Factory(ctx, next)
	if err != nil {
		s.logger.Error("Failed to apply source list, restoring previous", "error", err)
		next = prev
		if reg, err = s.opts.Factory(ctx, prev); err != nil {
			s.logger.Error("Failed to restore previous sources", "error", err)
			reg, next = capture.NewRegistryFromSources(nil, false, s.logger), nil
		}
	}

	s.mu.Lock()
	s.registry, s.sources = reg, next
	s.mu.Unlock()

	s.logger.Info("Sources reloaded", "count", reg.Len(), "ids", reg.IDs())
	s.notify(events.SourcesReloadedEvent{
		Sources:   reg.IDs(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// States returns the status of every current source. Safe to call from any
// goroutine.
func (s *Service) States() []capture.Status {
	return s.currentRegistry().States()
}

// Sources returns the source list currently in use.
func (s *Service) Sources() []config.SourceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]config.SourceConfig(nil), s.sources...)
}

// Cycles returns the number of cycles run so far.
func (s *Service) Cycles() uint64 {
	return s.seq.Load()
}

func (s *Service) currentRegistry() *capture.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

func (s *Service) release() {
	if err := s.currentRegistry().Release(); err != nil {
		s.logger.Warn("Errors releasing sources", "error", err)
	}
	s.logger.Info("All sources released")
}

func (s *Service) notify(ev events.Event) {
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(ev)
	}
}
