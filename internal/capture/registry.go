package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camwatch/internal/config"
)

// Snapshot is one source's contribution to a cycle.
type Snapshot struct {
	CameraID string
	Frame    Frame
	OK       bool
}

// RegistryOptions configures NewRegistry.
type RegistryOptions struct {
	SourceOptions

	// Concurrent polls sources in parallel, one goroutine per source.
	Concurrent bool
}

// Registry owns the ordered set of sources for one run.
type Registry struct {
	sources    []FrameSource
	concurrent bool
	logger     *slog.Logger
}

// NewRegistry validates cfgs and builds one source per entry, in order.
// Unreachable cameras do not fail construction.
func NewRegistry(ctx context.Context, cfgs []config.SourceConfig, opts RegistryOptions) (*Registry, error) {
	if err := config.ValidateSources(cfgs); err != nil {
		return nil, err
	}

	sources := make([]FrameSource, len(cfgs))
	build := func(i int) error {
		src, err := NewSource(ctx, cfgs[i], opts.SourceOptions)
		if err != nil {
			return err
		}
		sources[i] = src
		return nil
	}

	var err error
	if opts.Concurrent {
		var g errgroup.Group
		for i := range cfgs {
			g.Go(func() error { return build(i) })
		}
		err = g.Wait()
	} else {
		for i := range cfgs {
			if err = build(i); err != nil {
				break
			}
		}
	}
	if err != nil {
		for _, s := range sources {
			if s != nil {
				_ = s.Release()
			}
		}
		return nil, err
	}

	return NewRegistryFromSources(sources, opts.Concurrent, opts.Logger), nil
}

// NewRegistryFromSources wraps already constructed sources.
func NewRegistryFromSources(sources []FrameSource, concurrent bool, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{sources: sources, concurrent: concurrent, logger: logger}
}

// Len returns the number of sources.
func (r *Registry) Len() int {
	return len(r.sources)
}

// IDs returns the source ids in cycle order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.sources))
	for i, s := range r.sources {
		ids[i] = s.ID()
	}
	return ids
}

// Cycle polls every source once and returns exactly Len() snapshots in
// source order. A source that panics contributes a "no frame" snapshot.
func (r *Registry) Cycle(ctx context.Context) []Snapshot {
	out := make([]Snapshot, len(r.sources))
	if !r.concurrent {
		for i := range r.sources {
			out[i] = r.poll(ctx, i)
		}
		return out
	}

	var g errgroup.Group
	for i := range r.sources {
		g.Go(func() error {
			out[i] = r.poll(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Registry) poll(ctx context.Context, i int) (snap Snapshot) {
	src := r.sources[i]
	snap.CameraID = src.ID()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Source panicked during capture", "camera_id", snap.CameraID, "panic", p)
			snap.Frame, snap.OK = Frame{}, false
		}
	}()
	snap.Frame, snap.OK = src.GetFrame(ctx)
	return snap
}

// Release releases every source, continuing past failures, and returns the
// joined errors.
func (r *Registry) Release() error {
	var errs []error
	for _, s := range r.sources {
		if err := release(s); err != nil {
			r.logger.Warn("Failed to release source", "camera_id", s.ID(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func release(s FrameSource) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("release %s: panic: %v", s.ID(), p)
		}
	}()
	return s.Release()
}

// States returns the status of every source in order. Safe to call
// concurrently with Cycle.
func (r *Registry) States() []Status {
	out := make([]Status, len(r.sources))
	for i, s := range r.sources {
		out[i] = s.Status()
	}
	return out
}
