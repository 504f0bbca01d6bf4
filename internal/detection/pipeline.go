package detection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camwatch/internal/capture"
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Detector      Detector
	MinConfidence float64
	Labels        []string // allow list, empty keeps all

	Snapshot    bool
	JPEGQuality int

	// Parallel runs the detector for up to this many sources at once.
	// Zero or one is sequential.
	Parallel int

	Now    func() time.Time
	Logger *slog.Logger
}

// Pipeline runs detection over one cycle's snapshots.
type Pipeline struct {
	detector Detector
	norm     NormalizeOptions
	snapshot bool
	quality  int
	parallel int
	now      func() time.Time
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. A nil detector is replaced by NopDetector.
func NewPipeline(opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		detector: opts.Detector,
		norm:     NormalizeOptions{MinConfidence: opts.MinConfidence},
		snapshot: opts.Snapshot,
		quality:  opts.JPEGQuality,
		parallel: opts.Parallel,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if p.detector == nil {
		p.detector = NopDetector{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if len(opts.Labels) > 0 {
		p.norm.Labels = make(map[string]bool, len(opts.Labels))
		for _, l := range opts.Labels {
			p.norm.Labels[l] = true
		}
	}
	return p
}

// Process returns exactly one event per live snapshot, in snapshot order.
// Offline snapshots are skipped and never reach the detector. A failing
// detector yields an event without detections for that frame.
func (p *Pipeline) Process(ctx context.Context, snaps []capture.Snapshot) []Event {
	live := make([]capture.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.OK {
			live = append(live, s)
		}
	}
	events := make([]Event, len(live))

	if p.parallel <= 1 {
		for i, s := range live {
			events[i] = p.process(ctx, s)
		}
		return events
	}

	var g errgroup.Group
	g.SetLimit(p.parallel)
	for i, s := range live {
		g.Go(func() error {
			events[i] = p.process(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return events
}

func (p *Pipeline) process(ctx context.Context, s capture.Snapshot) Event {
	logger := p.logger.With("camera_id", s.CameraID)

	dets, err := p.infer(ctx, s.Frame)
	if err != nil {
		logger.Warn("Detector failed, publishing empty event", "error", err)
		dets = nil
	}

	norm := p.norm
	norm.Width, norm.Height = s.Frame.Width(), s.Frame.Height()
	dets = Normalize(dets, norm)

	event := NewEvent(s.CameraID, p.now(), dets)
	if p.snapshot {
		snap, err := EncodeSnapshot(Annotate(s.Frame, dets), p.quality)
		if err != nil {
			logger.Warn("Snapshot dropped", "error", err)
		} else {
			event.Snapshot = snap
		}
	}
	logger.Debug("Frame processed", "detections", len(dets))
	return event
}

func (p *Pipeline) infer(ctx context.Context, frame capture.Frame) (dets []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return p.detector.Infer(ctx, frame)
}
