// Package detection turns captured frames into published detection events.
package detection

import (
	"context"
	"math"

	"github.com/smazurov/camwatch/internal/capture"
)

// Box is (x1, y1, x2, y2) in source frame pixels.
type Box [4]float64

// Detection is one recognized object.
type Detection struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence,omitempty"`
	Box        Box      `json:"box"`
}

// Detector finds objects in a frame. Implementations must not modify the frame.
type Detector interface {
	Infer(ctx context.Context, frame capture.Frame) ([]Detection, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, frame capture.Frame) ([]Detection, error)

// Infer calls f.
func (f DetectorFunc) Infer(ctx context.Context, frame capture.Frame) ([]Detection, error) {
	return f(ctx, frame)
}

// NopDetector never finds anything. Every live frame still yields an event.
type NopDetector struct{}

// Infer returns no detections.
func (NopDetector) Infer(context.Context, capture.Frame) ([]Detection, error) {
	return nil, nil
}

// NormalizeOptions controls Normalize.
type NormalizeOptions struct {
	Width, Height int
	MinConfidence float64
	// Labels, when non-empty, keeps only these labels.
	Labels map[string]bool
}

// Normalize drops unusable detections and clamps boxes into the frame.
// Dropped: empty labels, non-finite coordinates, confidence below the minimum,
// labels outside the allow list, and boxes with no area after clamping.
// Corners are reordered so that x1 <= x2 and y1 <= y2.
func Normalize(dets []Detection, opts NormalizeOptions) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Label == "" {
			continue
		}
		if len(opts.Labels) > 0 && !opts.Labels[d.Label] {
			continue
		}
		if d.Confidence != nil && *d.Confidence < opts.MinConfidence {
			continue
		}
		if !finite(d.Box) {
			continue
		}

		x1, x2 := math.Min(d.Box[0], d.Box[2]), math.Max(d.Box[0], d.Box[2])
		y1, y2 := math.Min(d.Box[1], d.Box[3]), math.Max(d.Box[1], d.Box[3])
		if opts.Width > 0 && opts.Height > 0 {
			w, h := float64(opts.Width), float64(opts.Height)
			x1, x2 = clamp(x1, 0, w), clamp(x2, 0, w)
			y1, y2 = clamp(y1, 0, h), clamp(y2, 0, h)
			if x2 <= x1 || y2 <= y1 {
				continue
			}
		}
		d.Box = Box{x1, y1, x2, y2}
		out = append(out, d)
	}
	return out
}

func finite(b Box) bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
