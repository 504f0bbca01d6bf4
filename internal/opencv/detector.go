//go:build gocv

package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/detection"
)

// DetectorOptions configures a DNNDetector.
type DetectorOptions struct {
	Model  string // weights, e.g. yolov8n.onnx or frozen_inference_graph.pb
	Config string // optional network description for SSD models
	Format string // FormatSSD or FormatYOLOv8

	// InputSize is the square network input. Defaults to 640 for YOLOv8 and
	// 300 for SSD.
	InputSize     int
	Labels        []string
	MinConfidence float32
	NMSThreshold  float32

	Logger *slog.Logger
}

// DNNDetector runs an OpenCV DNN model on every frame.
type DNNDetector struct {
	opts DetectorOptions

	mu  sync.Mutex // gocv.Net is not safe for concurrent use
	net gocv.Net
}

var _ detection.Detector = (*DNNDetector)(nil)

// NewDNNDetector loads the model.
func NewDNNDetector(opts DetectorOptions) (*DNNDetector, error) {
	if _, err := os.Stat(opts.Model); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if opts.Format == "" {
		opts.Format = FormatYOLOv8
	}
	if opts.Format != FormatSSD && opts.Format != FormatYOLOv8 {
		return nil, fmt.Errorf("unknown model format %q", opts.Format)
	}
	if opts.InputSize <= 0 {
		opts.InputSize = 640
		if opts.Format == FormatSSD {
			opts.InputSize = 300
		}
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.5
	}
	if opts.NMSThreshold <= 0 {
		opts.NMSThreshold = 0.45
	}
	if len(opts.Labels) == 0 && opts.Format == FormatYOLOv8 {
		opts.Labels = COCOLabels
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	net := gocv.ReadNet(opts.Model, opts.Config)
	if net.Empty() {
		return nil, errors.New("failed to load network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	opts.Logger.Info("Detection network loaded", "model", opts.Model, "format", opts.Format, "input", opts.InputSize)
	return &DNNDetector{opts: opts, net: net}, nil
}

// Infer runs the network on frame.
func (d *DNNDetector) Infer(ctx context.Context, frame capture.Frame) ([]detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bgr, err := toBGR(frame.Image)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	size := image.Pt(d.opts.InputSize, d.opts.InputSize)
	var blob gocv.Mat
	if d.opts.Format == FormatSSD {
		blob = gocv.BlobFromImage(bgr, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	} else {
		blob = gocv.BlobFromImage(bgr, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	}
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %w", err)
	}

	w, h := frame.Width(), frame.Height()
	var cands []candidate
	if d.opts.Format == FormatSSD {
		cands = decodeSSD(data, w, h, d.opts.MinConfidence)
	} else {
		sizes := out.Size()
		if len(sizes) != 3 {
			return nil, fmt.Errorf("unexpected YOLOv8 output shape %v", sizes)
		}
		scaleX := float64(w) / float64(d.opts.InputSize)
		scaleY := float64(h) / float64(d.opts.InputSize)
		cands = decodeYOLOv8(data, sizes[1], sizes[2], scaleX, scaleY, d.opts.MinConfidence)
	}
	if len(cands) == 0 {
		return nil, nil
	}

	rects := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		rects[i], scores[i] = c.rect, c.score
	}
	keep := gocv.NMSBoxes(rects, scores, d.opts.MinConfidence, d.opts.NMSThreshold)
	return toDetections(cands, keep, d.opts.Labels), nil
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// toBGR converts an RGBA image into the BGR Mat OpenCV models expect.
func toBGR(img image.Image) (gocv.Mat, error) {
	rgba, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert frame: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	if err := gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR); err != nil {
		bgr.Close()
		return gocv.Mat{}, fmt.Errorf("convert frame: %w", err)
	}
	return bgr, nil
}
