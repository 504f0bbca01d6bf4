//go:build gocv

package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"time"

	"gocv.io/x/gocv"

	"github.com/smazurov/camwatch/internal/capture"
)

// Opener opens sources through OpenCV's VideoCapture.
type Opener struct {
	Width, Height int
}

var _ capture.Opener = (*Opener)(nil)

// Open connects to a device index or stream URL.
func (o *Opener) Open(ctx context.Context, loc capture.Locator) (capture.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var device any = loc.Index
	if loc.IsStream() {
		device = loc.URL
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.New("capture did not open")
	}

	vc.Set(gocv.VideoCaptureBufferSize, 1)
	if o.Width > 0 && o.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(o.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(o.Height))
	}
	return &handle{vc: vc, mat: gocv.NewMat()}, nil
}

type handle struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (h *handle) Read(ctx context.Context) (capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return capture.Frame{}, err
	}
	if ok := h.vc.Read(&h.mat); !ok {
		return capture.Frame{}, errors.New("read failed")
	}
	if h.mat.Empty() {
		return capture.Frame{}, capture.ErrEmptyFrame
	}
	img, err := h.mat.ToImage()
	if err != nil {
		return capture.Frame{}, fmt.Errorf("convert frame: %w", err)
	}
	return capture.NewFrame(asRGBA(img), time.Now()), nil
}

func (h *handle) Close() error {
	merr := h.mat.Close()
	if err := h.vc.Close(); err != nil {
		return err
	}
	return merr
}

func asRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
