package capture

import (
	"image"
	"time"
)

// Frame is one captured image. The pixel buffer must not be modified once the
// frame has been handed out; consumers that draw produce a copy.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
}

// NewFrame wraps img captured at t.
func NewFrame(img *image.RGBA, t time.Time) Frame {
	return Frame{Image: img, CapturedAt: t}
}

// Width in pixels, zero for an empty frame.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

// Height in pixels, zero for an empty frame.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// Channels is always 4 (RGBA).
func (f Frame) Channels() int {
	return 4
}

// Valid reports whether the frame holds a non-empty, fully backed pixel buffer.
func (f Frame) Valid() bool {
	if f.Image == nil || f.Image.Rect.Empty() {
		return false
	}
	need := (f.Height()-1)*f.Image.Stride + f.Width()*4
	return f.Image.Stride >= f.Width()*4 && len(f.Image.Pix) >= need
}

// Clone returns a deep copy for callers that need to draw on the frame.
func (f Frame) Clone() *image.RGBA {
	if f.Image == nil {
		return nil
	}
	dst := image.NewRGBA(f.Image.Rect)
	row := f.Width() * 4
	for y := 0; y < f.Height(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+row], f.Image.Pix[y*f.Image.Stride:])
	}
	return dst
}
