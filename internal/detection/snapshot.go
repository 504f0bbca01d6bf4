package detection

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/smazurov/camwatch/internal/capture"
)

// DefaultJPEGQuality for snapshots.
const DefaultJPEGQuality = 80

// ErrEncoding is returned when a snapshot cannot be produced.
var ErrEncoding = errors.New("snapshot encoding failed")

var (
	boxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	labelColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Annotate returns a copy of frame with a rectangle and label per detection.
// The frame itself is left untouched.
func Annotate(frame capture.Frame, dets []Detection) *image.RGBA {
	img := frame.Clone()
	if img == nil {
		return nil
	}
	face := basicfont.Face7x13
	for _, d := range dets {
		r := image.Rect(int(d.Box[0]), int(d.Box[1]), int(d.Box[2]), int(d.Box[3])).Intersect(img.Rect)
		if r.Empty() {
			continue
		}
		strokeRect(img, r, 2, boxColor)

		text := d.Label
		if d.Confidence != nil {
			text = fmt.Sprintf("%s %.2f", d.Label, *d.Confidence)
		}
		width := font.MeasureString(face, text).Ceil() + 4
		bg := image.Rect(r.Min.X, r.Min.Y-face.Height-2, r.Min.X+width, r.Min.Y)
		if bg.Min.Y < img.Rect.Min.Y {
			bg = bg.Add(image.Pt(0, r.Min.Y-bg.Min.Y))
		}
		fillRect(img, bg.Intersect(img.Rect), boxColor)

		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(labelColor),
			Face: face,
			Dot:  fixed.P(bg.Min.X+2, bg.Min.Y+face.Ascent+1),
		}
		drawer.DrawString(text)
	}
	return img
}

// EncodeSnapshot JPEG-encodes img and returns it base64 encoded.
func EncodeSnapshot(img image.Image, quality int) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("%w: empty image", ErrEncoding)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, thickness int, c color.RGBA) {
	t := min(thickness, r.Dx(), r.Dy())
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), c)
}
