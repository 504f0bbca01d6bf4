package compositor

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	placeholderBackground = color.RGBA{R: 32, G: 32, B: 32, A: 255}
	placeholderText       = color.RGBA{R: 230, G: 60, B: 60, A: 255}
)

// Placeholder renders the tile shown for an offline source: a dark cell with
// "camera offline: <id>" centered.
func Placeholder(id string, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBackground), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	text := "camera offline: " + id
	textWidth := font.MeasureString(face, text).Ceil()

	x := max((width-textWidth)/2, 2)
	y := (height + face.Ascent) / 2
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderText),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
	return img
}
