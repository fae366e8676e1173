package vision

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var annotationRed = color.RGBA{R: 0xff, A: 0xff}

const boxThickness = 3

// Annotate draws the detection's bounding box and a category+confidence
// label onto img. The drawing is evidence decoration only; nothing reads
// it back.
func Annotate(img *image.RGBA, d Detection) {
	if img == nil {
		return
	}
	box := d.Box.Intersect(img.Bounds())
	if box.Empty() {
		return
	}

	drawRect(img, box)

	label := fmt.Sprintf("%s: %.1f%%", strings.ToUpper(string(d.Category)), d.Confidence*100)
	drawLabel(img, label, box.Min.X, box.Min.Y-6)
}

// drawRect draws a rectangle outline of boxThickness pixels.
func drawRect(img *image.RGBA, r image.Rectangle) {
	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(img, x, r.Min.Y+t)
			setPixel(img, x, r.Max.Y-1-t)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(img, r.Min.X+t, y)
			setPixel(img, r.Max.X-1-t, y)
		}
	}
}

func setPixel(img *image.RGBA, x, y int) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, annotationRed)
	}
}

// drawLabel renders text at (x, y baseline) with the fixed 7x13 face.
// Labels that would fall above the frame are pushed inside it.
func drawLabel(img *image.RGBA, text string, x, y int) {
	face := basicfont.Face7x13
	if y < face.Ascent {
		y = face.Ascent + 2
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(annotationRed),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
