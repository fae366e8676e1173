// Package camera provides frame acquisition for the vision sensor loop.
package camera

import (
	"context"
	"image"
	"time"
)

// Frame represents a single video frame with metadata.
type Frame struct {
	// Seq is the monotonic sequence number.
	Seq uint64
	// Timestamp is when the frame was captured.
	Timestamp time.Time
	// Width in pixels.
	Width int
	// Height in pixels.
	Height int
	// Data contains the frame pixels in packed RGB order.
	Data []byte
	// TraceID is a unique identifier for correlating log lines.
	TraceID string
}

// Source supplies frames to a consumer loop. Frames arrive on the
// returned channel until the context is cancelled or the source fails;
// the channel is closed in both cases.
type Source interface {
	Frames(ctx context.Context) (<-chan Frame, error)
	Stop()
}

// ToImage converts the frame's RGB data into an image.RGBA suitable for
// annotation and PNG encoding. A frame with short data returns nil.
func (f Frame) ToImage() *image.RGBA {
	if f.Width <= 0 || f.Height <= 0 || len(f.Data) < f.Width*f.Height*3 {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := y * f.Width * 3
		dst := y * img.Stride
		for x := 0; x < f.Width; x++ {
			img.Pix[dst+0] = f.Data[src+0]
			img.Pix[dst+1] = f.Data[src+1]
			img.Pix[dst+2] = f.Data[src+2]
			img.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}
	return img
}

// BlankFrame returns an all-black placeholder image, used for the
// terminal ERROR write when the camera cannot be opened.
func BlankFrame(width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}
