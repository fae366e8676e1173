package camera

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FileSource replays a directory of PNG frames at a fixed rate. It exists
// for development and tests where no camera is attached.
type FileSource struct {
	dir      string
	interval time.Duration
	loop     bool
	cancel   context.CancelFunc
}

// NewFileSource returns a source that plays the PNG files under dir in
// lexical order. When loop is true playback restarts from the beginning.
func NewFileSource(dir string, interval time.Duration, loop bool) *FileSource {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &FileSource{dir: dir, interval: interval, loop: loop}
}

// Frames implements Source.
func (s *FileSource) Frames(ctx context.Context) (<-chan Frame, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no png frames in %s", s.dir)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	out := make(chan Frame)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		var seq uint64
		for {
			for _, path := range paths {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
				}

				frame, err := loadFrame(path)
				if err != nil {
					continue
				}
				seq++
				frame.Seq = seq
				frame.Timestamp = time.Now()
				frame.TraceID = uuid.New().String()

				select {
				case out <- frame:
				case <-runCtx.Done():
					return
				}
			}
			if !s.loop {
				return
			}
		}
	}()

	return out, nil
}

// Stop implements Source.
func (s *FileSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// loadFrame decodes a PNG file into a packed-RGB frame.
func loadFrame(path string) (Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return Frame{}, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return Frame{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts any image into a packed-RGB frame. Useful for tests
// and for sources that decode with the standard library.
func FromImage(img image.Image) Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]byte, w*h*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			data[i+0] = byte(r >> 8)
			data[i+1] = byte(g >> 8)
			data[i+2] = byte(b >> 8)
			i += 3
		}
	}
	return Frame{Width: w, Height: h, Data: data}
}
