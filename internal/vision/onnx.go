package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"borderd/internal/camera"
	"borderd/internal/ledger"
)

const (
	onnxInputSize = 640
	onnxNumCoords = 4
	onnxIOUCutoff = 0.45
)

// ONNXDetector runs a YOLOv8-style detection model through onnxruntime.
// The session and its tensors are reused across frames; Detect is
// serialized with a mutex because the tensors are shared.
type ONNXDetector struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	numClasses int
	numAnchors int
	classes    map[int]ledger.Category

	mu sync.Mutex
}

// NewONNXDetector initializes the ONNX runtime environment and loads the
// detection model at modelPath. The detector only reports the person and
// designated animal classes; everything else the model knows about is
// ignored.
func NewONNXDetector(modelPath string) (*ONNXDetector, error) {
	if modelPath == "" {
		return nil, errors.New("model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	libPath := resolveSharedLibraryPath(filepath.Dir(modelPath))
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	// YOLOv8 COCO export: input [1,3,640,640], output [1,4+classes,anchors].
	const numClasses = 80
	const numAnchors = 8400

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, onnxInputSize, onnxInputSize))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, onnxNumCoords+numClasses, numAnchors))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXDetector{
		session:    session,
		input:      input,
		output:     output,
		numClasses: numClasses,
		numAnchors: numAnchors,
		classes: map[int]ledger.Category{
			ClassPerson: ledger.CategoryHuman,
			ClassAnimal: ledger.CategoryAnimal,
		},
	}, nil
}

// Close releases the session and its tensors.
func (d *ONNXDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
}

// Detect implements Detector.
func (d *ONNXDetector) Detect(frame camera.Frame) ([]Detection, error) {
	if d == nil || d.session == nil {
		return nil, errors.New("detector not initialized")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	scale, padX, padY := letterbox(frame, d.input.GetData())

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := d.output.GetData()
	candidates := d.decode(raw, scale, padX, padY, frame.Width, frame.Height)
	return nonMaxSuppress(candidates), nil
}

// letterbox scales the RGB frame into the square model input with
// aspect-preserving padding and writes normalized CHW floats into dst.
// It returns the scale factor and the pad offsets needed to map boxes
// back to frame coordinates.
func letterbox(frame camera.Frame, dst []float32) (scale float32, padX, padY int) {
	for i := range dst {
		dst[i] = 0.5 // neutral gray padding
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return 1, 0, 0
	}

	sx := float32(onnxInputSize) / float32(frame.Width)
	sy := float32(onnxInputSize) / float32(frame.Height)
	scale = sx
	if sy < sx {
		scale = sy
	}

	scaledW := int(float32(frame.Width) * scale)
	scaledH := int(float32(frame.Height) * scale)
	padX = (onnxInputSize - scaledW) / 2
	padY = (onnxInputSize - scaledH) / 2

	const plane = onnxInputSize * onnxInputSize
	for y := 0; y < scaledH; y++ {
		srcY := int(float32(y) / scale)
		if srcY >= frame.Height {
			srcY = frame.Height - 1
		}
		for x := 0; x < scaledW; x++ {
			srcX := int(float32(x) / scale)
			if srcX >= frame.Width {
				srcX = frame.Width - 1
			}
			src := (srcY*frame.Width + srcX) * 3
			if src+2 >= len(frame.Data) {
				continue
			}
			dstIdx := (y+padY)*onnxInputSize + (x + padX)
			dst[dstIdx] = float32(frame.Data[src]) / 255
			dst[plane+dstIdx] = float32(frame.Data[src+1]) / 255
			dst[2*plane+dstIdx] = float32(frame.Data[src+2]) / 255
		}
	}
	return scale, padX, padY
}

// decode walks the [4+classes, anchors] output, keeping boxes whose best
// class is one of the mapped threat classes. No confidence gate is
// applied here; that belongs to the loop.
func (d *ONNXDetector) decode(raw []float32, scale float32, padX, padY, frameW, frameH int) []Detection {
	var out []Detection
	if scale <= 0 {
		return out
	}

	at := func(row, anchor int) float32 {
		return raw[row*d.numAnchors+anchor]
	}

	for a := 0; a < d.numAnchors; a++ {
		bestClass := -1
		var bestScore float32
		for c := 0; c < d.numClasses; c++ {
			if _, ok := d.classes[c]; !ok {
				continue
			}
			if score := at(onnxNumCoords+c, a); score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < 0.05 {
			continue
		}

		category, ok := categoryForClass(bestClass)
		if !ok {
			continue
		}

		cx, cy := at(0, a), at(1, a)
		w, h := at(2, a), at(3, a)

		x1 := int((cx - w/2 - float32(padX)) / scale)
		y1 := int((cy - h/2 - float32(padY)) / scale)
		x2 := int((cx + w/2 - float32(padX)) / scale)
		y2 := int((cy + h/2 - float32(padY)) / scale)

		box := image.Rect(x1, y1, x2, y2).Intersect(image.Rect(0, 0, frameW, frameH))
		if box.Empty() {
			continue
		}

		out = append(out, Detection{
			Category:   category,
			Confidence: bestScore,
			Box:        box,
		})
	}
	return out
}

// nonMaxSuppress drops boxes that heavily overlap a higher-confidence
// box of the same category.
func nonMaxSuppress(dets []Detection) []Detection {
	sort.Slice(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	var kept []Detection
	for _, d := range dets {
		overlapping := false
		for _, k := range kept {
			if k.Category == d.Category && iou(k.Box, d.Box) > onnxIOUCutoff {
				overlapping = true
				break
			}
		}
		if !overlapping {
			kept = append(kept, d)
		}
	}
	return kept
}

// iou computes intersection-over-union of two boxes.
func iou(a, b image.Rectangle) float32 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := inter.Dx() * inter.Dy()
	union := a.Dx()*a.Dy() + b.Dx()*b.Dy() - interArea
	if union <= 0 {
		return 0
	}
	return float32(interArea) / float32(union)
}

// resolveSharedLibraryPath locates the onnxruntime shared library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common names and
// locations are probed, starting next to the model.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/usr/local/lib",
		"/usr/lib",
		"/opt/homebrew/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
