package vision

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"borderd/internal/alert"
	"borderd/internal/camera"
	"borderd/internal/ledger"
	"borderd/internal/statestore"
)

// scriptedSource hands out one frame per scripted detection set and then
// closes the channel.
type scriptedSource struct {
	frames int
	cancel context.CancelFunc
}

func (s *scriptedSource) Frames(ctx context.Context) (<-chan camera.Frame, error) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	out := make(chan camera.Frame)
	go func() {
		defer close(out)
		for i := 0; i < s.frames; i++ {
			frame := camera.FromImage(image.NewRGBA(image.Rect(0, 0, 32, 24)))
			frame.Seq = uint64(i + 1)
			frame.Timestamp = time.Now()
			select {
			case out <- frame:
			case <-runCtx.Done():
				return
			}
		}
		// Hold the channel open until cancelled so the loop idles like it
		// would on a stalled camera instead of hitting end-of-stream.
		<-runCtx.Done()
	}()
	return out, nil
}

func (s *scriptedSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// failingSource cannot be opened at all.
type failingSource struct{}

func (failingSource) Frames(ctx context.Context) (<-chan camera.Frame, error) {
	return nil, errors.New("device busy")
}
func (failingSource) Stop() {}

// scriptedDetector returns one scripted result per frame, keyed by Seq.
type scriptedDetector struct {
	mu      sync.Mutex
	results map[uint64][]Detection
	errs    map[uint64]error
}

func (d *scriptedDetector) Detect(frame camera.Frame) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errs[frame.Seq]; err != nil {
		return nil, err
	}
	return d.results[frame.Seq], nil
}

// countingSounder counts effective alert firings.
type countingSounder struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSounder) Sound(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingSounder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestEnv(t *testing.T) (*statestore.Store, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	store, err := statestore.Open(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	lg, err := ledger.Open(ledger.Options{
		DBPath:    filepath.Join(dir, "surveillance_log.db"),
		ImageDirs: ledger.DefaultImageDirs(dir),
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { lg.Close() })
	return store, lg
}

func det(cat ledger.Category, conf float32) Detection {
	return Detection{Category: cat, Confidence: conf, Box: image.Rect(2, 2, 20, 20)}
}

func TestLoopGatesOnConfidence(t *testing.T) {
	store, lg := newTestEnv(t)
	sounder := &countingSounder{}

	// Three frames: below the gate, above it, above it again.
	detector := &scriptedDetector{results: map[uint64][]Detection{
		1: {det(ledger.CategoryHuman, 0.3)},
		2: {det(ledger.CategoryHuman, 0.7)},
		3: {det(ledger.CategoryAnimal, 0.9)},
	}}

	loop, err := NewLoop(LoopConfig{
		Source:              &scriptedSource{frames: 3},
		Detector:            detector,
		Ledger:              lg,
		State:               store,
		Throttle:            alert.NewThrottle(sounder, time.Hour),
		ConfidenceThreshold: 0.5,
	})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Wait until both qualifying detections have landed in the ledger.
	deadline := time.Now().Add(5 * time.Second)
	for {
		counts, err := lg.CountByCategory()
		if err != nil {
			t.Fatalf("CountByCategory failed: %v", err)
		}
		if counts[ledger.CategoryHuman] == 1 && counts[ledger.CategoryAnimal] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ledger never reached expected counts, have %v", counts)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// The 0.3 detection must not have been logged on top.
	counts, err := lg.CountByCategory()
	if err != nil {
		t.Fatalf("CountByCategory failed: %v", err)
	}
	if counts[ledger.CategoryHuman] != 1 || counts[ledger.CategoryAnimal] != 1 {
		t.Errorf("counts = %v, want 1 human and 1 animal", counts)
	}

	// One hour cooldown: only the first qualifying detection sounds.
	if sounder.count() != 1 {
		t.Errorf("sounder fired %d times, want 1", sounder.count())
	}
}

func TestLoopBoundaryConfidenceDoesNotQualify(t *testing.T) {
	store, lg := newTestEnv(t)

	detector := &scriptedDetector{results: map[uint64][]Detection{
		1: {det(ledger.CategoryHuman, 0.5)}, // exactly at the gate
	}}

	loop, err := NewLoop(LoopConfig{
		Source:              &scriptedSource{frames: 1},
		Detector:            detector,
		Ledger:              lg,
		State:               store,
		ConfidenceThreshold: 0.5,
	})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drainLoop(t, ctx, cancel, loop, store, string(statestore.VisionNormal))

	latest, err := lg.MostRecent(nil)
	if err != nil {
		t.Fatalf("MostRecent failed: %v", err)
	}
	if latest != nil {
		t.Error("boundary confidence must not be logged")
	}
}

// drainLoop runs the loop until the vision verdict reaches want, then
// cancels and waits for shutdown.
func drainLoop(t *testing.T, ctx context.Context, cancel context.CancelFunc, loop *Loop, store *statestore.Store, want string) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		v, err := store.GetVerdict(statestore.SensorVision)
		if err != nil {
			t.Fatalf("GetVerdict failed: %v", err)
		}
		if v == want {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("verdict never reached %s, still %s", want, v)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestLoopAlertVerdictAndLedgerEntry(t *testing.T) {
	store, lg := newTestEnv(t)

	detector := &scriptedDetector{results: map[uint64][]Detection{
		1: {det(ledger.CategoryHuman, 0.85)},
	}}

	loop, err := NewLoop(LoopConfig{
		Source:   &scriptedSource{frames: 1},
		Detector: detector,
		Ledger:   lg,
		State:    store,
	})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drainLoop(t, ctx, cancel, loop, store, string(statestore.VisionAlert))

	latest, err := lg.MostRecent(nil)
	if err != nil {
		t.Fatalf("MostRecent failed: %v", err)
	}
	if latest == nil {
		t.Fatal("qualifying detection must create a ledger entry")
	}
	if latest.Category != ledger.CategoryHuman {
		t.Errorf("category = %s, want %s", latest.Category, ledger.CategoryHuman)
	}

	// The live frame is published alongside the verdict.
	frame, err := store.GetLiveFrame()
	if err != nil {
		t.Fatalf("GetLiveFrame failed: %v", err)
	}
	if frame == nil {
		t.Error("live frame missing after processed frame")
	}
}

func TestLoopLogsEveryQualifyingDetection(t *testing.T) {
	store, lg := newTestEnv(t)

	detector := &scriptedDetector{results: map[uint64][]Detection{
		1: {
			det(ledger.CategoryHuman, 0.9),
			det(ledger.CategoryHuman, 0.8),
			det(ledger.CategoryAnimal, 0.7),
		},
	}}

	loop, err := NewLoop(LoopConfig{
		Source:   &scriptedSource{frames: 1},
		Detector: detector,
		Ledger:   lg,
		State:    store,
	})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drainLoop(t, ctx, cancel, loop, store, string(statestore.VisionAlert))

	counts, err := lg.CountByCategory()
	if err != nil {
		t.Fatalf("CountByCategory failed: %v", err)
	}
	if counts[ledger.CategoryHuman] != 2 || counts[ledger.CategoryAnimal] != 1 {
		t.Errorf("counts = %v, want 2 human and 1 animal", counts)
	}
}

func TestLoopDetectorErrorSkipsIteration(t *testing.T) {
	store, lg := newTestEnv(t)

	// Frame 1 fails classification, frame 2 is clean.
	detector := &scriptedDetector{
		results: map[uint64][]Detection{2: nil},
		errs:    map[uint64]error{1: errors.New("inference failed")},
	}

	loop, err := NewLoop(LoopConfig{
		Source:   &scriptedSource{frames: 2},
		Detector: detector,
		Ledger:   lg,
		State:    store,
	})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drainLoop(t, ctx, cancel, loop, store, string(statestore.VisionNormal))
}

func TestLoopCameraFailureWritesError(t *testing.T) {
	store, lg := newTestEnv(t)

	loop, err := NewLoop(LoopConfig{
		Source:   failingSource{},
		Detector: &scriptedDetector{},
		Ledger:   lg,
		State:    store,
	})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}

	if err := loop.Run(context.Background()); err == nil {
		t.Fatal("Run should fail when the camera cannot be opened")
	}

	v, err := store.GetVerdict(statestore.SensorVision)
	if err != nil {
		t.Fatalf("GetVerdict failed: %v", err)
	}
	if v != string(statestore.VisionError) {
		t.Errorf("verdict = %s, want %s", v, statestore.VisionError)
	}

	// The placeholder frame makes the error state renderable.
	frame, err := store.GetLiveFrame()
	if err != nil {
		t.Fatalf("GetLiveFrame failed: %v", err)
	}
	if frame == nil {
		t.Error("placeholder frame missing after camera failure")
	}
}

func TestLoopShutdownWritesSystemOff(t *testing.T) {
	store, lg := newTestEnv(t)

	detector := &scriptedDetector{results: map[uint64][]Detection{1: nil}}
	loop, err := NewLoop(LoopConfig{
		Source:   &scriptedSource{frames: 1},
		Detector: detector,
		Ledger:   lg,
		State:    store,
	})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drainLoop(t, ctx, cancel, loop, store, string(statestore.VisionNormal))

	v, err := store.GetVerdict(statestore.SensorVision)
	if err != nil {
		t.Fatalf("GetVerdict failed: %v", err)
	}
	if v != string(statestore.VisionOff) {
		t.Errorf("terminal verdict = %s, want %s", v, statestore.VisionOff)
	}
}

func TestCategoryForClass(t *testing.T) {
	if cat, ok := categoryForClass(ClassPerson); !ok || cat != ledger.CategoryHuman {
		t.Errorf("class %d = %s,%v, want Human", ClassPerson, cat, ok)
	}
	if cat, ok := categoryForClass(ClassAnimal); !ok || cat != ledger.CategoryAnimal {
		t.Errorf("class %d = %s,%v, want Animal", ClassAnimal, cat, ok)
	}
	if _, ok := categoryForClass(7); ok {
		t.Error("unmapped class should not categorize")
	}
}
