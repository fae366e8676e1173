package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"borderd/internal/logging"
)

// GstConfig configures a GStreamer camera source.
type GstConfig struct {
	// Device is the video device, e.g. /dev/video0. Empty selects
	// autovideosrc so the platform default camera is used.
	Device string
	// Width and Height of the requested capture format.
	Width  int
	Height int
	// FPS is the requested frame rate. Zero means 10.
	FPS int
}

// GstSource captures frames from a local camera through a GStreamer
// pipeline ending in an appsink that emits packed RGB buffers.
type GstSource struct {
	cfg GstConfig

	pipeline *gst.Pipeline
	appSink  *app.Sink

	// inbox receives frames from the GStreamer streaming thread and is
	// never closed; frames is the public channel, closed only by the
	// forwarder goroutine after the producer side has quiesced.
	inbox  chan Frame
	frames chan Frame

	mu       sync.Mutex
	cancel   context.CancelFunc
	frameSeq uint64
	dropped  uint64
	closed   atomic.Bool
}

// NewGstSource validates cfg and prepares a camera source. The pipeline
// is not created until Frames is called.
func NewGstSource(cfg GstConfig) (*GstSource, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 10
	}
	return &GstSource{
		cfg:    cfg,
		inbox:  make(chan Frame, 4),
		frames: make(chan Frame, 4),
	}, nil
}

// Frames builds and starts the capture pipeline and returns the frame
// channel. The channel closes when ctx is cancelled or the pipeline
// reaches end-of-stream or an unrecoverable error.
func (s *GstSource) Frames(ctx context.Context) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil, fmt.Errorf("camera source already started")
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	var src *gst.Element
	if s.cfg.Device != "" {
		src, err = gst.NewElement("v4l2src")
		if err == nil {
			src.SetProperty("device", s.cfg.Device)
		}
	} else {
		src, err = gst.NewElement("autovideosrc")
	}
	if err != nil {
		return nil, fmt.Errorf("create camera element: %w", err)
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("create videoconvert: %w", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("create videoscale: %w", err)
	}
	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("create videorate: %w", err)
	}

	capsFilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("create capsfilter: %w", err)
	}
	caps := gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1",
		s.cfg.Width, s.cfg.Height, s.cfg.FPS,
	))
	capsFilter.SetProperty("caps", caps)

	appSink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("create appsink: %w", err)
	}
	appSink.SetProperty("max-buffers", 2)
	appSink.SetProperty("drop", true)

	elements := []*gst.Element{src, convert, scale, rate, capsFilter, appSink.Element}
	if err := pipeline.AddMany(elements...); err != nil {
		return nil, fmt.Errorf("add pipeline elements: %w", err)
	}
	if err := gst.ElementLinkMany(elements...); err != nil {
		return nil, fmt.Errorf("link pipeline elements: %w", err)
	}

	appSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.pipeline = pipeline
	s.appSink = appSink
	s.cancel = cancel

	go s.watchBus(runCtx)
	go s.forward(runCtx)

	logging.Info("camera source started",
		"device", s.cfg.Device,
		"resolution", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"fps", s.cfg.FPS,
	)

	return s.frames, nil
}

// onNewSample pulls one sample from the appsink, copies its pixels out
// of the GStreamer buffer, and hands it to the consumer. A full channel
// drops the frame; a corrupt sample skips it rather than killing the
// pipeline.
func (s *GstSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	pixels := make([]byte, len(data))
	copy(pixels, data)
	buffer.Unmap()

	frame := Frame{
		Seq:       atomic.AddUint64(&s.frameSeq, 1),
		Timestamp: time.Now(),
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		Data:      pixels,
		TraceID:   uuid.New().String(),
	}

	if !s.enqueue(frame) {
		return gst.FlowEOS
	}
	return gst.FlowOK
}

// enqueue hands a frame to the forwarder. The inbox is never closed, so
// a sample racing shutdown is dropped instead of panicking the streaming
// thread; enqueue reports false once the source is shut down.
func (s *GstSource) enqueue(frame Frame) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.inbox <- frame:
	default:
		atomic.AddUint64(&s.dropped, 1)
		logging.Debug("dropping frame, channel full", "seq", frame.Seq)
	}
	return true
}

// forward drains the inbox into the public frame channel and owns
// closing it once ctx is cancelled. Only this goroutine ever closes
// frames, so the producer callback can never race a close.
func (s *GstSource) forward(ctx context.Context) {
	defer close(s.frames)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.inbox:
			select {
			case s.frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

// watchBus waits for shutdown or a terminal pipeline message and tears
// the pipeline down exactly once.
func (s *GstSource) watchBus(ctx context.Context) {
	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return
		default:
		}

		msg := bus.TimedPop(500 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			logging.Info("camera reached end of stream")
			s.teardown()
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			logging.Error("camera pipeline error", "error", gerr.Error())
			s.teardown()
			return
		}
	}
}

// Stop cancels capture and releases the pipeline.
func (s *GstSource) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// teardown stops the pipeline and cancels the run context, which lets
// the forwarder quiesce and close the public channel.
func (s *GstSource) teardown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.pipeline.SetState(gst.StateNull)
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	logging.Info("camera source stopped",
		"frames", atomic.LoadUint64(&s.frameSeq),
		"dropped", atomic.LoadUint64(&s.dropped),
	)
}
