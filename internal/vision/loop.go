package vision

import (
	"context"
	"fmt"
	"image"
	"time"

	"borderd/internal/alert"
	"borderd/internal/camera"
	"borderd/internal/ledger"
	"borderd/internal/logging"
	"borderd/internal/statestore"
)

// DefaultConfidenceThreshold gates detections; only strictly greater
// confidences qualify.
const DefaultConfidenceThreshold = 0.5

// LoopConfig wires a vision sensor loop.
type LoopConfig struct {
	Source   camera.Source
	Detector Detector
	Ledger   *ledger.Ledger
	State    *statestore.Store
	Throttle *alert.Throttle

	// ConfidenceThreshold below-or-equal detections are discarded.
	// Zero means DefaultConfidenceThreshold.
	ConfidenceThreshold float32

	// BlankWidth/BlankHeight size the placeholder frame written with a
	// terminal ERROR verdict. Zero means 640x480.
	BlankWidth  int
	BlankHeight int
}

// Loop is the vision sensor loop. One instance owns the vision status
// key and the live frame; nothing else writes them.
type Loop struct {
	cfg       LoopConfig
	threshold float32
	log       *logging.Logger

	lastFrame *image.RGBA
}

// NewLoop validates cfg and returns a runnable loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("camera source is required")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg.Throttle == nil {
		cfg.Throttle = alert.NewThrottle(alert.NopSounder{}, 0)
	}

	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	return &Loop{
		cfg:       cfg,
		threshold: threshold,
		log:       logging.Default().WithComponent("vision"),
	}, nil
}

// Run drives the loop until ctx is cancelled or the camera fails.
//
// Camera-open failure is fatal to the loop: a single ERROR verdict with a
// blank placeholder frame is written and Run returns the error. Every
// other collaborator failure is confined to its iteration. On controlled
// shutdown a final SYSTEM_OFF verdict is written together with the last
// processed frame.
func (l *Loop) Run(ctx context.Context) error {
	frames, err := l.cfg.Source.Frames(ctx)
	if err != nil {
		l.log.Error("camera unavailable", "error", err)
		l.writeState(string(statestore.VisionError), camera.BlankFrame(l.cfg.BlankWidth, l.cfg.BlankHeight))
		return fmt.Errorf("open camera: %w", err)
	}
	defer l.cfg.Source.Stop()

	l.log.Info("vision sensor loop started", "confidence_threshold", l.threshold)

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil

		case frame, ok := <-frames:
			if !ok {
				// The source closed underneath us: either the camera
				// hit end-of-stream or the context raced the channel.
				if ctx.Err() != nil {
					l.shutdown()
					return nil
				}
				l.log.Error("camera stream ended")
				l.writeState(string(statestore.VisionError), camera.BlankFrame(l.cfg.BlankWidth, l.cfg.BlankHeight))
				return fmt.Errorf("camera stream ended")
			}
			l.processFrame(ctx, frame)
		}
	}
}

// processFrame runs one iteration: classify, gate, annotate, alert, log,
// and unconditionally publish (verdict, frame) to the state store.
func (l *Loop) processFrame(ctx context.Context, frame camera.Frame) {
	started := time.Now()

	img := frame.ToImage()
	if img == nil {
		l.log.Warn("skipping malformed frame", "seq", frame.Seq, "trace_id", frame.TraceID)
		return
	}

	verdict := statestore.VisionNormal

	detections, err := l.cfg.Detector.Detect(frame)
	if err != nil {
		// Skip the iteration entirely: a failed classification must not
		// publish a NORMAL verdict it never computed.
		l.log.Warn("classification failed, skipping iteration", "seq", frame.Seq, "error", err)
		return
	}

	// Every qualifying detection in the frame is logged, so ledger
	// cardinality per frame equals the number of qualifying boxes.
	for _, det := range detections {
		if det.Confidence <= l.threshold {
			continue
		}

		Annotate(img, det)
		l.cfg.Throttle.Fire(ctx)

		if _, err := l.cfg.Ledger.Append(det.Category, img); err != nil {
			l.log.Error("ledger append failed",
				"category", det.Category,
				"seq", frame.Seq,
				"error", err,
			)
		} else {
			l.log.Info("threat logged",
				"category", det.Category,
				"confidence", det.Confidence,
				"trace_id", frame.TraceID,
			)
		}
		verdict = statestore.VisionAlert
	}

	l.lastFrame = img
	l.writeState(string(verdict), img)

	l.log.Debug("frame processed",
		"seq", frame.Seq,
		"verdict", verdict,
		"elapsed", time.Since(started),
	)
}

// shutdown performs the terminal SYSTEM_OFF write.
func (l *Loop) shutdown() {
	frame := image.Image(l.lastFrame)
	if l.lastFrame == nil {
		frame = camera.BlankFrame(l.cfg.BlankWidth, l.cfg.BlankHeight)
	}
	l.writeState(string(statestore.VisionOff), frame)
	l.log.Info("vision sensor loop stopped")
}

// writeState publishes verdict and frame. The two writes are not
// transactional; a poller may transiently observe one side newer than
// the other, which the presentation layer tolerates.
func (l *Loop) writeState(verdict string, frame image.Image) {
	if err := l.cfg.State.SetVerdict(statestore.SensorVision, verdict); err != nil {
		l.log.Warn("verdict write failed", "verdict", verdict, "error", err)
	}
	if frame != nil {
		if err := l.cfg.State.SetLiveFrame(frame); err != nil {
			l.log.Warn("live frame write failed", "error", err)
		}
	}
}
