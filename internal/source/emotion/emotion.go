// Package emotion implements the facial emotion detection pipeline: webcam
// frames are scanned for the most prominent face, the face is classified
// into one of the eight ferplus labels, and a bus event is published only
// when the label changes.
package emotion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/config"
	"github.com/ayanero/mimik/internal/observe"
	"github.com/ayanero/mimik/internal/source"
)

// Labels is the ferplus label set, in model output order.
var Labels = []string{
	"neutral", "happiness", "surprise", "sadness",
	"anger", "disgust", "fear", "contempt",
}

// inputSize is the classifier's expected square input edge in pixels.
const inputSize = 64

// Frame is a single grayscale camera frame, row-major, one byte per pixel.
type Frame struct {
	Pixels []uint8
	Width  int
	Height int
}

// Camera abstracts the video capture device. ReadFrame blocks until a frame
// is available.
type Camera interface {
	Open() error
	ReadFrame() (Frame, error)
	Close() error
}

// Region is a square face region inside a frame.
type Region struct {
	X, Y, Size int
}

// FaceLocator finds the most prominent face in a frame. When several faces
// are present the first (highest-confidence) one wins.
type FaceLocator interface {
	Locate(f Frame) (Region, bool)
}

// Classifier scores a normalized inputSize×inputSize grayscale face crop and
// returns the winning label.
type Classifier interface {
	Classify(face []float32) (string, error)
	Close() error
}

var _ source.Source = (*Detector)(nil)

// Detector is the emotion input source.
type Detector struct {
	bus        *bus.Bus
	cam        Camera
	locator    FaceLocator
	classifier Classifier
	interval   time.Duration
	metrics    *observe.Metrics

	// classifierOwned marks a classifier created by the factory, closed when
	// Run returns.
	classifierOwned bool

	lastLabel string
}

// Option is a functional option for configuring a [Detector].
type Option func(*Detector)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// NewDetector wires a detector from its collaborators. interval is the pause
// between loop iterations that decouples CPU usage from the camera frame
// rate.
func NewDetector(b *bus.Bus, cam Camera, locator FaceLocator, classifier Classifier, interval time.Duration, opts ...Option) *Detector {
	d := &Detector{
		bus:        b,
		cam:        cam,
		locator:    locator,
		classifier: classifier,
		interval:   interval,
		// A blank face is neutral, so a neutral first frame is not a change.
		lastLabel: "neutral",
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Factory builds the production detector: V4L2 capture, pigo face
// localization, ONNX ferplus classification.
func Factory(cfg *config.Config, b *bus.Bus) (source.Source, error) {
	locator, err := NewPigoLocator(cfg.Emotion.CascadePath)
	if err != nil {
		return nil, err
	}
	classifier, err := NewONNXClassifier(cfg.Emotion.ModelPath, cfg.Emotion.OnnxLibrary)
	if err != nil {
		return nil, err
	}

	cam := NewV4L2Camera(cfg.Emotion.Device)
	interval := time.Duration(cfg.Emotion.IntervalMs) * time.Millisecond

	d := NewDetector(b, cam, locator, classifier, interval)
	d.classifierOwned = true
	return d, nil
}

func (d *Detector) Name() string { return string(config.SourceEmotion) }

// Run captures and classifies until ctx is cancelled. Camera acquisition is
// the only fatal failure; per-frame errors are logged and the cycle skipped.
// The camera handle is released on the way out even when cancelled
// mid-iteration.
func (d *Detector) Run(ctx context.Context) error {
	if d.classifierOwned {
		defer d.classifier.Close()
	}

	if err := d.cam.Open(); err != nil {
		d.bus.Publish(bus.TopicEmotionStatus, "error")
		return fmt.Errorf("emotion: acquire capture device: %w", err)
	}
	defer d.cam.Close()

	d.bus.Publish(bus.TopicEmotionStatus, "initialized")
	d.bus.Publish(bus.TopicEmotionStatus, "detecting")
	slog.Info("emotion pipeline detecting", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			d.bus.Publish(bus.TopicEmotionStatus, "stopped")
			return ctx.Err()
		default:
		}

		d.step(ctx)

		select {
		case <-ctx.Done():
			d.bus.Publish(bus.TopicEmotionStatus, "stopped")
			return ctx.Err()
		case <-time.After(d.interval):
		}
	}
}

// step processes a single frame.
func (d *Detector) step(ctx context.Context) {
	frame, err := d.cam.ReadFrame()
	if err != nil {
		slog.Warn("frame capture failed, skipping cycle", "error", err)
		return
	}

	face, ok := d.locator.Locate(frame)
	if !ok {
		return
	}

	label, err := d.classifier.Classify(cropResize(frame, face))
	if err != nil {
		slog.Warn("classification failed, skipping cycle", "error", err)
		return
	}

	// Edge-triggered: only a label change reaches the bus, otherwise a
	// steady expression would flood it every cycle.
	if label == d.lastLabel {
		return
	}
	d.lastLabel = label

	slog.Debug("emotion changed", "label", label)
	d.bus.Publish(bus.TopicEmotion, label)
	d.metrics.RecordEmotionChange(ctx, label)
}

// cropResize extracts the face region, clamped to the frame, and resizes it
// to the classifier input with nearest-neighbor sampling. Pixel values stay
// in their native 0..255 range, which is what the ferplus model expects.
func cropResize(f Frame, r Region) []float32 {
	x0, y0, size := r.X, r.Y, r.Size
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if size < 1 {
		size = 1
	}
	if x0+size > f.Width {
		size = f.Width - x0
	}
	if y0+size > f.Height {
		size = f.Height - y0
	}
	if size < 1 {
		return make([]float32, inputSize*inputSize)
	}

	out := make([]float32, inputSize*inputSize)
	for y := 0; y < inputSize; y++ {
		srcY := y0 + y*size/inputSize
		for x := 0; x < inputSize; x++ {
			srcX := x0 + x*size/inputSize
			out[y*inputSize+x] = float32(f.Pixels[srcY*f.Width+srcX])
		}
	}
	return out
}
