package emotion_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/source/emotion"
)

// fakeCamera serves a constant gray frame and counts Close calls.
type fakeCamera struct {
	mu         sync.Mutex
	openErr    error
	closeCalls int
}

func (c *fakeCamera) Open() error { return c.openErr }

func (c *fakeCamera) ReadFrame() (emotion.Frame, error) {
	return emotion.Frame{Pixels: make([]uint8, 128*128), Width: 128, Height: 128}, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

func (c *fakeCamera) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// fullFrameLocator reports the whole frame as the face.
type fullFrameLocator struct{}

func (fullFrameLocator) Locate(f emotion.Frame) (emotion.Region, bool) {
	return emotion.Region{X: 0, Y: 0, Size: f.Width}, true
}

// scriptedClassifier returns labels in sequence; the last one repeats.
type scriptedClassifier struct {
	mu     sync.Mutex
	labels []string
	idx    int
}

func (c *scriptedClassifier) Classify([]float32) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.labels) == 0 {
		return "neutral", nil
	}
	label := c.labels[c.idx]
	if c.idx < len(c.labels)-1 {
		c.idx++
	}
	return label, nil
}

func (c *scriptedClassifier) Close() error { return nil }

func startDetector(t *testing.T, cam emotion.Camera, classifier emotion.Classifier) *bus.Bus {
	t.Helper()
	b := bus.New()
	d := emotion.NewDetector(b, cam, fullFrameLocator{}, classifier, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b
}

func recvLabel(t *testing.T, q *bus.Queue, timeout time.Duration) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ev, err := q.Receive(ctx)
	if err != nil {
		return "", false
	}
	label, ok := ev.Payload.(string)
	if !ok {
		t.Fatalf("emotion payload is %T, want string", ev.Payload)
	}
	return label, ok
}

func TestDetector_EdgeTriggeredLabelChanges(t *testing.T) {
	t.Parallel()
	classifier := &scriptedClassifier{labels: []string{"neutral", "happiness", "happiness", "sadness"}}
	b := startDetector(t, &fakeCamera{}, classifier)
	q := b.Subscribe(bus.TopicEmotion)

	// The leading neutral frame and the repeated happiness frame emit
	// nothing; only the two changes reach the bus.
	first, ok := recvLabel(t, q, 2*time.Second)
	if !ok || first != "happiness" {
		t.Fatalf("first event = (%q, %v), want happiness", first, ok)
	}
	second, ok := recvLabel(t, q, 2*time.Second)
	if !ok || second != "sadness" {
		t.Fatalf("second event = (%q, %v), want sadness", second, ok)
	}
	if extra, ok := recvLabel(t, q, 150*time.Millisecond); ok {
		t.Errorf("unexpected extra event %q", extra)
	}
}

func TestDetector_CancelReleasesCamera(t *testing.T) {
	t.Parallel()
	cam := &fakeCamera{}
	b := bus.New()
	d := emotion.NewDetector(b, cam, fullFrameLocator{}, &scriptedClassifier{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("detector did not stop after cancellation")
	}
	if got := cam.closes(); got != 1 {
		t.Errorf("camera closed %d times, want exactly 1", got)
	}

	// The stopped status was published on the way out.
	status := b.Subscribe(bus.TopicEmotionStatus)
	var saw bool
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		ev, err := status.Receive(ctx)
		cancel()
		if err != nil {
			break
		}
		if ev.Payload == "stopped" {
			saw = true
		}
	}
	if !saw {
		t.Error("no stopped status event after cancellation")
	}
}

func TestDetector_DeviceOpenFailureIsFatalAndReported(t *testing.T) {
	t.Parallel()
	cam := &fakeCamera{openErr: errors.New("device busy")}
	b := bus.New()
	status := b.Subscribe(bus.TopicEmotionStatus)
	d := emotion.NewDetector(b, cam, fullFrameLocator{}, &scriptedClassifier{}, time.Millisecond)

	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail when the camera cannot be opened")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := status.Receive(ctx)
	if err != nil {
		t.Fatal("no status event after device failure")
	}
	if ev.Payload != "error" {
		t.Errorf("status = %v, want error", ev.Payload)
	}
}
