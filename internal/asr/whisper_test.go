package asr

import (
	"context"
	"testing"
	"time"
)

// fakeClock steps time manually so endpoint detection can be tested without
// real waits.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testStream(clk *fakeClock) *whisperStream {
	rec := &WhisperRecognizer{
		language:        defaultLanguage,
		sampleRate:      defaultSampleRate,
		endpointSilence: defaultEndpointSilence,
		maxUtterance:    defaultMaxUtterance,
		now:             clk.now,
	}
	return &whisperStream{rec: rec}
}

func TestEndpoint_EmptyStreamNeverEndpoints(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := testStream(clk)

	clk.advance(time.Minute)
	if s.Endpoint() {
		t.Error("a stream with no audio must not report an endpoint")
	}
}

func TestEndpoint_SilenceGap(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := testStream(clk)

	s.AcceptWaveform(make([]float32, 480))
	if s.Endpoint() {
		t.Fatal("endpoint immediately after audio")
	}

	clk.advance(defaultEndpointSilence - time.Millisecond)
	if s.Endpoint() {
		t.Fatal("endpoint before the silence gap elapsed")
	}

	clk.advance(time.Millisecond)
	if !s.Endpoint() {
		t.Error("expected an endpoint once the silence gap elapsed")
	}
}

func TestEndpoint_NewAudioDefersSilenceGap(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := testStream(clk)

	s.AcceptWaveform(make([]float32, 480))
	clk.advance(defaultEndpointSilence / 2)
	s.AcceptWaveform(make([]float32, 480))
	clk.advance(defaultEndpointSilence / 2)

	if s.Endpoint() {
		t.Error("fresh audio should restart the silence gap")
	}
}

func TestEndpoint_MaxUtteranceForcesFlush(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := testStream(clk)

	// Keep feeding audio so the silence gap never elapses.
	step := defaultEndpointSilence / 2
	for elapsed := time.Duration(0); elapsed < defaultMaxUtterance; elapsed += step {
		s.AcceptWaveform(make([]float32, 480))
		clk.advance(step)
	}

	if !s.Endpoint() {
		t.Error("expected a forced endpoint after the maximum utterance duration")
	}
}

func TestDecode_NoNewAudioReturnsCachedHypothesis(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := testStream(clk)

	// Decoded state: samples buffered, hypothesis cached, nothing new since.
	// The recognizer carries no model, so any attempt to re-decode would
	// panic; returning the cache is the only correct path.
	s.AcceptWaveform(make([]float32, 480))
	s.hypothesis = "hello there"
	s.dirty = false

	got, err := s.Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Decode = %q, want the cached hypothesis", got)
	}

	// New audio invalidates the cache.
	s.AcceptWaveform(make([]float32, 480))
	if !s.dirty {
		t.Error("fresh audio must mark the stream dirty")
	}
}

func TestReset_ClearsUtteranceState(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := testStream(clk)

	s.AcceptWaveform(make([]float32, 480))
	s.hypothesis = "hello there"
	clk.advance(time.Minute)
	s.Reset()

	if s.Endpoint() {
		t.Error("reset stream must not report an endpoint")
	}
	if len(s.samples) != 0 || s.hypothesis != "" {
		t.Error("reset must clear buffered audio and the hypothesis")
	}
}
