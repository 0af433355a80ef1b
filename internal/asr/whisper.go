// This file contains the whisper.cpp-backed Recognizer implementation using
// the CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	defaultLanguage        = "en"
	defaultSampleRate      = 16000
	defaultEndpointSilence = 800 * time.Millisecond
	defaultMaxUtterance    = 10 * time.Second
)

// Compile-time assertion that WhisperRecognizer satisfies Recognizer.
var _ Recognizer = (*WhisperRecognizer)(nil)

// WhisperRecognizer implements Recognizer using the whisper.cpp Go bindings
// (CGO). The model is loaded once at startup and shared across all streams;
// each Decode call creates its own whisper context because contexts are not
// thread-safe while the model is.
type WhisperRecognizer struct {
	model    whisperlib.Model
	language string

	sampleRate      int
	endpointSilence time.Duration
	maxUtterance    time.Duration

	// now is the clock used for endpoint detection, replaceable in tests.
	now func() time.Time
}

// WhisperOption is a functional option for configuring a WhisperRecognizer.
type WhisperOption func(*WhisperRecognizer)

// WithLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) WhisperOption {
	return func(r *WhisperRecognizer) { r.language = lang }
}

// WithSampleRate sets the audio sample rate in Hz. This must match the actual
// rate of the samples passed to AcceptWaveform. Defaults to 16000, the rate
// whisper.cpp expects.
func WithSampleRate(rate int) WhisperOption {
	return func(r *WhisperRecognizer) { r.sampleRate = rate }
}

// WithEndpointSilence sets how long a stream may go without new audio before
// the current utterance is considered finished. Defaults to 800 ms.
func WithEndpointSilence(d time.Duration) WhisperOption {
	return func(r *WhisperRecognizer) { r.endpointSilence = d }
}

// WithMaxUtterance sets the maximum utterance duration before an endpoint is
// forced regardless of ongoing audio. This bounds both decode latency and
// buffer growth during continuous speech. Defaults to 10 s.
func WithMaxUtterance(d time.Duration) WhisperOption {
	return func(r *WhisperRecognizer) { r.maxUtterance = d }
}

// WithClock replaces the wall clock used for endpoint detection. Intended for
// tests.
func WithClock(now func() time.Time) WhisperOption {
	return func(r *WhisperRecognizer) { r.now = now }
}

// NewWhisper creates a WhisperRecognizer that loads the whisper.cpp model
// from the given file path. The model is loaded once and shared across all
// streams. The caller must call Close when the recognizer is no longer
// needed.
func NewWhisper(modelPath string, opts ...WhisperOption) (*WhisperRecognizer, error) {
	if modelPath == "" {
		return nil, errors.New("asr: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("asr: load model %q: %w", modelPath, err)
	}

	r := &WhisperRecognizer{
		model:           model,
		language:        defaultLanguage,
		sampleRate:      defaultSampleRate,
		endpointSilence: defaultEndpointSilence,
		maxUtterance:    defaultMaxUtterance,
		now:             time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// NewStream returns a fresh decoder stream bound to the shared model.
func (r *WhisperRecognizer) NewStream() (Stream, error) {
	return &whisperStream{rec: r}, nil
}

// Close releases the whisper model. Streams created from this recognizer must
// not be used afterwards.
func (r *WhisperRecognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// Compile-time assertion that whisperStream satisfies Stream.
var _ Stream = (*whisperStream)(nil)

// whisperStream accumulates speech samples between endpoints. It is confined
// to the pipeline's decode goroutine, so no locking is needed.
type whisperStream struct {
	rec *WhisperRecognizer

	samples    []float32
	started    time.Time // arrival of the first sample of this utterance
	lastAudio  time.Time // arrival of the most recent samples
	hypothesis string
	dirty      bool // samples arrived since the last decode
	closed     bool
}

func (s *whisperStream) AcceptWaveform(samples []float32) {
	if s.closed || len(samples) == 0 {
		return
	}
	now := s.rec.now()
	if len(s.samples) == 0 {
		s.started = now
	}
	s.lastAudio = now
	s.samples = append(s.samples, samples...)
	s.dirty = true
}

// Decode runs whisper.cpp over everything accumulated since the last Reset
// and caches the result as the current hypothesis. Repeated calls without new
// audio return the cached hypothesis without touching the model.
func (s *whisperStream) Decode(ctx context.Context) (string, error) {
	if s.closed {
		return "", errors.New("asr: stream is closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.samples) == 0 || !s.dirty {
		return s.hypothesis, nil
	}

	// Each decode uses a fresh whisper context. Contexts are NOT thread-safe,
	// but the model can be shared across goroutines.
	wctx, err := s.rec.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("asr: create context: %w", err)
	}
	if err := wctx.SetLanguage(s.rec.language); err != nil {
		slog.Warn("failed to set decode language, using model default",
			"language", s.rec.language, "error", err)
	}

	if err := wctx.Process(s.samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("asr: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("asr: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	s.hypothesis = strings.Join(parts, " ")
	s.dirty = false
	return s.hypothesis, nil
}

// Endpoint reports true once the utterance has gone quiet for the configured
// silence gap, or has exceeded the maximum utterance duration.
func (s *whisperStream) Endpoint() bool {
	if s.closed || len(s.samples) == 0 {
		return false
	}
	now := s.rec.now()
	if now.Sub(s.lastAudio) >= s.rec.endpointSilence {
		return true
	}
	return now.Sub(s.started) >= s.rec.maxUtterance
}

func (s *whisperStream) Reset() {
	s.samples = nil
	s.hypothesis = ""
	s.dirty = false
	s.started = time.Time{}
	s.lastAudio = time.Time{}
}

func (s *whisperStream) Close() error {
	s.closed = true
	s.samples = nil
	return nil
}
