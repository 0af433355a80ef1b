// Package asr defines the streaming speech recognizer consumed by the voice
// pipeline, and provides the whisper.cpp-backed implementation.
//
// A Stream accumulates speech-gated audio across decode ticks and maintains
// the current partial hypothesis plus an endpoint flag. Endpoint detection
// triggers a decoder reset in the pipeline regardless of the emission mode.
package asr

import "context"

// Stream holds the incremental decoder state for one utterance sequence.
// A Stream must be confined to a single goroutine.
type Stream interface {
	// AcceptWaveform appends mono float32 samples to the pending utterance.
	AcceptWaveform(samples []float32)

	// Decode runs the decoder over the accumulated audio and returns the
	// current hypothesis. The hypothesis grows or changes as more audio
	// arrives; it is not final until an endpoint is detected.
	Decode(ctx context.Context) (string, error)

	// Endpoint reports whether the current utterance has concluded. Once it
	// returns true the caller is expected to Reset the stream.
	Endpoint() bool

	// Reset clears the accumulated audio and hypothesis, starting a fresh
	// utterance.
	Reset()

	// Close releases stream resources.
	Close() error
}

// Recognizer is the factory for decoder streams. Implementations must be
// safe for concurrent use; the streams they produce are not.
type Recognizer interface {
	NewStream() (Stream, error)
	Close() error
}
