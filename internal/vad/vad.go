// Package vad provides frame-level voice activity detection used to gate
// which audio reaches the speech recognizer.
//
// The Engine/Session split mirrors the rest of the capture pipeline: an
// Engine is a concurrency-safe factory, while each Session holds the
// per-stream smoothing state and must stay confined to one goroutine.
package vad

import "fmt"

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// frames passed to ProcessFrame.
	SampleRate int

	// FrameSizeMs is the duration of each frame in milliseconds. ProcessFrame
	// returns an error if the supplied frame does not match this size.
	FrameSizeMs int

	// SpeechThreshold is the RMS level at or above which frames count toward
	// entering the speaking state.
	SpeechThreshold float64

	// SilenceThreshold is the RMS level below which frames count toward
	// leaving the speaking state. Must be <= SpeechThreshold.
	SilenceThreshold float64

	// SpeechFrames is the number of consecutive speech frames required to
	// enter the speaking state. Zero means 1.
	SpeechFrames int

	// SilenceFrames is the number of consecutive silence frames required to
	// leave the speaking state. Zero means 1.
	SilenceFrames int
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: sample rate %d must be positive", c.SampleRate)
	}
	if c.FrameSizeMs <= 0 {
		return fmt.Errorf("vad: frame size %dms must be positive", c.FrameSizeMs)
	}
	if c.SilenceThreshold > c.SpeechThreshold {
		return fmt.Errorf("vad: silence threshold %.4f exceeds speech threshold %.4f", c.SilenceThreshold, c.SpeechThreshold)
	}
	return nil
}

// frameSamples returns the expected sample count per frame.
func (c Config) frameSamples() int {
	return c.SampleRate * c.FrameSizeMs / 1000
}

// Session is an active detector for a single audio stream. A Session must
// not be shared between goroutines.
type Session interface {
	// ProcessFrame classifies a single frame of mono float32 samples as
	// speech or non-speech. The frame length must match the configured
	// FrameSizeMs. ProcessFrame never blocks.
	ProcessFrame(frame []float32) (speech bool, err error)

	// Reset clears accumulated hysteresis state without closing the session.
	Reset()

	// Close releases session resources. Calling Close more than once is safe.
	Close() error
}

// Engine is the factory for VAD sessions. Implementations must be safe for
// concurrent use.
type Engine interface {
	NewSession(cfg Config) (Session, error)
}
