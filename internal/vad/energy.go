package vad

import (
	"errors"
	"math"
)

// EnergyEngine is a pure-Go VAD based on per-frame RMS energy with
// hysteresis: a run of loud frames is needed to enter the speaking state and
// a longer run of quiet frames to leave it, which suppresses flicker at
// speech boundaries.
type EnergyEngine struct{}

// NewEnergyEngine returns the energy-based Engine.
func NewEnergyEngine() *EnergyEngine { return &EnergyEngine{} }

// NewSession creates a detector session for one audio stream.
func (e *EnergyEngine) NewSession(cfg Config) (Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SpeechFrames <= 0 {
		cfg.SpeechFrames = 1
	}
	if cfg.SilenceFrames <= 0 {
		cfg.SilenceFrames = 1
	}
	return &energySession{cfg: cfg, want: cfg.frameSamples()}, nil
}

type energySession struct {
	cfg  Config
	want int

	inSpeech     bool
	speechCount  int
	silenceCount int
	closed       bool
}

func (s *energySession) ProcessFrame(frame []float32) (bool, error) {
	if s.closed {
		return false, errors.New("vad: session is closed")
	}
	if len(frame) != s.want {
		return false, errors.New("vad: frame size does not match session config")
	}

	level := rms(frame)

	if s.inSpeech {
		if level < s.cfg.SilenceThreshold {
			s.silenceCount++
			s.speechCount = 0
			if s.silenceCount >= s.cfg.SilenceFrames {
				s.inSpeech = false
				s.silenceCount = 0
			}
		} else {
			s.silenceCount = 0
		}
	} else {
		if level >= s.cfg.SpeechThreshold {
			s.speechCount++
			s.silenceCount = 0
			if s.speechCount >= s.cfg.SpeechFrames {
				s.inSpeech = true
				s.speechCount = 0
			}
		} else {
			s.speechCount = 0
		}
	}

	return s.inSpeech, nil
}

func (s *energySession) Reset() {
	s.inSpeech = false
	s.speechCount = 0
	s.silenceCount = 0
}

func (s *energySession) Close() error {
	s.closed = true
	return nil
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, x := range frame {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
