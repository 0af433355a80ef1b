package voice

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone abstracts the audio capture device. Open starts delivering
// fixed-size mono float32 frames to onFrame from the capture context; the
// callback must not block. Close releases the device and is safe to call
// more than once.
type Microphone interface {
	Open(onFrame func(frame []float32)) error
	Close() error
}

var _ Microphone = (*PortAudioMicrophone)(nil)

// PortAudioMicrophone captures from the default input device via a
// callback-driven PortAudio stream.
type PortAudioMicrophone struct {
	sampleRate   int
	frameSamples int

	stream *portaudio.Stream

	closeOnce sync.Once
	closeErr  error
}

// NewPortAudioMicrophone creates a microphone delivering frames of
// frameSamples mono samples at sampleRate Hz.
func NewPortAudioMicrophone(sampleRate, frameSamples int) *PortAudioMicrophone {
	return &PortAudioMicrophone{sampleRate: sampleRate, frameSamples: frameSamples}
}

// Open initializes PortAudio and starts the capture stream. The PortAudio
// callback runs on its own thread; the frame is copied before handoff so
// onFrame may retain it.
func (m *PortAudioMicrophone) Open(onFrame func(frame []float32)) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("voice: initialize audio host: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.frameSamples,
		func(in []float32) {
			frame := make([]float32, len(in))
			copy(frame, in)
			onFrame(frame)
		})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("voice: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("voice: start capture stream: %w", err)
	}

	m.stream = stream
	return nil
}

// Close stops and releases the stream and the PortAudio host. Only the first
// call does work; later calls return the same result.
func (m *PortAudioMicrophone) Close() error {
	m.closeOnce.Do(func() {
		if m.stream != nil {
			m.closeErr = errors.Join(m.stream.Stop(), m.stream.Close())
			m.stream = nil
		}
		portaudio.Terminate()
	})
	return m.closeErr
}
