// Package voice implements the voice segmentation and recognition pipeline:
// microphone frames are gated by voice activity detection, speech is
// accumulated into an utterance buffer, and a periodic tick feeds the buffer
// to the streaming recognizer and publishes transcript events.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayanero/mimik/internal/asr"
	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/config"
	"github.com/ayanero/mimik/internal/observe"
	"github.com/ayanero/mimik/internal/source"
	"github.com/ayanero/mimik/internal/vad"
)

// frameBridgeDepth is the capacity of the channel carrying frames from the
// capture callback into the pipeline. The callback never blocks: when the
// bridge is full the frame is dropped and counted.
const frameBridgeDepth = 64

var _ source.Source = (*Pipeline)(nil)

// Pipeline is the voice input source.
type Pipeline struct {
	bus     *bus.Bus
	mic     Microphone
	rec     asr.Recognizer
	engine  vad.Engine
	cfg     config.VoiceConfig
	metrics *observe.Metrics

	// recOwned marks a recognizer created by the factory, closed when Run
	// returns.
	recOwned bool

	// The utterance buffer accumulates speech-gated samples between decode
	// ticks. The frame consumer appends, the tick drains; mu keeps the two
	// apart.
	mu        sync.Mutex
	utterance []float32

	// Decode-tick state, touched only by the tick loop.
	lastEmitted string
	lastStatus  string
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline wires a pipeline from its collaborators. The recognizer's
// lifecycle stays with the caller.
func NewPipeline(b *bus.Bus, mic Microphone, rec asr.Recognizer, engine vad.Engine, cfg config.VoiceConfig, opts ...Option) *Pipeline {
	p := &Pipeline{bus: b, mic: mic, rec: rec, engine: engine, cfg: cfg}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Factory builds the production pipeline: whisper recognizer, energy VAD,
// PortAudio capture.
func Factory(cfg *config.Config, b *bus.Bus) (source.Source, error) {
	rec, err := asr.NewWhisper(cfg.Voice.ModelPath,
		asr.WithLanguage(cfg.Voice.Language),
		asr.WithSampleRate(cfg.Voice.SampleRate),
	)
	if err != nil {
		return nil, err
	}

	frameSamples := cfg.Voice.SampleRate * cfg.Voice.FrameMs / 1000
	mic := NewPortAudioMicrophone(cfg.Voice.SampleRate, frameSamples)

	p := NewPipeline(b, mic, rec, vad.NewEnergyEngine(), cfg.Voice)
	p.recOwned = true
	return p, nil
}

func (p *Pipeline) Name() string { return string(config.SourceVoice) }

// Run captures and decodes until ctx is cancelled. Opening the capture
// device is the only fatal failure; everything after that is logged and
// survived. The device handle is released exactly once on the way out.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.recOwned {
		defer p.rec.Close()
	}

	sess, err := p.engine.NewSession(vad.Config{
		SampleRate:       p.cfg.SampleRate,
		FrameSizeMs:      p.cfg.FrameMs,
		SpeechThreshold:  p.cfg.VAD.SpeechThreshold,
		SilenceThreshold: p.cfg.VAD.SilenceThreshold,
		SpeechFrames:     p.cfg.VAD.SpeechFrames,
		SilenceFrames:    p.cfg.VAD.SilenceFrames,
	})
	if err != nil {
		return fmt.Errorf("voice: create vad session: %w", err)
	}
	defer sess.Close()

	stream, err := p.rec.NewStream()
	if err != nil {
		return fmt.Errorf("voice: create decoder stream: %w", err)
	}
	defer stream.Close()

	frames := make(chan []float32, frameBridgeDepth)
	if err := p.mic.Open(func(frame []float32) {
		select {
		case frames <- frame:
		default:
			p.metrics.FramesDropped.Add(context.Background(), 1)
		}
	}); err != nil {
		p.status("error")
		return fmt.Errorf("voice: acquire capture device: %w", err)
	}
	defer p.mic.Close()

	p.bus.Publish(bus.TopicReady, true)
	p.status("listening")
	slog.Info("voice pipeline listening",
		"sample_rate", p.cfg.SampleRate, "frame_ms", p.cfg.FrameMs, "mode", string(p.cfg.Mode))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.consumeFrames(ctx, frames, sess)
	}()
	defer wg.Wait()

	ticker := time.NewTicker(time.Duration(p.cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.status("stopped")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx, stream)
		}
	}
}

// consumeFrames classifies capture frames and appends speech to the
// utterance buffer. The VAD session is confined to this goroutine.
func (p *Pipeline) consumeFrames(ctx context.Context, frames <-chan []float32, sess vad.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			speech, err := sess.ProcessFrame(frame)
			if err != nil {
				slog.Debug("dropping unclassifiable frame", "error", err)
				continue
			}
			if !speech {
				continue
			}
			p.mu.Lock()
			p.utterance = append(p.utterance, frame...)
			p.mu.Unlock()
		}
	}
}

// tick drains the utterance buffer into the decoder, emits according to the
// configured mode, and resets on endpoint. A decode failure skips the cycle;
// the buffer has already been drained, so one bad chunk cannot stall the
// pipeline.
func (p *Pipeline) tick(ctx context.Context, stream asr.Stream) {
	p.mu.Lock()
	pending := p.utterance
	p.utterance = nil
	p.mu.Unlock()

	if len(pending) > 0 {
		stream.AcceptWaveform(pending)
		p.status("transcribing")
	}

	var text string
	if len(pending) > 0 {
		start := time.Now()
		decoded, err := stream.Decode(ctx)
		p.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			slog.Error("decode failed, skipping tick", "error", err)
			return
		}
		text = decoded

		if p.cfg.Mode == config.ModeFast && text != "" && text != p.lastEmitted {
			p.emit(ctx, text)
			p.lastEmitted = text
		}
	}

	if !stream.Endpoint() {
		return
	}

	if p.cfg.Mode == config.ModeAccurate {
		final, err := stream.Decode(ctx)
		if err != nil {
			slog.Error("final decode failed, discarding utterance", "error", err)
		} else if final != "" {
			p.emit(ctx, final)
		}
	}

	stream.Reset()
	p.lastEmitted = ""
	p.status("listening")
}

func (p *Pipeline) emit(ctx context.Context, text string) {
	slog.Debug("transcript", "text", text)
	p.bus.Publish(bus.TopicTranscript, text)
	p.metrics.RecordTranscript(ctx, string(p.cfg.Mode))
}

// status publishes a pipeline state transition, suppressing repeats.
func (p *Pipeline) status(state string) {
	if state == p.lastStatus {
		return
	}
	p.lastStatus = state
	p.bus.Publish(bus.TopicVoiceStatus, state)
}
