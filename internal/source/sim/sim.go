// Package sim provides a simulated input source for development and
// end-to-end testing without a microphone: it publishes one configured
// phrase after a startup delay, as if the voice pipeline had recognized it.
package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/config"
	"github.com/ayanero/mimik/internal/source"
)

var _ source.Source = (*Source)(nil)

// Source emits a canned transcript.
type Source struct {
	bus    *bus.Bus
	phrase string
	delay  time.Duration
}

// New creates a simulated source publishing phrase after delay.
func New(b *bus.Bus, phrase string, delay time.Duration) *Source {
	return &Source{bus: b, phrase: phrase, delay: delay}
}

// Factory builds the simulated source from configuration.
func Factory(cfg *config.Config, b *bus.Bus) (source.Source, error) {
	delay := time.Duration(cfg.Sources.SimulatedDelayMs) * time.Millisecond
	return New(b, cfg.Sources.SimulatedPhrase, delay), nil
}

func (s *Source) Name() string { return string(config.SourceSimulated) }

// Run waits out the startup delay, publishes the phrase once, and then
// blocks until cancelled so the supervisor treats it like any long-running
// pipeline.
func (s *Source) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}

	slog.Info("simulated source publishing phrase", "phrase", s.phrase)
	s.bus.Publish(bus.TopicTranscript, s.phrase)

	<-ctx.Done()
	return ctx.Err()
}
