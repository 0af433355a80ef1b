package intent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/observe"
)

// triggerSource tags where a resolved trigger came from, for logs and the
// dispatch counter.
const (
	sourceKeyword = "keyword"
	sourceEmotion = "emotion"
)

// Engine consumes transcript and emotion events, resolves them against the
// current trigger table, applies the anti-spam cooldown policy, and publishes
// dispatch commands.
//
// All cooldown state is owned by the engine's single decision loop, so no
// locking is needed beyond the atomic table swap.
type Engine struct {
	bus       *bus.Bus
	metrics   *observe.Metrics
	corrector *Corrector
	now       func() time.Time

	table atomic.Pointer[Table]

	// Cooldown state, touched only by the decision loop in Run.
	lastAction string
	hits       int
	expiry     map[string]time.Time
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithCorrector enables phonetic correction of transcripts against the
// trigger vocabulary before keyword matching.
func WithCorrector(c *Corrector) Option {
	return func(e *Engine) { e.corrector = c }
}

// WithClock replaces the wall clock used for cooldown arithmetic. Intended
// for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine bound to b with an empty trigger table.
func New(b *bus.Bus, opts ...Option) *Engine {
	e := &Engine{
		bus:    b,
		now:    time.Now,
		expiry: make(map[string]time.Time),
	}
	e.table.Store(NewTable())
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// SetTable replaces the trigger table wholesale. Safe to call concurrently
// with Run; the decision loop picks up the new table on its next event.
// Cooldown state survives a table swap: an armed cooldown keeps suppressing
// its action even after a resync.
func (e *Engine) SetTable(t *Table) {
	if t == nil {
		t = NewTable()
	}
	e.table.Store(t)
}

// input is one pending event for the decision loop.
type input struct {
	source string
	text   string
}

// Run consumes the transcript and emotion topics until ctx is cancelled.
// Both topics are pumped into a single decision loop so cooldown state stays
// single-threaded; cross-topic ordering is whatever the pumps produce, which
// matches the bus's own guarantee (none).
func (e *Engine) Run(ctx context.Context) error {
	transcripts := e.bus.Subscribe(bus.TopicTranscript)
	emotions := e.bus.Subscribe(bus.TopicEmotion)

	in := make(chan input)
	var wg sync.WaitGroup

	pump := func(q *bus.Queue, source string) {
		defer wg.Done()
		for {
			ev, err := q.Receive(ctx)
			if err != nil {
				return
			}
			text, ok := ev.Payload.(string)
			if !ok {
				slog.Warn("discarding event with non-string payload",
					"topic", ev.Topic)
				continue
			}
			select {
			case in <- input{source: source, text: text}:
			case <-ctx.Done():
				return
			}
		}
	}

	wg.Add(2)
	go pump(transcripts, sourceKeyword)
	go pump(emotions, sourceEmotion)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case ev := <-in:
			e.resolve(ctx, ev)
		}
	}
}

// resolve matches one event against the current table and dispatches it if
// the cooldown policy admits it.
func (e *Engine) resolve(ctx context.Context, ev input) {
	table := e.table.Load()

	var (
		entry   Entry
		matched bool
		trigger string
	)
	switch ev.source {
	case sourceEmotion:
		entry, matched = table.MatchEmotion(ev.text)
		trigger = ev.text
	default:
		text := ev.text
		if e.corrector != nil {
			text = e.corrector.Correct(text, table.Vocabulary())
		}
		trigger, entry, matched = table.MatchKeyword(text)
	}
	if !matched {
		return
	}

	if !e.admit(ctx, entry) {
		slog.Debug("trigger suppressed by cooldown",
			"action", entry.ActionID, "trigger", trigger, "source", ev.source)
		return
	}

	slog.Info("dispatching action",
		"action", entry.ActionID, "trigger", trigger, "source", ev.source)
	e.bus.Publish(bus.TopicDispatch, entry.ActionID)
	e.metrics.RecordDispatch(ctx, ev.source)
}

// admit applies the anti-spam policy and reports whether the action may
// fire. The policy: an action on cooldown is dropped outright. Otherwise a
// hit on the same action as last time increments its consecutive counter,
// any other action resets to one. The hit that brings the counter to exactly
// two still fires but arms the cooldown, silencing the action until expiry.
func (e *Engine) admit(ctx context.Context, entry Entry) bool {
	now := e.now()

	if exp, ok := e.expiry[entry.ActionID]; ok && now.Before(exp) {
		e.metrics.CooldownDrops.Add(ctx, 1)
		return false
	}

	if entry.ActionID == e.lastAction {
		e.hits++
	} else {
		e.lastAction = entry.ActionID
		e.hits = 1
	}
	if e.hits == 2 {
		e.expiry[entry.ActionID] = now.Add(entry.Cooldown)
	}
	return true
}
