package vts

import (
	"context"
	"log/slog"

	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/observe"
)

// Triggerer fires a single hotkey. *Client implements it; tests substitute
// fakes.
type Triggerer interface {
	Trigger(ctx context.Context, hotkeyID string) error
}

var _ Triggerer = (*Client)(nil)

// Agent consumes the dispatch topic and forwards each action id to the
// control endpoint. Trigger failures are logged and dropped, never retried:
// a stale trigger replayed later would fire an expression the streamer no
// longer intends.
type Agent struct {
	bus     *bus.Bus
	gateway Triggerer
	metrics *observe.Metrics
}

// AgentOption is a functional option for configuring an [Agent].
type AgentOption func(*Agent)

// WithAgentMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithAgentMetrics(m *observe.Metrics) AgentOption {
	return func(a *Agent) { a.metrics = m }
}

// NewAgent creates an agent that reads dispatch commands from b and fires
// them through gateway.
func NewAgent(b *bus.Bus, gateway Triggerer, opts ...AgentOption) *Agent {
	a := &Agent{bus: b, gateway: gateway}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Run fires dispatched actions until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	q := a.bus.Subscribe(bus.TopicDispatch)
	for {
		ev, err := q.Receive(ctx)
		if err != nil {
			return err
		}
		actionID, ok := ev.Payload.(string)
		if !ok {
			slog.Warn("discarding dispatch event with non-string payload")
			continue
		}

		if err := a.gateway.Trigger(ctx, actionID); err != nil {
			slog.Error("hotkey trigger failed", "action", actionID, "error", err)
			a.metrics.TriggerErrors.Add(ctx, 1)
			continue
		}
		a.bus.Publish(bus.TopicDispatched, actionID)
	}
}
