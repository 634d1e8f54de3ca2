package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/kaselby/aleph/internal/dispatch"
	"github.com/kaselby/aleph/internal/registry"
	"github.com/kaselby/aleph/internal/runtime"
)

// Orchestrator tracks one agent's busy/idle state from its runtime event
// stream. The actual PreToolUse/PostToolUse hook dispatch happens out of
// band, over the ipc control socket the wrapped runtime invokes as an
// external hook command (see internal/ipc and cmd/hook.go) — that is the
// single place bus.Dispatch is called for tool gating, so a tool call
// is never hook-dispatched twice. This loop only derives the busy/idle
// transitions the push dispatcher needs from the same ToolUseStart/
// ToolUseComplete/TurnEnd events, which the runtime emits independently
// of whether its own hook mechanism fires.

// turnResetter is the slice of *dispatch.Dispatcher the orchestrator needs
// to clear the PostToolUse dedup set on a turn boundary — a narrow
// interface so this package doesn't need the dispatcher's full surface.
type turnResetter interface {
	ResetTurn(agentID string)
}

// Orchestrator tracks one agent's busy/idle state from its runtime event
// stream and begins a new turn (state tracker + dispatcher dedup) at each
// turn boundary.
type Orchestrator struct {
	AgentID    string
	rt         *runtime.Client
	state      *dispatch.StateTracker
	dispatcher turnResetter
	registry   *registry.Registry
	logger     *slog.Logger
}

// NewOrchestrator wires the given components for one running agent.
// dispatcher may be nil in tests that don't exercise turn-boundary reset.
func NewOrchestrator(agentID string, rt *runtime.Client, state *dispatch.StateTracker, dispatcher *dispatch.Dispatcher, reg *registry.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{AgentID: agentID, rt: rt, state: state, registry: reg, logger: logger}
	if dispatcher != nil {
		o.dispatcher = dispatcher
	}
	return o
}

// Run reads runtime events until ctx is cancelled or the stream ends.
// It begins the first turn immediately, then begins a new one at every
// subsequent turn boundary (TurnEnd with no pending tool calls) — the
// point after which the runtime is idle and the next tool call started
// belongs to a fresh turn.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.beginTurn()

	for {
		ev, err := o.rt.Next(ctx)
		if err != nil {
			return err
		}

		switch ev.Kind {
		case runtime.ToolUseStart:
			o.state.ToolCallStarted(o.AgentID)
		case runtime.ToolUseComplete:
			o.state.ToolCallCompleted(o.AgentID)
		case runtime.TurnEnd:
			if ev.PendingToolCalls == 0 {
				o.state.TurnComplete(o.AgentID)
				o.beginTurn()
			}
		}

		if err := o.heartbeat(); err != nil {
			o.logger.Warn("session: heartbeat failed", "agent", o.AgentID, "error", err)
		}
	}
}

// beginTurn marks a new user-turn boundary: the state tracker's own
// bookkeeping timestamp, plus the dispatcher's per-turn dedup set so a
// message already surfaced via PostToolUse in a prior turn — but still
// unread — remains eligible for re-injection, per the at-least-once
// ordering guarantee in spec §4.5. The dispatcher's idle-wake path
// (internal/dispatch.Dispatcher.wakeIfEligible) begins its own turns the
// same way when it injects a synthetic user-turn directly.
func (o *Orchestrator) beginTurn() {
	o.state.BeginUserTurn(o.AgentID)
	if o.dispatcher != nil {
		o.dispatcher.ResetTurn(o.AgentID)
	}
}

func (o *Orchestrator) heartbeat() error {
	if o.registry == nil {
		return nil
	}
	return o.registry.Heartbeat(o.AgentID)
}

// HeartbeatLoop touches the agent's registry record every interval until
// ctx is cancelled, independent of event traffic, so a quiet agent isn't
// GC'd as stale (spec §4.8: "heartbeat file touched every 30s").
func HeartbeatLoop(ctx context.Context, reg *registry.Registry, agentID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = reg.Heartbeat(agentID)
		}
	}
}
