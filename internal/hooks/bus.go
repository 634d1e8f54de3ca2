package hooks

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/codes"

	"github.com/kaselby/aleph/internal/tracing"
)

// Handler is a single registered callback. It may perform I/O — block on a
// UI decision, touch the filesystem — since chain execution is already
// serialized per agent specifically to make that safe.
type Handler func(ctx context.Context, ev Event) (Decision, error)

// Bus holds the registered handler chains and the per-agent serialization
// locks that guarantee no two handlers for the same agent ever run
// concurrently, whatever process they're invoked from.
type Bus struct {
	mu       sync.Mutex
	handlers map[EventName][]Handler
	logger   *slog.Logger

	agentLocksMu sync.Mutex
	agentLocks   map[string]*sync.Mutex
}

// NewBus returns an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers:   make(map[EventName][]Handler),
		agentLocks: make(map[string]*sync.Mutex),
		logger:     logger,
	}
}

// Register appends h to the chain for name. Handlers run in registration
// order.
func (b *Bus) Register(name EventName, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *Bus) agentLock(agentID string) *sync.Mutex {
	b.agentLocksMu.Lock()
	defer b.agentLocksMu.Unlock()
	l, ok := b.agentLocks[agentID]
	if !ok {
		l = &sync.Mutex{}
		b.agentLocks[agentID] = l
	}
	return l
}

// Dispatch runs ev's handler chain sequentially, serialized against any
// other event dispatch for the same AgentID. Aggregation rules (spec
// §4.4): additional_context values concatenate with a blank line between
// them; the first non-defer permission decision wins, but later handlers
// still run for their side effects and context contribution. A handler
// error aborts the remaining chain without propagating — context gathered
// from handlers that already ran is still returned, matching the "hook
// chain errors never crash the agent" propagation policy.
func (b *Bus) Dispatch(ctx context.Context, ev Event) Decision {
	ctx, span := tracing.StartHookDispatch(ctx, ev.AgentID, string(ev.Name))
	defer span.End()

	lock := b.agentLock(ev.AgentID)
	lock.Lock()
	defer lock.Unlock()

	b.mu.Lock()
	chain := append([]Handler(nil), b.handlers[ev.Name]...)
	b.mu.Unlock()

	var agg Decision
	var contexts []string

	for _, h := range chain {
		d, err := h(ctx, ev)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			b.logger.Error("hooks: handler failed, aborting remaining chain", "event", ev.Name, "agent", ev.AgentID, "error", err)
			break
		}
		if d.AdditionalContext != "" {
			contexts = append(contexts, d.AdditionalContext)
		}
		if !agg.isPermissionDecision() && d.isPermissionDecision() {
			agg.Permission = d.Permission
			agg.Message = d.Message
		}
		if d.ForceContinue {
			agg.ForceContinue = true
		}
	}

	agg.AdditionalContext = joinContexts(contexts)
	return agg
}

func joinContexts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}
