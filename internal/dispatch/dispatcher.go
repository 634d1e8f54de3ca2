package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"github.com/kaselby/aleph/internal/alephfs"
	"github.com/kaselby/aleph/internal/hooks"
	"github.com/kaselby/aleph/internal/inbox"
	"github.com/kaselby/aleph/internal/tracing"
)

// Runtime is the narrow slice of a running agent's runtime client the
// dispatcher needs: a way to push a brand-new user-turn into an idle
// agent. Injecting into a busy agent instead happens through the hook
// bus's PostToolUse chain, not through this interface.
type Runtime interface {
	InjectUserTurn(ctx context.Context, agentID string, text string) error
}

// idleWakeRate bounds how often a single recipient can be woken for
// low-priority (non-high) messages, so a noisy channel cannot starve the
// idle-wake path with a flood of low-value interruptions. High-priority
// messages always bypass the limiter.
const idleWakeRate = rate.Limit(1.0 / 3.0) // at most one low/normal wake every 3s
const idleWakeBurst = 1

// Dispatcher watches inbox directories and decides, per recipient, how a
// newly delivered message should be surfaced.
type Dispatcher struct {
	inbox   *inbox.Store
	bus     *hooks.Bus
	state   *StateTracker
	runtime Runtime
	logger  *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	injectedMu sync.Mutex
	injected   map[string]map[string]bool // agentID -> set of message IDs injected this turn
}

// New returns a Dispatcher. runtime may be nil in tests that only exercise
// the PostToolUse path.
func New(ibx *inbox.Store, bus *hooks.Bus, state *StateTracker, runtime Runtime, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		inbox:    ibx,
		bus:      bus,
		state:    state,
		runtime:  runtime,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		injected: make(map[string]map[string]bool),
	}
	bus.Register(hooks.PostToolUse, d.postToolUseHandler)
	return d
}

func (d *Dispatcher) limiterFor(agentID string) *rate.Limiter {
	d.limitersMu.Lock()
	defer d.limitersMu.Unlock()
	l, ok := d.limiters[agentID]
	if !ok {
		l = rate.NewLimiter(idleWakeRate, idleWakeBurst)
		d.limiters[agentID] = l
	}
	return l
}

// postToolUseHandler is registered on the hook bus's PostToolUse chain. It
// surfaces any unread mail as additional_context, formatted per message
// and deduplicated so the same message is never injected twice within one
// turn (the record is cleared by ResetTurn).
func (d *Dispatcher) postToolUseHandler(ctx context.Context, ev hooks.Event) (hooks.Decision, error) {
	ctx, span := tracing.StartDispatchDelivery(ctx, ev.AgentID, "posttooluse")
	defer span.End()

	unread, err := d.inbox.ListUnread(ev.AgentID)
	if err != nil {
		return hooks.Decision{}, fmt.Errorf("dispatch: list unread for %s: %w", ev.AgentID, err)
	}
	if len(unread) == 0 {
		return hooks.Decision{}, nil
	}

	seen := d.turnSeen(ev.AgentID)
	var lines []string
	for _, m := range unread {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		lines = append(lines, formatAnnounce(ev.AgentID, m))
	}
	if len(lines) == 0 {
		return hooks.Decision{}, nil
	}

	text := lines[0]
	for _, l := range lines[1:] {
		text += "\n" + l
	}
	return hooks.Decision{AdditionalContext: text}, nil
}

func (d *Dispatcher) turnSeen(agentID string) map[string]bool {
	d.injectedMu.Lock()
	defer d.injectedMu.Unlock()
	m, ok := d.injected[agentID]
	if !ok {
		m = make(map[string]bool)
		d.injected[agentID] = m
	}
	return m
}

// ResetTurn clears the per-turn dedup set for agentID. Callers invoke this
// on BeginUserTurn so a message already injected in a prior turn (but
// still unread) remains eligible to be surfaced again, per the
// at-least-once semantics in §4.5.
func (d *Dispatcher) ResetTurn(agentID string) {
	d.injectedMu.Lock()
	defer d.injectedMu.Unlock()
	delete(d.injected, agentID)
}

func formatAnnounce(recipient string, m inbox.Summary) string {
	path := fmt.Sprintf("inbox/%s/%s.md", recipient, m.ID)
	return fmt.Sprintf("[Message from %s]: %s (%s)", m.From, m.Summary, path)
}

// WatchInbox watches recipient's inbox directory and, whenever the
// recipient is idle, wakes it with a synthetic user-turn for any new
// unread mail. High-priority messages bypass the rate limiter; low and
// normal priority messages are throttled so a noisy sender cannot flood
// the idle-wake path.
func (d *Dispatcher) WatchInbox(ctx context.Context, recipient string) error {
	dir := filepath.Join(d.inbox.Root(), recipient)
	events, err := alephfs.Watch(ctx, dir, d.logger)
	if err != nil {
		return fmt.Errorf("dispatch: watch inbox for %s: %w", recipient, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if d.state.Mode(recipient) != Idle {
				continue
			}
			d.wakeIfEligible(ctx, recipient)
		}
	}
}

func (d *Dispatcher) wakeIfEligible(ctx context.Context, recipient string) {
	ctx, span := tracing.StartDispatchDelivery(ctx, recipient, "idle_wake")
	defer span.End()

	unread, err := d.inbox.ListUnread(recipient)
	if err != nil || len(unread) == 0 {
		return
	}
	top := unread[0]

	if top.Priority != inbox.High {
		if !d.limiterFor(recipient).Allow() {
			return
		}
	}

	if d.runtime == nil {
		return
	}
	text := fmt.Sprintf("[Message from %s] %s", top.From, top.Summary)
	if err := d.runtime.InjectUserTurn(ctx, recipient, text); err != nil {
		d.logger.Error("dispatch: failed to inject synthetic user-turn", "recipient", recipient, "error", err)
		return
	}
	// A new turn started, so the PostToolUse dedup set starts clean too —
	// this mirrors Orchestrator.beginTurn and is idempotent with it.
	d.state.BeginUserTurn(recipient)
	d.ResetTurn(recipient)
}
