package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/kaselby/aleph/internal/tracing"
)

// Resolution is how a pending PermissionRequest was settled.
type Resolution string

const (
	ResolutionAllow       Resolution = "allow"
	ResolutionDeny        Resolution = "deny"
	ResolutionInterrupted Resolution = "interrupted"
)

// Request is a single pending approval, published to the UI layer through
// the arbiter's single-slot sync point. Waiter fires exactly once, when
// Resolve or Interrupt settles the request.
type Request struct {
	ToolName       string
	Arguments      map[string]any
	Classification Classification
	Diff           string
	Pending        bool

	resolved chan struct{}
	once     sync.Once
	mu       sync.Mutex
	result   Resolution
	reason   string
}

func newRequest(toolName string, args map[string]any, c Classification, diff string) *Request {
	return &Request{
		ToolName:       toolName,
		Arguments:      args,
		Classification: c,
		Diff:           diff,
		Pending:        true,
		resolved:       make(chan struct{}),
	}
}

// resolve settles the request exactly once; subsequent calls are no-ops,
// matching a single-shot signal.
func (r *Request) resolve(res Resolution, reason string) {
	r.once.Do(func() {
		r.mu.Lock()
		r.result = res
		r.reason = reason
		r.Pending = false
		r.mu.Unlock()
		close(r.resolved)
	})
}

// Wait blocks until the request is resolved or ctx is cancelled.
func (r *Request) wait(ctx context.Context) (Resolution, string, error) {
	select {
	case <-r.resolved:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.result, r.reason, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// Arbiter is one agent's PreToolUse gate. It holds at most one pending
// Request at a time — the hook bus already serializes PreToolUse dispatch
// per agent, so two concurrent requests for the same agent are impossible
// by construction, which is exactly what makes a single slot sufficient
// instead of a queue.
type Arbiter struct {
	mode Mode

	mu      sync.Mutex
	pending *Request
}

// NewArbiter returns an Arbiter fixed to mode for the life of the process.
func NewArbiter(mode Mode) *Arbiter {
	return &Arbiter{mode: mode}
}

// Evaluate classifies toolName, consults the mode table, and — if
// approval is required — publishes a Request to the single slot and
// blocks until the UI resolves it (or ctx is cancelled, which the caller
// treats identically to an interrupt-driven deny).
func (a *Arbiter) Evaluate(ctx context.Context, agentID, toolName string, args map[string]any, diff string) (allowed bool, reason string, err error) {
	c := Classify(toolName)
	if !requiresApproval(a.mode, c) {
		return true, "", nil
	}

	ctx, span := tracing.StartPermissionWait(ctx, agentID, toolName)
	defer span.End()

	req := newRequest(toolName, args, c, diff)

	a.mu.Lock()
	a.pending = req
	a.mu.Unlock()

	res, reason, waitErr := req.wait(ctx)

	a.mu.Lock()
	if a.pending == req {
		a.pending = nil
	}
	a.mu.Unlock()

	if waitErr != nil {
		return false, "interrupted", nil
	}

	switch res {
	case ResolutionAllow:
		return true, "", nil
	case ResolutionDeny:
		return false, reason, nil
	case ResolutionInterrupted:
		return false, "interrupted", nil
	default:
		return false, "", fmt.Errorf("permission: unexpected resolution %q", res)
	}
}

// Pending returns the currently pending request for UI display, or nil.
func (a *Arbiter) Pending() *Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Resolve settles the currently pending request with an explicit UI
// decision. No-op if there is no pending request or it was already
// resolved.
func (a *Arbiter) Resolve(allow bool, reason string) {
	a.mu.Lock()
	req := a.pending
	a.mu.Unlock()
	if req == nil {
		return
	}
	if allow {
		req.resolve(ResolutionAllow, "")
	} else {
		req.resolve(ResolutionDeny, reason)
	}
}

// Interrupt auto-denies any pending request with reason "interrupted",
// per §4.6's tie-break rule for a user-issued interrupt.
func (a *Arbiter) Interrupt() {
	a.mu.Lock()
	req := a.pending
	a.mu.Unlock()
	if req == nil {
		return
	}
	req.resolve(ResolutionInterrupted, "interrupted")
}

// DenialMessage formats a deny reason as the tool-result string the agent
// sees — a permission denial is not an error from the harness's
// perspective, just a string result.
func DenialMessage(reason string) string {
	return fmt.Sprintf("Tool denied by permission policy: %s", reason)
}
