package hooks

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// ReminderHandler wraps a plain message as a SessionStart/Stop-chain
// handler that only fires when the current time matches a cron
// expression, for the "periodic reminder" hook the spec mentions
// alongside new-mail and permission events. gronx.IsDue is re-evaluated
// on every dispatch rather than driven by its own ticker, so a reminder
// stays dormant for agents that never trigger a Stop/SessionStart event.
type ReminderHandler struct {
	expr gronx.Gronx
	cron string
	text string
}

// NewReminderHandler parses cron (standard 5-field cron syntax) eagerly so
// a malformed expression fails at registration time rather than silently
// never firing.
func NewReminderHandler(cron, text string) (*ReminderHandler, error) {
	g := gronx.New()
	if !g.IsValid(cron) {
		return nil, fmt.Errorf("hooks: invalid reminder cron expression %q", cron)
	}
	return &ReminderHandler{expr: g, cron: cron, text: text}, nil
}

// Handle is a Handler suitable for registration against Stop or
// SessionStart.
func (r *ReminderHandler) Handle(ctx context.Context, ev Event) (Decision, error) {
	due, err := r.expr.IsDue(r.cron, time.Now())
	if err != nil {
		return Decision{}, fmt.Errorf("hooks: evaluate reminder cron: %w", err)
	}
	if !due {
		return Decision{}, nil
	}
	return Decision{AdditionalContext: r.text}, nil
}
