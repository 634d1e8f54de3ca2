// Package runtime wraps the third-party agent runtime subprocess: a
// newline-delimited JSON event stream over stdout, decoded into a closed
// set of typed events, plus the inbound control messages the core sends
// back (user turns, session-summary requests).
package runtime

// EventKind tags the variant of a runtime event, mirroring the teacher's
// own tagged streaming-event style in its provider adapters.
type EventKind string

const (
	TextDelta      EventKind = "text-delta"
	ThinkingDelta  EventKind = "thinking-delta"
	ToolUseStart   EventKind = "tool-use-start"
	ToolUseComplete EventKind = "tool-use-complete"
	TurnEnd        EventKind = "turn-end"
)

// Event is the closed sum-type every runtime event decodes into. Only the
// fields relevant to Kind are populated; this mirrors a tagged union
// without needing a type switch over distinct Go types per variant.
type Event struct {
	Kind EventKind `json:"kind"`

	// TextDelta / ThinkingDelta
	Text string `json:"text,omitempty"`

	// ToolUseStart / ToolUseComplete
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`

	// TurnEnd
	PendingToolCalls int `json:"pending_tool_calls,omitempty"`
}
