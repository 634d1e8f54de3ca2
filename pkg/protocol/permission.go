package protocol

// PermissionRequestPayload is a PermissionRequest projected to JSON for
// an external UI process to render and resolve — the single-slot sync
// point named in spec §4.6 published as a concrete wire shape rather than
// an in-process Go struct, since the UI need not live in the same
// process as the core.
type PermissionRequestPayload struct {
	AgentID        string         `json:"agent_id"`
	ToolName       string         `json:"tool_name"`
	Arguments      map[string]any `json:"arguments,omitempty"`
	Classification string         `json:"classification"`
	Diff           string         `json:"diff,omitempty"`
}

// PermissionResolutionPayload is what the UI sends back once the user
// has decided.
type PermissionResolutionPayload struct {
	AgentID string `json:"agent_id"`
	Allow   bool   `json:"allow"`
	Reason  string `json:"reason,omitempty"`
}

// HookOutputEnvelope mirrors the JSON a hook handler writes to standard
// output per spec §6: an empty object, or hookSpecificOutput plus an
// optional permission decision and reason. This is the wire-level twin
// of internal/hooks.PostToolUseEnvelope / PreToolUseEnvelope, kept here
// too since it is the literal external contract an out-of-process hook
// script (or a future non-Go harness variant) must speak.
type HookOutputEnvelope struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
	PermissionDecision string              `json:"permissionDecision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	// Decision carries a Stop handler's "block" verdict (spec §4.9: force
	// the agent to continue rather than end its turn); empty for every
	// other event.
	Decision string `json:"decision,omitempty"`
}

// HookSpecificOutput is the nested payload naming which event produced
// additionalContext.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}
